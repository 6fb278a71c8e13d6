package scriptsource

import "sort"

// FeedPreset is a named feed that works well as a script source
type FeedPreset struct {
	Name string
	URL  string
}

// FeedPresets maps short names accepted by --feed to feeds
var FeedPresets = map[string]FeedPreset{
	"bbc": {
		Name: "BBC News",
		URL:  "https://feeds.bbci.co.uk/news/rss.xml",
	},
	"hn": {
		Name: "Hacker News",
		URL:  "https://hnrss.org/newest",
	},
	"nasa": {
		Name: "NASA Breaking News",
		URL:  "https://www.nasa.gov/news-release/feed/",
	},
	"tr": {
		Name: "Technology Review",
		URL:  "https://www.technologyreview.com/feed/",
	},
}

// ResolveFeedURL returns the preset URL for a preset name, or input unchanged
func ResolveFeedURL(input string) string {
	if p, ok := FeedPresets[input]; ok {
		return p.URL
	}
	return input
}

// PresetNames lists the preset names in order
func PresetNames() []string {
	names := make([]string, 0, len(FeedPresets))
	for k := range FeedPresets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
