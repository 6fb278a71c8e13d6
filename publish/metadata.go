package publish

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"clipstudio/config"
)

// YouTube limits
const (
	maxTitleRunes       = 100
	maxDescriptionRunes = 5000
	maxTagChars         = 500
)

// Metadata is the snippet and status sent with an upload
type Metadata struct {
	Title         string
	Description   string
	Tags          []string
	CategoryID    string
	PrivacyStatus string
}

// Source describes what a video was generated from
type Source struct {
	Title     string
	Prompts   []string
	Style     string
	SourceURL string
	Tags      []string

	// JobID names the generation job the video came from, if any
	JobID string
}

var defaultTags = []string{"shorts", "ai video", "generated video"}

// BuildMetadata creates upload metadata for a generated short.
func BuildMetadata(src Source, privacy string) Metadata {
	title := strings.TrimSpace(src.Title)
	if title == "" && len(src.Prompts) > 0 {
		title = strings.TrimSpace(src.Prompts[0])
	}
	if title == "" {
		title = "Generated short"
	}
	title = truncate(title, maxTitleRunes)

	var b strings.Builder
	b.WriteString(title)
	if src.Style != "" {
		fmt.Fprintf(&b, "\n\nStyle: %s", src.Style)
	}
	if len(src.Prompts) > 0 {
		b.WriteString("\n\nScenes:")
		for i, p := range src.Prompts {
			fmt.Fprintf(&b, "\n%d. %s", i+1, strings.TrimSpace(p))
		}
	}
	if src.SourceURL != "" {
		fmt.Fprintf(&b, "\n\nSource: %s", src.SourceURL)
	}
	if src.JobID != "" {
		fmt.Fprintf(&b, "\nJob: %s", src.JobID)
	}
	b.WriteString("\n\n#shorts")

	if privacy == "" {
		privacy = config.YouTubePrivacyStatus
	}

	return Metadata{
		Title:         title,
		Description:   truncate(b.String(), maxDescriptionRunes),
		Tags:          buildTags(src.Tags),
		CategoryID:    config.YouTubeCategoryID,
		PrivacyStatus: privacy,
	}
}

// buildTags merges extra tags with the defaults, dropping duplicates and
// stopping at the total tag length limit.
func buildTags(extra []string) []string {
	seen := map[string]bool{}
	var tags []string
	total := 0
	for _, t := range append(append([]string(nil), extra...), defaultTags...) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		if total+len(t) > maxTagChars {
			break
		}
		seen[key] = true
		total += len(t)
		tags = append(tags, t)
	}
	return tags
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
