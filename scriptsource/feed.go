package scriptsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
)

// WorkerCount is the number of concurrent article extractions.
const WorkerCount = 5

// Entry is one item of an RSS/Atom feed.
type Entry struct {
	ID          string
	Title       string
	Link        string
	Summary     string
	Author      string
	ImageURL    string
	PublishedAt time.Time
}

// FetchFeed retrieves and parses an RSS/Atom feed, returning up to maxCount
// entries in feed order.
func FetchFeed(ctx context.Context, feedURL string, maxCount int) ([]Entry, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	count := len(feed.Items)
	if maxCount > 0 && maxCount < count {
		count = maxCount
	}
	entries := make([]Entry, 0, count)

	for _, item := range feed.Items[:count] {
		// Use GUID if available, otherwise generate from URL
		id := item.GUID
		if id == "" && item.Link != "" {
			id = GenerateID(item.Link)
		}

		var publishedAt time.Time
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		entry := Entry{
			ID:          id,
			Title:       item.Title,
			Link:        item.Link,
			Summary:     StripHTML(summary),
			Author:      author,
			PublishedAt: publishedAt,
		}
		if item.Image != nil {
			entry.ImageURL = item.Image.URL
		}
		entries = append(entries, entry)
	}

	log.Debug().Str("feed", feedURL).Int("entries", len(entries)).Msg("Fetched feed")
	return entries, nil
}

// Script turns the entry summary into a script without fetching the page.
func (e Entry) Script(maxChars int) *Script {
	return &Script{
		ID:        e.ID,
		Title:     e.Title,
		Text:      Normalize(e.Summary, maxChars),
		SourceURL: e.Link,
		Author:    e.Author,
		ImageURL:  e.ImageURL,
	}
}

// Result pairs an entry with its extracted script or the extraction error.
type Result struct {
	Entry  Entry
	Script *Script
	Err    error
}

// ExtractAll fetches the full article for every entry using a worker pool.
// Entries whose page cannot be extracted fall back to their feed summary
// and carry the error.
func ExtractAll(entries []Entry, maxChars int) []Result {
	results := make([]Result, len(entries))

	var wg sync.WaitGroup
	jobs := make(chan int, len(entries))

	for w := 0; w < WorkerCount; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				e := entries[i]
				script, err := FromArticle(e.Link, maxChars)
				if err != nil {
					log.Warn().Err(err).Int("worker", workerID).Str("url", e.Link).Msg("Failed to extract, using summary")
					script = e.Script(maxChars)
				} else if script.Title == "" {
					script.Title = e.Title
				}
				results[i] = Result{Entry: e, Script: script, Err: err}
			}
		}(w)
	}

	for i := range entries {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
