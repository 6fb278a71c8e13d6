package scriptsource

import (
	"fmt"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
)

const extractorTimeout = 30 * time.Second

// FromArticle fetches a web page and extracts its readable text as a script.
func FromArticle(pageURL string, maxChars int) (*Script, error) {
	if strings.TrimSpace(pageURL) == "" {
		return nil, fmt.Errorf("article URL is empty")
	}

	article, err := readability.FromURL(pageURL, extractorTimeout)
	if err != nil {
		return nil, fmt.Errorf("readability extraction failed: %w", err)
	}

	text := Normalize(article.TextContent, maxChars)
	if text == "" {
		text = Normalize(article.Excerpt, maxChars)
	}
	if text == "" {
		return nil, fmt.Errorf("no readable text found at %s", pageURL)
	}

	log.Info().Str("url", pageURL).Str("title", article.Title).Int("chars", len(text)).Msg("Extracted article")
	return &Script{
		ID:        GenerateID(pageURL),
		Title:     strings.TrimSpace(article.Title),
		Text:      text,
		SourceURL: pageURL,
		Author:    article.Byline,
		ImageURL:  article.Image,
	}, nil
}
