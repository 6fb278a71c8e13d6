package publish

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildMetadata(t *testing.T) {
	cases := []struct {
		name      string
		src       Source
		privacy   string
		wantTitle string
		wantParts []string
	}{
		{
			name:      "title from first prompt",
			src:       Source{Prompts: []string{" A hero walks into town ", "The saloon"}, Style: "western"},
			wantTitle: "A hero walks into town",
			wantParts: []string{"Style: western", "1. A hero walks into town", "2. The saloon", "#shorts"},
		},
		{
			name:      "explicit title and source",
			src:       Source{Title: "Lighthouse", SourceURL: "https://example.com/story"},
			privacy:   "unlisted",
			wantTitle: "Lighthouse",
			wantParts: []string{"Source: https://example.com/story"},
		},
		{
			name:      "fallback title",
			src:       Source{},
			wantTitle: "Generated short",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := BuildMetadata(c.src, c.privacy)
			if m.Title != c.wantTitle {
				t.Fatalf("Title = %q; want %q", m.Title, c.wantTitle)
			}
			for _, part := range c.wantParts {
				if !strings.Contains(m.Description, part) {
					t.Fatalf("Description missing %q:\n%s", part, m.Description)
				}
			}
			wantPrivacy := c.privacy
			if wantPrivacy == "" {
				wantPrivacy = "private"
			}
			if m.PrivacyStatus != wantPrivacy || m.CategoryID != "1" {
				t.Fatalf("status/category = %q/%q", m.PrivacyStatus, m.CategoryID)
			}
		})
	}
}

func TestBuildMetadataTruncatesTitle(t *testing.T) {
	long := strings.Repeat("é", 150)
	m := BuildMetadata(Source{Title: long}, "")
	if n := utf8.RuneCountInString(m.Title); n != 100 {
		t.Fatalf("title has %d runes; want 100", n)
	}
	if !strings.HasSuffix(m.Title, "...") {
		t.Fatalf("truncated title missing ellipsis: %q", m.Title)
	}
}

func TestBuildTags(t *testing.T) {
	tags := buildTags([]string{"Western", " ", "SHORTS", "western"})
	want := []string{"Western", "SHORTS", "ai video", "generated video"}
	if strings.Join(tags, ",") != strings.Join(want, ",") {
		t.Fatalf("tags = %v; want %v", tags, want)
	}
}

func TestShortURL(t *testing.T) {
	if got := ShortURL("abc"); got != "https://youtube.com/shorts/abc" {
		t.Fatalf("ShortURL = %q", got)
	}
}
