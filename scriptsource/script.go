package scriptsource

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxChars bounds the script length sent for decomposition.
const DefaultMaxChars = 4000

// Script is source text for the script-to-video wizard.
type Script struct {
	ID        string
	Title     string
	Text      string
	SourceURL string
	Author    string
	ImageURL  string
}

// Body returns the title followed by the text, which is what the wizard
// submits.
func (s *Script) Body() string {
	if s.Title == "" {
		return s.Text
	}
	if s.Text == "" {
		return s.Title
	}
	return s.Title + ".\n\n" + s.Text
}

// GenerateID creates a short, stable ID by hashing the provided string input
func GenerateID(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// StripHTML returns the visible text of an HTML fragment.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return doc.Text()
}

// Normalize collapses whitespace and trims text to at most maxChars,
// cutting at the last sentence end that fits when there is one.
func Normalize(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxChars])
	if i := strings.LastIndexAny(cut, ".!?"); i > maxChars/2 {
		return cut[:i+1]
	}
	return strings.TrimSpace(cut)
}
