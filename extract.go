package scraper

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ExtractOptions controls how body paragraphs are isolated from a page
type ExtractOptions struct {
	ContentSelectors   []string // Tried in order; the first match is the content container
	StripSelectors     []string // Subtrees removed from the container before reading text
	MinParagraphLength int      // Paragraphs must be strictly longer than this (in characters)
	BoilerplateMarkers []string // Paragraphs containing any of these substrings are dropped
}

// DefaultExtractOptions returns the options used for duplicate detection
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		ContentSelectors: []string{
			"div.content.clearfix.font16",
			"div.content_main",
			"div.content",
			"article",
		},
		StripSelectors: []string{
			"script", "style", "nav", "footer", "header", "aside",
			".related", ".related-articles",
		},
		MinParagraphLength: 30,
		BoilerplateMarkers: []string{
			"说明：",
			"点击查看",
			"推荐阅读",
			"免责声明",
			"版权声明",
			"转载请注明出处",
		},
	}
}

// Fingerprint returns a short stable hash of the options. Pages extracted under
// options with different fingerprints must not share cache entries.
func (o ExtractOptions) Fingerprint() string {
	data, _ := json.Marshal(o)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

// ParseDocument parses raw HTML into a queryable document
func ParseDocument(htmlDoc string) (*goquery.Document, error) {
	root, err := parseHTML(htmlDoc)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// ExtractParagraphs returns the cleaned body paragraphs of doc in document order
func ExtractParagraphs(doc *goquery.Document, opts ExtractOptions) []string {
	paragraphs := []string{}

	container := locateContainer(doc, opts.ContentSelectors)
	if container == nil {
		return paragraphs
	}

	// Work on a copy so the caller's document keeps its navigation and metadata
	container = container.Clone()
	if len(opts.StripSelectors) > 0 {
		container.Find(strings.Join(opts.StripSelectors, ", ")).Remove()
	}

	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) <= opts.MinParagraphLength {
			return
		}
		if containsAny(text, opts.BoilerplateMarkers) {
			return
		}
		paragraphs = append(paragraphs, NormalizeWhitespace(text))
	})

	return paragraphs
}

// locateContainer returns the first selection matching the candidate selectors, falling back to <body>
func locateContainer(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, selector := range selectors {
		if selector == "" {
			continue
		}
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return nil
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// NormalizeWhitespace collapses whitespace runs (including full-width spaces) to a single space
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractPublishDate finds the publication date of a page
// Priority: publishdate/pubdate meta > article:published_time > <time datetime> > first *date* class element
func ExtractPublishDate(doc *goquery.Document) string {
	metaSelectors := []string{
		`meta[name="publishdate"]`,
		`meta[name="pubdate"]`,
		`meta[property="article:published_time"]`,
	}
	for _, selector := range metaSelectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}

	if datetime, ok := doc.Find("time").First().Attr("datetime"); ok && strings.TrimSpace(datetime) != "" {
		return strings.TrimSpace(datetime)
	}

	var date string
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), "date") {
			date = NormalizeWhitespace(s.Text())
			return false
		}
		return true
	})
	return date
}

// ExtractDirectory derives the directory a URL belongs to as host/path-prefix
func ExtractDirectory(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "root"
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	var dir string
	switch {
	case len(parts) >= 2:
		dir = strings.Join(parts[:len(parts)-1], "/")
	case parts[0] != "":
		dir = parts[0]
	default:
		dir = "root"
	}
	return parsed.Host + "/" + dir
}
