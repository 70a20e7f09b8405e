// Package duplicate attributes similar paragraph pairs back to their pages and turns them into per-URL duplicate rates.
package duplicate

import "github.com/docutag/seo-scraper/models"

// UnknownURL is the owner reported for a corpus position that maps to no page
const UnknownURL = "unknown"

// Corpus is the pooled, ordered paragraph set of one batch with a position to page index
type Corpus struct {
	Paragraphs []string
	owners     []string
	offsets    []int
	pages      int
}

// BuildCorpus concatenates the paragraphs of every successful page, following order
// and then document order within each page. URLs in order without a page are skipped.
func BuildCorpus(order []string, pages map[string]models.PageRecord) *Corpus {
	c := &Corpus{Paragraphs: []string{}}
	for _, u := range order {
		page, ok := pages[u]
		if !ok || !page.Success {
			continue
		}
		if len(page.Paragraphs) > 0 {
			c.pages++
		}
		for idx, p := range page.Paragraphs {
			c.Paragraphs = append(c.Paragraphs, p)
			c.owners = append(c.owners, u)
			c.offsets = append(c.offsets, idx)
		}
	}
	return c
}

// Len returns the number of paragraphs in the corpus
func (c *Corpus) Len() int {
	return len(c.Paragraphs)
}

// Pages returns the number of pages contributing at least one paragraph
func (c *Corpus) Pages() int {
	return c.pages
}

// Owner returns the URL the paragraph at pos belongs to, or UnknownURL
func (c *Corpus) Owner(pos int) string {
	if pos < 0 || pos >= len(c.owners) {
		return UnknownURL
	}
	return c.owners[pos]
}

// Offset returns the index of the paragraph at pos within its page, or -1
func (c *Corpus) Offset(pos int) int {
	if pos < 0 || pos >= len(c.offsets) {
		return -1
	}
	return c.offsets[pos]
}

// Text returns the paragraph at pos, or an empty string
func (c *Corpus) Text(pos int) string {
	if pos < 0 || pos >= len(c.Paragraphs) {
		return ""
	}
	return c.Paragraphs[pos]
}
