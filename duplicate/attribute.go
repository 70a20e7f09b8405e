package duplicate

import (
	"math"
	"unicode/utf8"

	"github.com/docutag/seo-scraper/models"
	"github.com/docutag/seo-scraper/similarity"
)

// ExcerptLength is the maximum number of characters kept from a duplicated paragraph
const ExcerptLength = 100

// Attribution is the outcome of scanning the similarity matrix
type Attribution struct {
	// Records groups duplicate records by owning URL
	Records map[string][]models.DuplicateRecord
	// Matched holds, per URL, the page-local indexes of paragraphs found in at least one pair
	Matched map[string]map[int]struct{}
	// Pairs is the number of qualifying unordered pairs
	Pairs int
}

// MatchedCount returns how many distinct paragraphs of url matched another paragraph
func (a *Attribution) MatchedCount(url string) int {
	return len(a.Matched[url])
}

// Count returns the total number of duplicate records
func (a *Attribution) Count() int {
	n := 0
	for _, recs := range a.Records {
		n += len(recs)
	}
	return n
}

func newAttribution() *Attribution {
	return &Attribution{
		Records: make(map[string][]models.DuplicateRecord),
		Matched: make(map[string]map[int]struct{}),
	}
}

// Attribute records every pair i<j with scores.At(i, j) >= threshold. A pair across two
// pages yields one record under each owner, pointing at the other. A pair inside a single
// page yields one self-referential record, attributed to the earlier paragraph.
func Attribute(scores similarity.Scores, corpus *Corpus, threshold float64) *Attribution {
	attr := newAttribution()
	n := scores.Len()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := scores.At(i, j)
			if sim < threshold {
				continue
			}
			attr.Pairs++
			score := round2(min(sim, 1) * 100)
			attr.add(corpus, i, j, score)
			if corpus.Owner(i) != corpus.Owner(j) {
				attr.add(corpus, j, i, score)
			}
		}
	}
	return attr
}

func (a *Attribution) add(corpus *Corpus, pos, other int, score float64) {
	owner := corpus.Owner(pos)
	offset := corpus.Offset(pos)
	a.Records[owner] = append(a.Records[owner], models.DuplicateRecord{
		OwningURL:        owner,
		ParagraphIndex:   offset,
		ParagraphExcerpt: Excerpt(corpus.Text(pos)),
		SimilarToURL:     corpus.Owner(other),
		SimilarityScore:  score,
	})
	if owner == UnknownURL || offset < 0 {
		return
	}
	if a.Matched[owner] == nil {
		a.Matched[owner] = make(map[int]struct{})
	}
	a.Matched[owner][offset] = struct{}{}
}

// Excerpt truncates a paragraph to ExcerptLength characters, marking the cut with "..."
func Excerpt(p string) string {
	if utf8.RuneCountInString(p) <= ExcerptLength {
		return p
	}
	return string([]rune(p)[:ExcerptLength]) + "..."
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
