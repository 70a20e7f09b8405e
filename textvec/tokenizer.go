package textvec

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
)

// Tokenizer splits text into index terms
type Tokenizer interface {
	Tokenize(text string) []string
}

// termPattern keeps runs of two or more word characters; single characters and punctuation never become terms
var termPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// filterTerms lowercases raw tokens and keeps the parts that qualify as terms
func filterTerms(raw []string) []string {
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		terms = append(terms, termPattern.FindAllString(strings.ToLower(token), -1)...)
	}
	return terms
}

// Segmenter tokenizes Chinese (and mixed) text with a dictionary-based word segmenter
type Segmenter struct {
	seg *gse.Segmenter
}

var (
	dictOnce sync.Once
	dictSeg  *gse.Segmenter
	dictErr  error
)

// NewSegmenter returns a Segmenter backed by the embedded dictionary.
// The dictionary is loaded once per process and shared.
func NewSegmenter() (*Segmenter, error) {
	dictOnce.Do(func() {
		seg := &gse.Segmenter{SkipLog: true}
		if err := seg.LoadDictEmbed(); err != nil {
			dictErr = fmt.Errorf("failed to load segmentation dictionary: %w", err)
			return
		}
		dictSeg = seg
	})
	if dictErr != nil {
		return nil, dictErr
	}
	return &Segmenter{seg: dictSeg}, nil
}

// Tokenize segments text into words and returns the qualifying terms
func (s *Segmenter) Tokenize(text string) []string {
	return filterTerms(s.seg.Cut(text, true))
}

// WordTokenizer splits on anything that is not a letter, mark, digit or underscore.
// It suits space-delimited languages and needs no dictionary.
type WordTokenizer struct{}

// Tokenize returns the qualifying terms of text
func (WordTokenizer) Tokenize(text string) []string {
	return filterTerms(strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r) || r == '_')
	}))
}
