// Package textvec turns paragraphs into TF-IDF weighted, L2-normalised sparse vectors.
package textvec

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmptyCorpus is returned when there are no documents to vectorize
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrEmptyVocabulary is returned when no document yields a single term
	ErrEmptyVocabulary = errors.New("empty vocabulary: documents contain no terms")
)

// Vector is a sparse row. Indices are strictly increasing.
type Vector struct {
	Indices []int
	Values  []float64
}

// IsZero reports whether the vector has no non-zero component
func (v Vector) IsZero() bool {
	for _, x := range v.Values {
		if x != 0 {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean length of the vector
func (v Vector) Norm() float64 {
	if len(v.Values) == 0 {
		return 0
	}
	return floats.Norm(v.Values, 2)
}

// VectorSpace is the fitted vocabulary together with the transformed documents
type VectorSpace struct {
	Terms      []string       // Term for each column, sorted
	Vocabulary map[string]int // Term to column
	IDF        []float64      // Inverse document frequency per column
	Rows       []Vector       // One row per input document, in input order
}

// Dim returns the number of columns
func (vs *VectorSpace) Dim() int {
	return len(vs.Terms)
}

// Vectorizer fits a TF-IDF model over a corpus
type Vectorizer struct {
	tokenizer Tokenizer
}

// NewVectorizer creates a vectorizer using tokenizer to split documents
func NewVectorizer(tokenizer Tokenizer) *Vectorizer {
	return &Vectorizer{tokenizer: tokenizer}
}

// FitTransform builds the vocabulary from docs and returns one normalised row per document.
// Weights are raw term counts times smoothed idf: ln((1+n)/(1+df)) + 1.
// Documents without terms become zero vectors.
func (v *Vectorizer) FitTransform(docs []string) (*VectorSpace, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}

	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		tf := make(map[string]int)
		for _, term := range v.tokenizer.Tokenize(doc) {
			tf[term]++
		}
		for term := range tf {
			df[term]++
		}
		counts[i] = tf
	}
	if len(df) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for col, term := range terms {
		vocab[term] = col
		idf[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	rows := make([]Vector, len(docs))
	for i, tf := range counts {
		rows[i] = weigh(tf, vocab, idf)
	}

	return &VectorSpace{
		Terms:      terms,
		Vocabulary: vocab,
		IDF:        idf,
		Rows:       rows,
	}, nil
}

// weigh builds the normalised tf-idf row for one document's term counts
func weigh(tf map[string]int, vocab map[string]int, idf []float64) Vector {
	if len(tf) == 0 {
		return Vector{}
	}

	weights := make(map[int]float64, len(tf))
	indices := make([]int, 0, len(tf))
	for term, count := range tf {
		col := vocab[term]
		weights[col] = float64(count) * idf[col]
		indices = append(indices, col)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	for k, col := range indices {
		values[k] = weights[col]
	}
	if norm := floats.Norm(values, 2); norm > 0 {
		floats.Scale(1/norm, values)
	}
	return Vector{Indices: indices, Values: values}
}
