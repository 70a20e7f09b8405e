// Package similarity computes pairwise cosine similarity between normalised sparse vectors.
package similarity

import (
	"gonum.org/v1/gonum/mat"

	"github.com/docutag/seo-scraper/textvec"
)

// Scores is a square, symmetric table of pairwise similarities
type Scores interface {
	At(i, j int) float64
	Len() int
}

// Matrix holds all pairwise cosine similarities of a corpus
type Matrix struct {
	sym *mat.SymDense
	n   int
}

// Cosine returns the pairwise similarity matrix of rows, which must be L2-normalised.
// Zero rows score 0 against every row, themselves included. Values are capped at 1.
func Cosine(rows []textvec.Vector) *Matrix {
	n := len(rows)
	if n == 0 {
		return &Matrix{}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if rows[i].IsZero() {
			continue
		}
		sym.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			if s := Dot(rows[i], rows[j]); s > 0 {
				sym.SetSym(i, j, min(s, 1))
			}
		}
	}
	return &Matrix{sym: sym, n: n}
}

// At returns the similarity of documents i and j
func (m *Matrix) At(i, j int) float64 {
	return m.sym.At(i, j)
}

// Len returns the number of documents
func (m *Matrix) Len() int {
	return m.n
}

// Dot returns the inner product of two sparse vectors with increasing indices
func Dot(a, b textvec.Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}
