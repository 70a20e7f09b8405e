package duplicate

import (
	"errors"
	"log/slog"

	"github.com/docutag/seo-scraper/models"
	"github.com/docutag/seo-scraper/similarity"
	"github.com/docutag/seo-scraper/textvec"
)

// ErrSinglePage is the skip reason when fewer than two pages contribute paragraphs
var ErrSinglePage = errors.New("fewer than two pages with paragraphs: nothing to compare")

// Detector runs the batch similarity phase over collected pages
type Detector struct {
	vectorizer *textvec.Vectorizer
	opts       Options
}

// NewDetector creates a detector that vectorizes paragraphs with tokenizer
func NewDetector(tokenizer textvec.Tokenizer, opts Options) *Detector {
	return &Detector{
		vectorizer: textvec.NewVectorizer(tokenizer),
		opts:       opts,
	}
}

// Options returns the detector thresholds
func (d *Detector) Options() Options {
	return d.opts
}

// Detect builds the corpus, fits a fresh vector space, scores all pairs and aggregates
// rates. When vectorization fails (no paragraphs, or no terms) or only one page has
// paragraphs, the similarity phase is skipped and every URL gets a 0.0 rate.
func (d *Detector) Detect(order []string, pages map[string]models.PageRecord) *models.DuplicateRateReport {
	corpus := BuildCorpus(order, pages)

	vs, err := d.vectorizer.FitTransform(corpus.Paragraphs)
	if err == nil && corpus.Pages() < 2 {
		err = ErrSinglePage
	}
	if err != nil {
		slog.Warn("skipping similarity phase", "urls", len(order), "paragraphs", corpus.Len(), "reason", err)
		report := Aggregate(order, pages, nil, d.opts)
		report.Stats.SimilarityPhaseSkipped = true
		report.Stats.SkipReason = err.Error()
		return report
	}

	scores := similarity.Cosine(vs.Rows)
	attr := Attribute(scores, corpus, d.opts.SimilarityThreshold)
	slog.Info("similarity phase complete",
		"paragraphs", corpus.Len(),
		"terms", vs.Dim(),
		"pairs", attr.Pairs,
		"threshold", d.opts.SimilarityThreshold)

	return Aggregate(order, pages, attr, d.opts)
}
