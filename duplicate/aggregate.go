package duplicate

import (
	"log/slog"

	"github.com/docutag/seo-scraper/models"
)

// Options are the thresholds applied during attribution and aggregation
type Options struct {
	SimilarityThreshold    float64 // Cosine floor for a pair to count, in [0,1]
	HighDuplicateThreshold float64 // Rate (percent) at or above which a URL is flagged
}

// DefaultOptions returns the default thresholds
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold:    0.65,
		HighDuplicateThreshold: 15.0,
	}
}

// Aggregate computes the duplicate rate of every URL in order and the batch statistics.
// Every URL gets a page, a rate and a (possibly empty) record list. A nil attribution
// means the similarity phase did not run and all rates are 0.
func Aggregate(order []string, pages map[string]models.PageRecord, attr *Attribution, opts Options) *models.DuplicateRateReport {
	if attr == nil {
		attr = newAttribution()
	}

	report := &models.DuplicateRateReport{
		URLs:                append([]string{}, order...),
		Pages:               make(map[string]models.PageRecord, len(order)),
		DuplicateRates:      make(map[string]float64, len(order)),
		DuplicateParagraphs: make(map[string][]models.DuplicateRecord, len(order)),
		Directories:         []models.DirectorySummary{},
		Stats: models.Summary{
			TotalURLs:           len(order),
			Threshold:           opts.HighDuplicateThreshold,
			SimilarityThreshold: opts.SimilarityThreshold,
		},
	}

	dirIndex := make(map[string]int)
	var rateSum float64
	for _, u := range order {
		page, ok := pages[u]
		if !ok {
			page = models.PageRecord{URL: u, Paragraphs: []string{}, Error: "no result recorded", Directory: "root"}
		}
		if page.Paragraphs == nil {
			page.Paragraphs = []string{}
		}
		report.Pages[u] = page

		if page.Success {
			report.Stats.SuccessfulURLs++
			report.Stats.TotalParagraphs += page.TotalParagraphs
		}

		rate := 0.0
		if page.Success && page.TotalParagraphs > 0 {
			rate = round2(float64(attr.MatchedCount(u)) / float64(page.TotalParagraphs) * 100)
		}
		report.DuplicateRates[u] = rate
		rateSum += rate

		recs := attr.Records[u]
		if recs == nil {
			recs = []models.DuplicateRecord{}
		}
		report.DuplicateParagraphs[u] = recs

		high := rate >= opts.HighDuplicateThreshold
		if high {
			report.Stats.HighDuplicateCount++
		}

		dir := page.Directory
		if dir == "" {
			dir = "root"
		}
		idx, seen := dirIndex[dir]
		if !seen {
			idx = len(report.Directories)
			dirIndex[dir] = idx
			report.Directories = append(report.Directories, models.DirectorySummary{Directory: dir})
		}
		ds := &report.Directories[idx]
		ds.URLCount++
		ds.AverageDuplicateRate += rate // summed here, averaged below
		if high {
			ds.HighDuplicateCount++
		}
	}

	if len(order) > 0 {
		report.Stats.AverageDuplicateRate = round2(rateSum / float64(len(order)))
	}
	for i := range report.Directories {
		ds := &report.Directories[i]
		ds.AverageDuplicateRate = round2(ds.AverageDuplicateRate / float64(ds.URLCount))
	}

	if orphans := len(attr.Records[UnknownURL]); orphans > 0 {
		slog.Warn("dropping duplicate records with unknown owner", "count", orphans)
	}

	return report
}
