package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/docutag/seo-scraper/models"
)

var ratesHeader = []string{"url", "directory", "success", "paragraphs", "duplicate_paragraphs", "duplicate_rate", "high_duplicate", "error"}

// RatesCSV renders one row per URL in input order
func RatesCSV(report *models.DuplicateRateReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ratesHeader); err != nil {
		return nil, err
	}

	for _, u := range report.URLs {
		page := report.Pages[u]
		rate := report.Rate(u)
		row := []string{
			u,
			page.Directory,
			strconv.FormatBool(page.Success),
			strconv.Itoa(page.TotalParagraphs),
			strconv.Itoa(len(report.Duplicates(u))),
			strconv.FormatFloat(rate, 'f', 2, 64),
			strconv.FormatBool(rate >= report.Stats.Threshold),
			page.Error,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveRatesCSV stores the per-URL rate table next to the JSON report
func SaveRatesCSV(ctx context.Context, store Store, report *models.DuplicateRateReport) (string, error) {
	data, err := RatesCSV(report)
	if err != nil {
		return "", err
	}
	return store.Save(ctx, data, ReportName(report)+"-rates", "text/csv")
}
