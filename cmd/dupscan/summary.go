package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/docutag/seo-scraper/models"
)

// writeSummary prints corpus statistics, the worst pages and the directory roll-up
func writeSummary(w io.Writer, report *models.DuplicateRateReport, top int) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	st := report.Stats
	fmt.Fprintf(w, "\n%s\n\n", cyan("=== Duplicate Content Audit ==="))
	fmt.Fprintf(w, "  URLs:               %d (%d fetched)\n", st.TotalURLs, st.SuccessfulURLs)
	fmt.Fprintf(w, "  Paragraphs:         %d\n", st.TotalParagraphs)
	fmt.Fprintf(w, "  Average rate:       %.2f%%\n", st.AverageDuplicateRate)
	high := fmt.Sprintf("%d (rate >= %.2f%%)", st.HighDuplicateCount, st.Threshold)
	if st.HighDuplicateCount > 0 {
		high = red(high)
	} else {
		high = green(high)
	}
	fmt.Fprintf(w, "  High-duplicate:     %s\n", high)
	if st.SimilarityPhaseSkipped {
		fmt.Fprintf(w, "  %s %s\n", yellow("Similarity skipped:"), st.SkipReason)
	}
	fmt.Fprintln(w)

	flagged := make(map[string]bool)
	for _, u := range report.HighDuplicateURLs() {
		flagged[u] = true
	}
	if worst := worstPages(report, top); len(worst) > 0 {
		fmt.Fprintf(w, "%s\n", yellow("Most duplicated pages:"))
		for _, u := range worst {
			rate := fmt.Sprintf("%6.2f%%", report.Rate(u))
			if flagged[u] {
				rate = red(rate)
			}
			fmt.Fprintf(w, "  %s  %s\n", rate, u)
			for _, d := range firstN(report.Duplicates(u), 3) {
				fmt.Fprintf(w, "           #%d ~ %s (%.2f)\n", d.ParagraphIndex, d.SimilarToURL, d.SimilarityScore)
			}
		}
		fmt.Fprintln(w)
	}

	if failed := failedPages(report); len(failed) > 0 {
		fmt.Fprintf(w, "%s\n", yellow("Not analyzed:"))
		for _, u := range failed {
			fmt.Fprintf(w, "  %s  %s\n", u, report.Pages[u].Error)
		}
		fmt.Fprintln(w)
	}

	if len(report.Directories) > 0 {
		fmt.Fprintf(w, "%s\n", yellow("Directories:"))
		for _, d := range report.Directories {
			fmt.Fprintf(w, "  %6.2f%%  %3d urls  %3d high  %s\n", d.AverageDuplicateRate, d.URLCount, d.HighDuplicateCount, d.Directory)
		}
		fmt.Fprintln(w)
	}
}

// worstPages returns up to n URLs with a non-zero rate, highest first, ties in input order
func worstPages(report *models.DuplicateRateReport, n int) []string {
	var list []string
	for _, u := range report.URLs {
		if report.Rate(u) > 0 {
			list = append(list, u)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return report.Rate(list[i]) > report.Rate(list[j])
	})
	if n >= 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

func failedPages(report *models.DuplicateRateReport) []string {
	var list []string
	for _, u := range report.URLs {
		if p, ok := report.Pages[u]; ok && !p.Success {
			list = append(list, u)
		}
	}
	return list
}

func firstN(recs []models.DuplicateRecord, n int) []models.DuplicateRecord {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}
