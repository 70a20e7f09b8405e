package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/docutag/seo-scraper/db"
	"github.com/docutag/seo-scraper/models"
)

var reportTop int

var reportCmd = &cobra.Command{
	Use:   "report <report.json>",
	Short: "Print the summary of a saved JSON report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := readReport(args[0])
		if err != nil {
			return err
		}
		writeSummary(cmd.OutOrStdout(), report, reportTop)
		return nil
	},
}

var historyDB string
var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <url>",
	Short: "Show the recorded duplicate rates of a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.New(db.Config{Driver: db.DriverSQLite, DSN: historyDB})
		if err != nil {
			return err
		}
		defer database.Close()

		entries, err := database.URLHistory(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintf(out, "No history for %s\n", args[0])
			return nil
		}
		bold := color.New(color.Bold).SprintFunc()
		fmt.Fprintf(out, "%s\n", bold(args[0]))
		for _, e := range entries {
			status := fmt.Sprintf("%6.2f%%", e.DuplicateRate)
			if !e.Success {
				status = color.New(color.FgRed).Sprint(" failed")
			}
			fmt.Fprintf(out, "  %s  %s  %d paragraphs  report %s\n",
				e.CreatedAt.Format("2006-01-02 15:04"), status, e.TotalParagraphs, e.ReportID)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportTop, "top", 10, "Number of worst pages to list")
	historyCmd.Flags().StringVar(&historyDB, "db", "./seo.db", "SQLite database written by analyze --db")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries")
	rootCmd.AddCommand(reportCmd, historyCmd)
}

func readReport(path string) (*models.DuplicateRateReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report models.DuplicateRateReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}
