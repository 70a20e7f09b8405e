package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	scraper "github.com/docutag/seo-scraper"
	"github.com/docutag/seo-scraper/analyzer"
	"github.com/docutag/seo-scraper/cache"
	"github.com/docutag/seo-scraper/config"
	"github.com/docutag/seo-scraper/db"
	"github.com/docutag/seo-scraper/models"
	"github.com/docutag/seo-scraper/storage"
	"github.com/docutag/seo-scraper/urls"
)

var errHighDuplicates = errors.New("high-duplicate pages found")

type analyzeOptions struct {
	urlFile       string
	feedURL       string
	paragraphFile string
	configPath    string
	outPath       string
	csvPath       string
	dbPath        string
	archiveDir    string
	redisAddr     string
	top           int
	failOnHigh    bool

	workers       int
	threshold     float64
	highThreshold float64
	tokenizer     string
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze [url...]",
	Short: "Run a duplicate-content audit",
	Long: `Run one audit batch. URLs come from arguments, --urls (one per line, "-" for stdin),
--feed (RSS or Atom item links) and --paragraphs (JSON object of url to paragraph list).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAnalyze(ctx, cmd, args, analyzeOpts)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.urlFile, "urls", "", "File with one URL per line, - for stdin")
	f.StringVar(&analyzeOpts.feedURL, "feed", "", "RSS or Atom feed whose item links are audited")
	f.StringVar(&analyzeOpts.paragraphFile, "paragraphs", "", "JSON file mapping URL to pre-extracted paragraphs")
	f.StringVarP(&analyzeOpts.configPath, "config", "c", "", "YAML settings file")
	f.StringVarP(&analyzeOpts.outPath, "out", "o", "", "Write the JSON report to this file")
	f.StringVar(&analyzeOpts.csvPath, "csv", "", "Write per-URL rates as CSV to this file")
	f.StringVar(&analyzeOpts.dbPath, "db", "", "SQLite database that keeps report history")
	f.StringVar(&analyzeOpts.archiveDir, "archive", "", "Directory where the JSON report and rates CSV are archived by month")
	f.StringVar(&analyzeOpts.redisAddr, "redis", os.Getenv("REDIS_ADDR"), "Redis address for the page cache")
	f.IntVar(&analyzeOpts.top, "top", 10, "Number of worst pages to list")
	f.BoolVar(&analyzeOpts.failOnHigh, "fail-on-high", false, "Exit non-zero when any page is high-duplicate")
	f.IntVar(&analyzeOpts.workers, "workers", 0, "Concurrent fetches (overrides config)")
	f.Float64Var(&analyzeOpts.threshold, "threshold", 0, "Cosine similarity threshold (overrides config)")
	f.Float64Var(&analyzeOpts.highThreshold, "high-threshold", -1, "High-duplicate rate threshold in percent (overrides config)")
	f.StringVar(&analyzeOpts.tokenizer, "tokenizer", "", "segmenter or word (overrides config)")
	rootCmd.AddCommand(analyzeCmd)
}

// loadSettings resolves settings from defaults, file, SEO_* environment and flags, in that order
func loadSettings(opts analyzeOptions) (config.Settings, error) {
	settings := config.Default()
	if opts.configPath != "" {
		var err error
		if settings, err = config.Load(opts.configPath); err != nil {
			return settings, err
		}
	}
	if err := settings.ApplyEnv(os.LookupEnv); err != nil {
		return settings, err
	}
	if opts.workers > 0 {
		settings.MaxConcurrentFetches = opts.workers
	}
	if opts.threshold > 0 {
		settings.DuplicateSimilarityThreshold = opts.threshold
	}
	if opts.highThreshold >= 0 {
		settings.HighDuplicateRateThresholdPercent = opts.highThreshold
	}
	if opts.tokenizer != "" {
		settings.Tokenizer = opts.tokenizer
	}
	return settings, settings.Validate()
}

// collectBatch gathers the batch input from arguments, files and feeds
func collectBatch(ctx context.Context, cmd *cobra.Command, args []string, opts analyzeOptions, s *scraper.Scraper) (analyzer.Batch, error) {
	batch := analyzer.Batch{URLs: append([]string{}, args...)}

	if opts.urlFile != "" {
		var list []string
		var err error
		if opts.urlFile == "-" {
			list, err = urls.ReadList(cmd.InOrStdin())
		} else {
			list, err = urls.ReadFile(opts.urlFile)
		}
		if err != nil {
			return batch, err
		}
		batch.URLs = append(batch.URLs, list...)
	}

	if opts.feedURL != "" {
		list, err := urls.FromFeed(ctx, s.HTTPClient(), opts.feedURL)
		if err != nil {
			return batch, err
		}
		batch.URLs = append(batch.URLs, list...)
	}

	if opts.paragraphFile != "" {
		data, err := os.ReadFile(opts.paragraphFile)
		if err != nil {
			return batch, fmt.Errorf("failed to read paragraphs file: %w", err)
		}
		if err := json.Unmarshal(data, &batch.Paragraphs); err != nil {
			return batch, fmt.Errorf("failed to parse paragraphs file: %w", err)
		}
	}

	batch.URLs = urls.Dedupe(batch.URLs)
	if err := urls.Validate(batch.URLs); err != nil {
		return batch, err
	}
	if len(batch.Order()) == 0 {
		return batch, errors.New("no URLs to audit: pass URLs as arguments or use --urls, --feed or --paragraphs")
	}
	return batch, nil
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, args []string, opts analyzeOptions) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	tokenizer, err := settings.NewTokenizer()
	if err != nil {
		return err
	}
	s := scraper.New(settings.ScraperConfig())

	batch, err := collectBatch(ctx, cmd, args, opts, s)
	if err != nil {
		return err
	}

	deps := analyzer.Deps{Pages: s, Tokenizer: tokenizer}
	if opts.redisAddr != "" {
		redisConfig := cache.DefaultRedisConfig()
		redisConfig.Addr = opts.redisAddr
		redisConfig.TTL = settings.CacheTTL()
		if c, err := cache.NewRedis(redisConfig); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: redis cache disabled: %v\n", err)
		} else {
			defer c.Close()
			deps.Cache = c
		}
	}

	a, err := analyzer.New(settings.AnalyzerConfig(), deps)
	if err != nil {
		return err
	}
	report := a.Run(ctx, batch)

	if err := writeOutputs(ctx, report, opts); err != nil {
		return err
	}

	writeSummary(cmd.OutOrStdout(), report, opts.top)

	if opts.failOnHigh && report.Stats.HighDuplicateCount > 0 {
		return errHighDuplicates
	}
	return nil
}

func writeOutputs(ctx context.Context, report *models.DuplicateRateReport, opts analyzeOptions) error {
	if opts.outPath != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := os.WriteFile(opts.outPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if opts.csvPath != "" {
		data, err := storage.RatesCSV(report)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.csvPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	}

	filePath := opts.outPath
	if opts.archiveDir != "" {
		store, err := storage.New(storage.Config{BasePath: opts.archiveDir})
		if err != nil {
			return err
		}
		rel, err := storage.SaveReport(ctx, store, report)
		if err != nil {
			return err
		}
		if _, err := storage.SaveRatesCSV(ctx, store, report); err != nil {
			return err
		}
		filePath = store.GetFullPath(rel)
	}

	if opts.dbPath != "" {
		database, err := db.New(db.Config{Driver: db.DriverSQLite, DSN: opts.dbPath})
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.SaveReport(ctx, report, filePath); err != nil {
			return err
		}
	}
	return nil
}
