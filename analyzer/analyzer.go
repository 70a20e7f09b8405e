// Package analyzer runs a duplicate-content audit batch: a bounded concurrent
// fetch and extract phase followed by a single global similarity phase.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	scraper "github.com/docutag/seo-scraper"
	"github.com/docutag/seo-scraper/cache"
	"github.com/docutag/seo-scraper/duplicate"
	"github.com/docutag/seo-scraper/metrics"
	"github.com/docutag/seo-scraper/models"
	"github.com/docutag/seo-scraper/textvec"
	"github.com/docutag/seo-scraper/tracing"
	"github.com/docutag/seo-scraper/urls"
)

// PageSource produces the PageRecord of a single URL. Failures are reported on the
// record, never returned.
type PageSource interface {
	Analyze(ctx context.Context, url string) models.PageRecord
}

// Config contains batch pipeline configuration
type Config struct {
	Workers           int     // Concurrent fetches in phase one
	RequestsPerSecond float64 // Global fetch rate across workers; 0 means unlimited
	// CacheScope namespaces page cache keys. Records extracted under different
	// extraction settings must use different scopes.
	CacheScope string
	Detection  duplicate.Options
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		Detection: duplicate.DefaultOptions(),
	}
}

// Deps are the collaborators of an Analyzer. Pages and Tokenizer are required.
type Deps struct {
	Pages     PageSource
	Tokenizer textvec.Tokenizer
	Cache     cache.PageCache  // optional
	Metrics   *metrics.Metrics // optional
}

// Batch is the input of one audit run
type Batch struct {
	URLs []string
	// Paragraphs holds pre-extracted paragraph sets; those URLs are not fetched
	Paragraphs map[string][]string
}

// Analyzer runs audit batches
type Analyzer struct {
	config   Config
	pages    PageSource
	cache    cache.PageCache
	metrics  *metrics.Metrics
	detector *duplicate.Detector
	limiter  *rate.Limiter
	tracer   trace.Tracer
}

// New creates an Analyzer
func New(config Config, deps Deps) (*Analyzer, error) {
	if deps.Pages == nil {
		return nil, fmt.Errorf("page source is required")
	}
	if deps.Tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}

	a := &Analyzer{
		config:   config,
		pages:    deps.Pages,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		detector: duplicate.NewDetector(deps.Tokenizer, config.Detection),
		tracer:   tracing.Tracer(),
	}
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return a, nil
}

// Order returns the URLs of a batch in processing order: input order with repeats
// removed, followed by pre-extracted URLs that are not in the input, sorted.
func (b Batch) Order() []string {
	order := urls.Dedupe(b.URLs)
	seen := make(map[string]struct{}, len(order))
	for _, u := range order {
		seen[u] = struct{}{}
	}
	var extra []string
	for u := range b.Paragraphs {
		if _, ok := seen[u]; !ok {
			extra = append(extra, u)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// Run executes one batch. Per-URL failures are recorded in the report; Run itself never fails.
func (a *Analyzer) Run(ctx context.Context, batch Batch) *models.DuplicateRateReport {
	start := time.Now()
	order := batch.Order()

	ctx, span := a.tracer.Start(ctx, "analyzer.Run", trace.WithAttributes(attribute.Int("urls", len(order))))
	defer span.End()

	slog.Info("starting duplicate audit", "urls", len(order), "workers", a.config.Workers)

	pages := a.collect(ctx, order, batch.Paragraphs)

	_, simSpan := a.tracer.Start(ctx, "analyzer.similarity")
	simStart := time.Now()
	report := a.detector.Detect(order, pages)
	a.metrics.ObservePhase(metrics.PhaseSimilarity, time.Since(simStart))
	simSpan.SetAttributes(
		attribute.Int("paragraphs", report.Stats.TotalParagraphs),
		attribute.Bool("skipped", report.Stats.SimilarityPhaseSkipped),
	)
	simSpan.End()

	report.ID = uuid.New().String()
	report.CreatedAt = time.Now().UTC()
	report.ProcessingTime = time.Since(start).Seconds()

	a.metrics.ObserveBatch(report.Stats.TotalParagraphs, report.Stats.HighDuplicateCount)
	span.SetAttributes(
		attribute.String("report.id", report.ID),
		attribute.Int("high_duplicate_count", report.Stats.HighDuplicateCount),
	)

	slog.Info("duplicate audit complete",
		"report_id", report.ID,
		"urls", report.Stats.TotalURLs,
		"successful", report.Stats.SuccessfulURLs,
		"paragraphs", report.Stats.TotalParagraphs,
		"high_duplicate", report.Stats.HighDuplicateCount,
		"avg_rate", report.Stats.AverageDuplicateRate,
		"duration", time.Since(start))

	return report
}

// collect runs phase one. Workers hand finished records to a single collector that
// owns the result map; the map is returned only after every worker has finished.
func (a *Analyzer) collect(ctx context.Context, order []string, prefetched map[string][]string) map[string]models.PageRecord {
	ctx, span := a.tracer.Start(ctx, "analyzer.fetch")
	defer span.End()
	phaseStart := time.Now()

	results := make(chan models.PageRecord)
	pages := make(map[string]models.PageRecord, len(order))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for record := range results {
			pages[record.URL] = record
		}
	}()

	var g errgroup.Group
	g.SetLimit(a.config.Workers)
	for _, u := range order {
		g.Go(func() error {
			results <- a.page(ctx, u, prefetched)
			return nil // per-URL failures live on the record
		})
	}
	_ = g.Wait()
	close(results)
	<-done

	a.metrics.ObservePhase(metrics.PhaseFetch, time.Since(phaseStart))
	return pages
}

// page produces the record for one URL from pre-extracted paragraphs, the cache or the network
func (a *Analyzer) page(ctx context.Context, u string, prefetched map[string][]string) models.PageRecord {
	start := time.Now()

	if paragraphs, ok := prefetched[u]; ok {
		record := FromParagraphs(u, paragraphs)
		a.metrics.ObservePage(metrics.OutcomePrefetched, record.TotalParagraphs, time.Since(start))
		return record
	}

	if a.cache != nil {
		record, ok, err := a.cache.Get(ctx, a.cacheKey(u))
		if err != nil {
			slog.Warn("page cache read failed", "url", u, "error", err)
		}
		if ok {
			record.Cached = true
			a.metrics.ObservePage(metrics.OutcomeCached, record.TotalParagraphs, time.Since(start))
			return record
		}
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			record := failedRecord(u, fmt.Sprintf("%s: %v", scraper.ReasonFetchFailed, err))
			a.metrics.ObservePage(metrics.OutcomeFetchFailed, 0, time.Since(start))
			return record
		}
	}

	record := a.pages.Analyze(ctx, u)
	if record.URL == "" {
		record.URL = u
	}
	if record.Paragraphs == nil {
		record.Paragraphs = []string{}
	}

	switch {
	case record.Success:
		a.metrics.ObservePage(metrics.OutcomeSuccess, record.TotalParagraphs, time.Since(start))
		if a.cache != nil {
			if err := a.cache.Set(ctx, a.cacheKey(u), record); err != nil {
				slog.Warn("page cache write failed", "url", u, "error", err)
			}
		}
	case record.Error == scraper.ReasonNoParagraphs:
		a.metrics.ObservePage(metrics.OutcomeNoParagraphs, 0, time.Since(start))
	default:
		a.metrics.ObservePage(metrics.OutcomeFetchFailed, 0, time.Since(start))
	}
	return record
}

func (a *Analyzer) cacheKey(u string) string {
	if a.config.CacheScope == "" {
		return u
	}
	return a.config.CacheScope + ":" + u
}

// FromParagraphs builds a PageRecord from already extracted paragraphs.
// Whitespace is normalised and empty entries are dropped.
func FromParagraphs(u string, paragraphs []string) models.PageRecord {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = scraper.NormalizeWhitespace(p); p != "" {
			kept = append(kept, p)
		}
	}
	record := models.PageRecord{
		URL:             u,
		Success:         len(kept) > 0,
		Paragraphs:      kept,
		TotalParagraphs: len(kept),
		Directory:       scraper.ExtractDirectory(u),
	}
	if !record.Success {
		record.Error = scraper.ReasonNoParagraphs
	}
	return record
}

func failedRecord(u, reason string) models.PageRecord {
	return models.PageRecord{
		URL:        u,
		Paragraphs: []string{},
		Error:      reason,
		Directory:  scraper.ExtractDirectory(u),
	}
}
