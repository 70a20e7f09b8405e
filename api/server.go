package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	scraper "github.com/docutag/seo-scraper"
	"github.com/docutag/seo-scraper/analyzer"
	"github.com/docutag/seo-scraper/cache"
	"github.com/docutag/seo-scraper/config"
	"github.com/docutag/seo-scraper/db"
	"github.com/docutag/seo-scraper/metrics"
	"github.com/docutag/seo-scraper/models"
	"github.com/docutag/seo-scraper/storage"
	"github.com/docutag/seo-scraper/urls"
)

// Server represents the API server
type Server struct {
	db          *db.DB
	scraper     *scraper.Scraper
	analyzer    *analyzer.Analyzer
	storage     storage.Store
	gatherer    prometheus.Gatherer
	addr        string
	maxURLs     int
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
}

// Config contains server configuration
type Config struct {
	Addr        string
	DBConfig    db.Config
	Audit       config.Settings
	StoragePath string
	CORSEnabled bool
	MaxURLs     int // Largest batch accepted by /api/analyze
}

// Deps are optional collaborators. Zero values fall back to filesystem storage,
// no page cache, and no metrics.
type Deps struct {
	Store    storage.Store
	Cache    cache.PageCache
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // Served on /metrics when set
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		Audit:       config.Default(),
		StoragePath: storage.DefaultConfig().BasePath,
		CORSEnabled: true,
		MaxURLs:     500,
	}
}

// NewServer creates a new API server
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Audit.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audit settings: %w", err)
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = DefaultConfig().MaxURLs
	}

	database, err := db.New(cfg.DBConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := deps.Store
	if store == nil {
		fs, err := storage.New(storage.Config{BasePath: cfg.StoragePath})
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		store = fs
	}

	tokenizer, err := cfg.Audit.NewTokenizer()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	scraperInstance := scraper.New(cfg.Audit.ScraperConfig())
	analyzerInstance, err := analyzer.New(cfg.Audit.AnalyzerConfig(), analyzer.Deps{
		Pages:     scraperInstance,
		Tokenizer: tokenizer,
		Cache:     deps.Cache,
		Metrics:   deps.Metrics,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	s := &Server{
		db:          database,
		scraper:     scraperInstance,
		analyzer:    analyzerInstance,
		storage:     store,
		gatherer:    deps.Gatherer,
		addr:        cfg.Addr,
		maxURLs:     cfg.MaxURLs,
		mux:         http.NewServeMux(),
		corsEnabled: cfg.CORSEnabled,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      otelhttp.NewHandler(s.middleware(s.mux), "seo-scraper"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // Allow time for large batches
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/api/reports/", s.handleReport) // Handles /api/reports/{id}, /file and /rates.csv
	s.mux.HandleFunc("/api/reports", s.handleList)
	s.mux.HandleFunc("/api/urls/history", s.handleURLHistory)
	s.mux.HandleFunc("/api/directories", s.handleDirectories)
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// DB returns the database, for metrics collection
func (s *Server) DB() *db.DB {
	return s.db
}

// Start starts the API server
func (s *Server) Start() error {
	slog.Info("starting API server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down API server")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// health checks and metric scrapes are not logged
		quiet := r.URL.Path == "/health" || r.URL.Path == "/metrics"
		start := time.Now()
		next.ServeHTTP(w, r)
		if !quiet {
			slog.Info("request completed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, err := s.db.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get count")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"reports": count,
		"time":    time.Now(),
	})
}

// handleAnalyze runs one audit batch and stores the report
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	list := req.URLs
	if req.FeedURL != "" {
		fromFeed, err := urls.FromFeed(r.Context(), s.scraper.HTTPClient(), req.FeedURL)
		if err != nil {
			slog.Warn("feed fetch failed", "feed_url", req.FeedURL, "error", err)
			respondError(w, http.StatusBadGateway, "failed to read feed")
			return
		}
		list = append(list, fromFeed...)
	}
	list = urls.Dedupe(list)

	if len(list) == 0 && len(req.Paragraphs) == 0 {
		respondError(w, http.StatusBadRequest, "urls, feed_url or paragraphs is required")
		return
	}
	if err := urls.Validate(list); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	batch := analyzer.Batch{URLs: list, Paragraphs: req.Paragraphs}
	if n := len(batch.Order()); n > s.maxURLs {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("batch of %d urls exceeds limit of %d", n, s.maxURLs))
		return
	}

	report := s.analyzer.Run(r.Context(), batch)

	filePath, err := storage.SaveReport(r.Context(), s.storage, report)
	if err != nil {
		slog.Warn("failed to export report", "report_id", report.ID, "error", err)
		filePath = ""
	}
	if err := s.db.SaveReport(r.Context(), report, filePath); err != nil {
		slog.Error("failed to save report", "report_id", report.ID, "error", err)
		if filePath != "" {
			if err := s.storage.Delete(r.Context(), filePath); err != nil {
				slog.Warn("failed to remove orphaned report file", "path", filePath, "error", err)
			}
		}
		respondError(w, http.StatusInternalServerError, "failed to save report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// handleReport handles GET and DELETE for one report plus its file views
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	if path == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if id, ok := strings.CutSuffix(path, "/file"); ok {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleServeReportFile(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(path, "/rates.csv"); ok {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleRatesCSV(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetReport(w, r, path)
	case http.MethodDelete:
		s.handleDeleteReport(w, r, path)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, id string) {
	report, err := s.db.GetReport(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request, id string) {
	filePath, err := s.db.ReportFilePath(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := s.db.DeleteReport(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "report not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete report")
		return
	}

	if filePath != "" {
		if err := s.storage.Delete(r.Context(), filePath); err != nil {
			slog.Warn("failed to delete report file", "report_id", id, "path", filePath, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "report deleted successfully",
	})
}

// handleServeReportFile streams the exported JSON report from storage
func (s *Server) handleServeReportFile(w http.ResponseWriter, r *http.Request, id string) {
	filePath, err := s.db.ReportFilePath(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if filePath == "" {
		respondError(w, http.StatusNotFound, "report file not available")
		return
	}

	data, err := s.storage.Read(r.Context(), filePath)
	if err != nil {
		slog.Error("failed to read report file", "report_id", id, "path", filePath, "error", err)
		respondError(w, http.StatusNotFound, "report file not available")
		return
	}

	w.Header().Set("Content-Type", storage.ContentType(filePath))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// reports are immutable once written
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleRatesCSV(w http.ResponseWriter, r *http.Request, id string) {
	report, err := s.db.GetReport(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}

	data, err := storage.RatesCSV(report)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to render csv")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", storage.ReportName(report)+"-rates.csv"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleList lists stored reports with pagination
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, offset := pagination(r, 20, 100)

	items, err := s.db.ListReports(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	count, _ := s.db.Count(r.Context())

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reports": items,
		"total":   count,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleURLHistory returns the stored rate history of one URL
func (s *Server) handleURLHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	limit, _ := pagination(r, 50, 500)

	history, err := s.db.URLHistory(r.Context(), target, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"url":     target,
		"history": history,
	})
}

// handleDirectories returns stored rates rolled up by directory
func (s *Server) handleDirectories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.db.DirectoryRates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"directories": stats,
	})
}

// pagination reads limit and offset, clamping limit to [1, maxLimit]
func pagination(r *http.Request, def, maxLimit int) (limit, offset int) {
	limit = def
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	if limit < 1 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, offset
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
