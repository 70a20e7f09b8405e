package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docutag/seo-scraper/api"
	"github.com/docutag/seo-scraper/cache"
	"github.com/docutag/seo-scraper/config"
	"github.com/docutag/seo-scraper/db"
	"github.com/docutag/seo-scraper/metrics"
	"github.com/docutag/seo-scraper/storage"
	"github.com/docutag/seo-scraper/tracing"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	config.LoadDotEnv()
	logger.Info("seo scraper service initializing", "version", "1.0.0")

	tp, err := tracing.InitTracer("seo-scraper")
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	defaultMaxURLs, err := strconv.Atoi(getEnv("MAX_BATCH_URLS", "500"))
	if err != nil || defaultMaxURLs <= 0 {
		logger.Warn("invalid MAX_BATCH_URLS value, using default", "provided", os.Getenv("MAX_BATCH_URLS"), "default", 500)
		defaultMaxURLs = 500
	}

	// Command-line flags (override environment variables)
	port := flag.String("port", getEnv("PORT", "8080"), "Server port")
	configPath := flag.String("config", getEnv("SEO_CONFIG", ""), "YAML audit settings file")
	storagePath := flag.String("storage", getEnv("STORAGE_BASE_PATH", "./storage"), "Directory for exported reports")
	maxURLs := flag.Int("max-urls", defaultMaxURLs, "Largest batch accepted by /api/analyze")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	flag.Parse()

	settings := config.Default()
	if *configPath != "" {
		if settings, err = config.Load(*configPath); err != nil {
			logger.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if err := settings.ApplyEnv(os.LookupEnv); err != nil {
		logger.Error("invalid environment override", "error", err)
		os.Exit(1)
	}

	dbConfig, err := databaseConfig(logger)
	if err != nil {
		logger.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	deps := api.Deps{Gatherer: prometheus.DefaultGatherer}
	deps.Metrics = metrics.New("seo_scraper", prometheus.DefaultRegisterer)

	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          bucket,
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "false") == "true",
			Prefix:          os.Getenv("S3_PREFIX"),
		})
		if err != nil {
			logger.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		deps.Store = s3Store
		logger.Info("using S3 report storage", "bucket", bucket)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisConfig := cache.DefaultRedisConfig()
		redisConfig.Addr = addr
		redisConfig.Password = os.Getenv("REDIS_PASSWORD")
		redisConfig.TTL = settings.CacheTTL()
		redisCache, err := cache.NewRedis(redisConfig)
		if err != nil {
			logger.Warn("redis unavailable, falling back to in-memory page cache", "addr", addr, "error", err)
			deps.Cache = cache.NewMemory(settings.CacheTTL())
		} else {
			defer redisCache.Close()
			deps.Cache = redisCache
			logger.Info("using redis page cache", "addr", addr)
		}
	} else if settings.CacheTTLMinutes > 0 {
		deps.Cache = cache.NewMemory(settings.CacheTTL())
	}

	server, err := api.NewServer(api.Config{
		Addr:        ":" + *port,
		DBConfig:    dbConfig,
		Audit:       settings,
		StoragePath: *storagePath,
		CORSEnabled: !*disableCORS,
		MaxURLs:     *maxURLs,
	}, deps)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			deps.Metrics.UpdateDBStats(server.DB().DB())
		}
	}()
	logger.Info("database metrics initialized")

	go func() {
		logger.Info("seo scraper service starting",
			"port", *port,
			"database_driver", dbConfig.Driver,
			"storage_path", *storagePath,
			"workers", settings.MaxConcurrentFetches,
			"similarity_threshold", settings.DuplicateSimilarityThreshold,
			"high_duplicate_threshold", settings.HighDuplicateRateThresholdPercent,
			"tokenizer", settings.Tokenizer,
		)

		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// databaseConfig selects sqlite when DB_DRIVER=sqlite, PostgreSQL otherwise
func databaseConfig(logger *slog.Logger) (db.Config, error) {
	if getEnv("DB_DRIVER", db.DriverPostgres) == db.DriverSQLite {
		path := getEnv("SQLITE_PATH", "./seo.db")
		logger.Info("using SQLite database", "path", path)
		return db.Config{Driver: db.DriverSQLite, DSN: path}, nil
	}

	dbHost := getEnv("DB_HOST", "")
	if dbHost == "" {
		return db.Config{}, fmt.Errorf("DB_HOST environment variable is required")
	}
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "docutag")
	dbPassword := getEnv("DB_PASSWORD", "docutag_dev_pass")
	dbName := getEnv("DB_NAME", "docutag")

	logger.Info("using PostgreSQL database", "host", dbHost, "port", dbPort, "database", dbName)
	return db.Config{
		Driver: db.DriverPostgres,
		DSN:    fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort, dbUser, dbPassword, dbName),
	}, nil
}
