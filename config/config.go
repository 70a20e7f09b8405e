// Package config loads audit settings from YAML files and SEO_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	scraper "github.com/docutag/seo-scraper"
	"github.com/docutag/seo-scraper/analyzer"
	"github.com/docutag/seo-scraper/duplicate"
	"github.com/docutag/seo-scraper/textvec"
)

// Tokenizer names
const (
	TokenizerSegmenter = "segmenter"
	TokenizerWord      = "word"
)

// Settings holds every tunable of an audit run
type Settings struct {
	RequestTimeoutSeconds             int      `yaml:"request_timeout_seconds"`
	MaxConcurrentFetches              int      `yaml:"max_concurrent_fetches"`
	DuplicateSimilarityThreshold      float64  `yaml:"duplicate_similarity_threshold"`
	HighDuplicateRateThresholdPercent float64  `yaml:"high_duplicate_rate_threshold_percent"`
	BoilerplateExclusionSubstrings    []string `yaml:"boilerplate_exclusion_substrings"`
	MinimumParagraphLength            int      `yaml:"minimum_paragraph_length"`

	ContentSelectors  []string `yaml:"content_selectors"`
	StripSelectors    []string `yaml:"strip_selectors"`
	RequestsPerSecond float64  `yaml:"requests_per_second"` // 0 disables the limiter
	MaxBodyBytes      int64    `yaml:"max_body_bytes"`
	CacheTTLMinutes   int      `yaml:"cache_ttl_minutes"`
	Tokenizer         string   `yaml:"tokenizer"` // "segmenter" or "word"
}

// Default returns the default settings
func Default() Settings {
	extract := scraper.DefaultExtractOptions()
	detect := duplicate.DefaultOptions()
	return Settings{
		RequestTimeoutSeconds:             15,
		MaxConcurrentFetches:              4,
		DuplicateSimilarityThreshold:      detect.SimilarityThreshold,
		HighDuplicateRateThresholdPercent: detect.HighDuplicateThreshold,
		BoilerplateExclusionSubstrings:    extract.BoilerplateMarkers,
		MinimumParagraphLength:            extract.MinParagraphLength,
		ContentSelectors:                  extract.ContentSelectors,
		StripSelectors:                    extract.StripSelectors,
		MaxBodyBytes:                      scraper.DefaultConfig().MaxBodyBytes,
		CacheTTLMinutes:                   24 * 60,
		Tokenizer:                         TokenizerSegmenter,
	}
}

// Load reads settings from a YAML file. Keys missing from the file keep their defaults.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing YAML: %w", err)
	}
	return s, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
	if len(paths) == 0 {
		_ = godotenv.Load()
	}
}

// ApplyEnv overrides settings from SEO_* variables found through lookup (usually os.LookupEnv).
// List values are separated by '|'.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	intVars := map[string]*int{
		"SEO_REQUEST_TIMEOUT_SECONDS":  &s.RequestTimeoutSeconds,
		"SEO_MAX_CONCURRENT_FETCHES":   &s.MaxConcurrentFetches,
		"SEO_MINIMUM_PARAGRAPH_LENGTH": &s.MinimumParagraphLength,
		"SEO_CACHE_TTL_MINUTES":        &s.CacheTTLMinutes,
	}
	for name, dst := range intVars {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			*dst = n
		}
	}

	floatVars := map[string]*float64{
		"SEO_DUPLICATE_SIMILARITY_THRESHOLD":        &s.DuplicateSimilarityThreshold,
		"SEO_HIGH_DUPLICATE_RATE_THRESHOLD_PERCENT": &s.HighDuplicateRateThresholdPercent,
		"SEO_REQUESTS_PER_SECOND":                   &s.RequestsPerSecond,
	}
	for name, dst := range floatVars {
		if v, ok := lookup(name); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			*dst = f
		}
	}

	if v, ok := lookup("SEO_MAX_BODY_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SEO_MAX_BODY_BYTES %q: %w", v, err)
		}
		s.MaxBodyBytes = n
	}

	listVars := map[string]*[]string{
		"SEO_BOILERPLATE_EXCLUSION_SUBSTRINGS": &s.BoilerplateExclusionSubstrings,
		"SEO_CONTENT_SELECTORS":                &s.ContentSelectors,
		"SEO_STRIP_SELECTORS":                  &s.StripSelectors,
	}
	for name, dst := range listVars {
		if v, ok := lookup(name); ok {
			*dst = splitList(v)
		}
	}

	if v, ok := lookup("SEO_TOKENIZER"); ok && v != "" {
		s.Tokenizer = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that every setting is within range
func (s Settings) Validate() error {
	if s.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", s.RequestTimeoutSeconds)
	}
	if s.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("max_concurrent_fetches must be positive, got %d", s.MaxConcurrentFetches)
	}
	if s.DuplicateSimilarityThreshold <= 0 || s.DuplicateSimilarityThreshold > 1 {
		return fmt.Errorf("duplicate_similarity_threshold must be in (0, 1], got %v", s.DuplicateSimilarityThreshold)
	}
	if s.HighDuplicateRateThresholdPercent < 0 || s.HighDuplicateRateThresholdPercent > 100 {
		return fmt.Errorf("high_duplicate_rate_threshold_percent must be in [0, 100], got %v", s.HighDuplicateRateThresholdPercent)
	}
	if s.MinimumParagraphLength < 0 {
		return fmt.Errorf("minimum_paragraph_length cannot be negative, got %d", s.MinimumParagraphLength)
	}
	if s.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative, got %v", s.RequestsPerSecond)
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", s.MaxBodyBytes)
	}
	if s.CacheTTLMinutes < 0 {
		return fmt.Errorf("cache_ttl_minutes cannot be negative, got %d", s.CacheTTLMinutes)
	}
	switch s.Tokenizer {
	case TokenizerSegmenter, TokenizerWord:
	default:
		return fmt.Errorf("unknown tokenizer %q", s.Tokenizer)
	}
	return nil
}

// ScraperConfig returns the fetch and extraction settings
func (s Settings) ScraperConfig() scraper.Config {
	return scraper.Config{
		HTTPTimeout:  time.Duration(s.RequestTimeoutSeconds) * time.Second,
		MaxBodyBytes: s.MaxBodyBytes,
		Extract: scraper.ExtractOptions{
			ContentSelectors:   s.ContentSelectors,
			StripSelectors:     s.StripSelectors,
			MinParagraphLength: s.MinimumParagraphLength,
			BoilerplateMarkers: s.BoilerplateExclusionSubstrings,
		},
	}
}

// AnalyzerConfig returns the batch pipeline settings
func (s Settings) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		Workers:           s.MaxConcurrentFetches,
		RequestsPerSecond: s.RequestsPerSecond,
		CacheScope:        s.ScraperConfig().Extract.Fingerprint(),
		Detection: duplicate.Options{
			SimilarityThreshold:    s.DuplicateSimilarityThreshold,
			HighDuplicateThreshold: s.HighDuplicateRateThresholdPercent,
		},
	}
}

// CacheTTL returns the page cache entry lifetime
func (s Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

// NewTokenizer builds the configured tokenizer
func (s Settings) NewTokenizer() (textvec.Tokenizer, error) {
	if s.Tokenizer == TokenizerWord {
		return textvec.WordTokenizer{}, nil
	}
	return textvec.NewSegmenter()
}
