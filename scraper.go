package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/docutag/seo-scraper/models"
	"github.com/gogs/chardet"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Failure reasons recorded on PageRecord.Error
const (
	ReasonFetchFailed  = "unable to fetch page content"
	ReasonNoParagraphs = "no valid paragraphs found"
)

// Config contains scraper configuration
type Config struct {
	HTTPTimeout  time.Duration
	MaxBodyBytes int64 // Maximum response body size to read (bytes)
	Extract      ExtractOptions
}

// DefaultConfig returns default scraper configuration
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:  15 * time.Second,
		MaxBodyBytes: 10 * 1024 * 1024, // 10MB
		Extract:      DefaultExtractOptions(),
	}
}

// browserHeaders mimic a desktop Chrome on a Chinese locale so trivial bot filters let us through
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
}

// Scraper fetches pages and turns them into PageRecords
type Scraper struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Scraper instance
func New(config Config) *Scraper {
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = DefaultConfig().HTTPTimeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return &Scraper{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.HTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// HTTPClient returns the instrumented client used for page fetches
func (s *Scraper) HTTPClient() *http.Client {
	return s.httpClient
}

// FetchResult is the outcome of a single page fetch. HTML is empty and Failure
// carries the reason when no document could be retrieved.
type FetchResult struct {
	URL        string
	HTML       string
	Encoding   string
	StatusCode int
	Failure    string
	Duration   time.Duration
}

// OK reports whether a document was retrieved
func (r FetchResult) OK() bool {
	return r.Failure == ""
}

// Fetch retrieves targetURL and decodes the body to text. Network errors, timeouts and
// non-2xx statuses are reported through FetchResult.Failure, never as an error.
func (s *Scraper) Fetch(ctx context.Context, targetURL string) (result FetchResult) {
	start := time.Now()
	result.URL = targetURL
	defer func() {
		result.Duration = time.Since(start)
		if !result.OK() {
			slog.Warn("fetch failed", "url", targetURL, "reason", result.Failure, "duration", result.Duration)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		result.Failure = fmt.Sprintf("failed to create request: %v", err)
		return result
	}
	for key, value := range browserHeaders {
		req.Header.Set(key, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		result.Failure = fmt.Sprintf("failed to fetch URL: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Failure = fmt.Sprintf("HTTP error: %s", resp.Status)
		return result
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodyBytes))
	if err != nil {
		result.Failure = fmt.Sprintf("failed to read response body: %v", err)
		return result
	}

	result.HTML, result.Encoding = DecodeBody(body, resp.Header.Get("Content-Type"))
	return result
}

// Analyze fetches targetURL and extracts its body paragraphs
func (s *Scraper) Analyze(ctx context.Context, targetURL string) models.PageRecord {
	fetched := s.Fetch(ctx, targetURL)
	if !fetched.OK() {
		return models.PageRecord{
			URL:        targetURL,
			Paragraphs: []string{},
			Error:      fmt.Sprintf("%s: %s", ReasonFetchFailed, fetched.Failure),
			Directory:  ExtractDirectory(targetURL),
		}
	}

	record := s.AnalyzeDocument(targetURL, fetched.HTML)
	record.Encoding = fetched.Encoding
	return record
}

// AnalyzeDocument extracts a PageRecord from an already fetched HTML document
func (s *Scraper) AnalyzeDocument(targetURL, htmlDoc string) models.PageRecord {
	record := models.PageRecord{
		URL:        targetURL,
		Paragraphs: []string{},
		Directory:  ExtractDirectory(targetURL),
	}

	doc, err := ParseDocument(htmlDoc)
	if err != nil {
		record.Error = fmt.Sprintf("%s: %v", ReasonFetchFailed, err)
		slog.Warn("failed to parse HTML", "url", targetURL, "error", err)
		return record
	}

	record.PublishDate = ExtractPublishDate(doc)
	paragraphs := ExtractParagraphs(doc, s.config.Extract)
	if len(paragraphs) == 0 {
		record.Error = ReasonNoParagraphs
		slog.Warn("no paragraphs extracted", "url", targetURL)
		return record
	}

	record.Success = true
	record.Paragraphs = paragraphs
	record.TotalParagraphs = len(paragraphs)
	return record
}

// ambiguousCharsets are declared encodings that servers send by default and that say
// nothing reliable about the bytes, so the body is sniffed instead.
var ambiguousCharsets = map[string]bool{
	"":             true,
	"iso-8859-1":   true,
	"iso8859-1":    true,
	"latin1":       true,
	"latin-1":      true,
	"windows-1252": true,
	"us-ascii":     true,
}

// chardetAliases maps detector charset names that htmlindex does not know
var chardetAliases = map[string]string{
	"gb-18030":     "gb18030",
	"iso-8859-8-i": "iso-8859-8",
}

// DecodeBody converts a raw response body to UTF-8 text and returns the charset used.
// An explicit, non-default charset is trusted; otherwise statistical detection runs on
// the bytes, then the HTML meta prescan.
func DecodeBody(body []byte, contentType string) (string, string) {
	declared := declaredCharset(contentType)
	if !ambiguousCharsets[declared] {
		if enc, err := htmlindex.Get(declared); err == nil {
			return decodeWith(enc, body)
		}
	}

	if name := detectCharset(body); name != "" {
		if enc, err := htmlindex.Get(name); err == nil {
			return decodeWith(enc, body)
		}
	}

	enc, _, _ := charset.DetermineEncoding(body, "")
	return decodeWith(enc, body)
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}

func detectCharset(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil || result.Charset == "" {
		return ""
	}
	name := strings.ToLower(result.Charset)
	if alias, ok := chardetAliases[name]; ok {
		return alias
	}
	return name
}

func decodeWith(enc encoding.Encoding, body []byte) (string, string) {
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = "utf-8"
	}
	if name == "utf-8" {
		return string(body), name
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body), "utf-8"
	}
	return string(decoded), name
}

// parseHTML parses a document with the HTML5 parser
func parseHTML(htmlDoc string) (*html.Node, error) {
	root, err := html.Parse(strings.NewReader(htmlDoc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return root, nil
}
