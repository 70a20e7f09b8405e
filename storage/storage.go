package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docutag/seo-scraper/models"
	"github.com/docutag/seo-scraper/slug"
)

// Store persists exported report files. Paths returned by Save are relative
// to the store root and are what the database records.
type Store interface {
	Save(ctx context.Context, data []byte, name, contentType string) (string, error)
	Read(ctx context.Context, relPath string) ([]byte, error)
	Delete(ctx context.Context, relPath string) error
	GetFullPath(relPath string) string
}

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage handles filesystem storage operations
type Storage struct {
	config Config
	now    func() time.Time
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
		now:    time.Now,
	}, nil
}

// Save writes data under reports/YYYY/MM/name.ext, adding a counter when the name is taken.
// Returns the relative file path from the base storage directory.
func (s *Storage) Save(_ context.Context, data []byte, name, contentType string) (string, error) {
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".json"
	}

	dirPath := filepath.Join(s.config.BasePath, filepath.FromSlash(datedDir(s.now())))
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filePath := filepath.Join(dirPath, name+ext)
	for counter := 1; fileExists(filePath); counter++ {
		filePath = filepath.Join(dirPath, slug.MakeUnique(name, counter)+ext)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}
	return filepath.ToSlash(relPath), nil
}

// Read reads a stored file
func (s *Storage) Read(_ context.Context, relPath string) ([]byte, error) {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	return data, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Storage) Delete(_ context.Context, relPath string) error {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete report file: %w", err)
	}
	return nil
}

// GetFullPath returns the full filesystem path for a relative path
func (s *Storage) GetFullPath(relPath string) string {
	return filepath.Join(s.config.BasePath, filepath.FromSlash(relPath))
}

// resolve rejects paths escaping the base directory
func (s *Storage) resolve(relPath string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(relPath))
	if clean == "/" || relPath == "" {
		return "", fmt.Errorf("invalid storage path %q", relPath)
	}
	return s.GetFullPath(strings.TrimPrefix(clean, "/")), nil
}

// SaveReport stores report as indented JSON named after its first URL and ID
func SaveReport(ctx context.Context, store Store, report *models.DuplicateRateReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return store.Save(ctx, data, ReportName(report), "application/json")
}

// ReportName returns the file name stem for a report
func ReportName(report *models.DuplicateRateReport) string {
	id := report.ID
	if len(id) > 8 {
		id = id[:8]
	}
	base := "audit"
	if len(report.URLs) > 0 {
		if host := slug.FromURL(hostOf(report.URLs[0])); host != "" {
			base += "-" + host
		}
	}
	return slug.GenerateWithFallback(base+"-"+id, "audit")
}

func hostOf(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		rest := raw[i+3:]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			rest = rest[:j]
		}
		return raw[:i+3] + rest
	}
	return raw
}

func datedDir(now time.Time) string {
	return fmt.Sprintf("reports/%04d/%02d", now.Year(), int(now.Month()))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// extensionFromContentType returns the file extension for a content type
func extensionFromContentType(contentType string) string {
	contentType = strings.ToLower(strings.Split(contentType, ";")[0])
	contentType = strings.TrimSpace(contentType)

	switch contentType {
	case "application/json":
		return ".json"
	case "text/csv":
		return ".csv"
	case "text/plain":
		return ".txt"
	case "text/html":
		return ".html"
	default:
		return ""
	}
}

// ContentType returns the MIME type a stored file should be served with
func ContentType(relPath string) string {
	switch strings.ToLower(path.Ext(relPath)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}
