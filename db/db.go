package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"

	"github.com/docutag/seo-scraper/models"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNotFound is returned by operations addressing a report that does not exist
var ErrNotFound = errors.New("report not found")

// DB wraps the database connection and provides data access methods
type DB struct {
	conn   *sql.DB
	driver string
}

// Config contains database configuration
type Config struct {
	Driver string // "postgres" (default) or "sqlite"
	DSN    string // Connection string, or file path for sqlite
}

// New opens the database and applies pending migrations
func New(config Config) (*DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent requests
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := Migrate(conn, driver); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// Driver returns the driver name the connection was opened with
func (db *DB) Driver() string {
	return db.driver
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to SQLite's ?N form
func rebind(driver, query string) string {
	if driver != DriverSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

func (db *DB) q(query string) string {
	return rebind(db.driver, query)
}

// SaveReport stores a report and one history row per URL. filePath is the
// storage location of the exported report, empty when it was not exported.
func (db *DB) SaveReport(ctx context.Context, report *models.DuplicateRateReport, filePath string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	jsonData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	createdAt := report.CreatedAt.UTC()
	_, err = tx.ExecContext(ctx, db.q(`
		INSERT INTO seo_reports (id, created_at, total_urls, successful_urls, total_paragraphs, high_duplicate_count, avg_duplicate_rate, data, file_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(id) DO UPDATE SET
			total_urls = excluded.total_urls,
			successful_urls = excluded.successful_urls,
			total_paragraphs = excluded.total_paragraphs,
			high_duplicate_count = excluded.high_duplicate_count,
			avg_duplicate_rate = excluded.avg_duplicate_rate,
			data = excluded.data,
			file_path = excluded.file_path
	`),
		report.ID,
		createdAt,
		report.Stats.TotalURLs,
		report.Stats.SuccessfulURLs,
		report.Stats.TotalParagraphs,
		report.Stats.HighDuplicateCount,
		report.Stats.AverageDuplicateRate,
		string(jsonData),
		filePath,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, db.q("DELETE FROM seo_report_pages WHERE report_id = $1"), report.ID); err != nil {
		return fmt.Errorf("failed to delete old report pages: %w", err)
	}

	pageQuery := db.q(`
		INSERT INTO seo_report_pages (report_id, url, directory, success, total_paragraphs, duplicate_rate, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	for _, u := range report.URLs {
		page := report.Pages[u]
		if _, err := tx.ExecContext(ctx, pageQuery,
			report.ID,
			u,
			page.Directory,
			page.Success,
			page.TotalParagraphs,
			report.Rate(u),
			page.Error,
			createdAt,
		); err != nil {
			return fmt.Errorf("failed to save page %s: %w", u, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetReport retrieves a report by ID. It returns nil, nil when the report does not exist.
func (db *DB) GetReport(ctx context.Context, id string) (*models.DuplicateRateReport, error) {
	var jsonData string
	err := db.conn.QueryRowContext(ctx, db.q("SELECT data FROM seo_reports WHERE id = $1"), id).Scan(&jsonData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	var report models.DuplicateRateReport
	if err := json.Unmarshal([]byte(jsonData), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// ReportFilePath returns the storage path recorded for a report
func (db *DB) ReportFilePath(ctx context.Context, id string) (string, error) {
	var path string
	err := db.conn.QueryRowContext(ctx, db.q("SELECT file_path FROM seo_reports WHERE id = $1"), id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query report file path: %w", err)
	}
	return path, nil
}

// DeleteReport removes a report and its page history
func (db *DB) DeleteReport(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// sqlite leaves foreign keys off per connection, so pages go explicitly
	if _, err := tx.ExecContext(ctx, db.q("DELETE FROM seo_report_pages WHERE report_id = $1"), id); err != nil {
		return fmt.Errorf("failed to delete report pages: %w", err)
	}
	result, err := tx.ExecContext(ctx, db.q("DELETE FROM seo_reports WHERE id = $1"), id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return tx.Commit()
}

// ListReports returns report summaries, newest first
func (db *DB) ListReports(ctx context.Context, limit, offset int) ([]models.ReportListItem, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(`
		SELECT id, created_at, total_urls, high_duplicate_count, avg_duplicate_rate
		FROM seo_reports
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	items := []models.ReportListItem{}
	for rows.Next() {
		var item models.ReportListItem
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.TotalURLs, &item.HighDuplicateCount, &item.AverageDuplicateRate); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return items, nil
}

// Count returns the number of stored reports
func (db *DB) Count(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM seo_reports").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// URLHistory returns the recorded duplicate rates of url across reports, newest first
func (db *DB) URLHistory(ctx context.Context, url string, limit int) ([]models.URLHistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(`
		SELECT report_id, url, success, total_paragraphs, duplicate_rate, created_at
		FROM seo_report_pages
		WHERE url = $1
		ORDER BY created_at DESC, report_id
		LIMIT $2
	`), url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query url history: %w", err)
	}
	defer rows.Close()

	entries := []models.URLHistoryEntry{}
	for rows.Next() {
		var e models.URLHistoryEntry
		if err := rows.Scan(&e.ReportID, &e.URL, &e.Success, &e.TotalParagraphs, &e.DuplicateRate, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

// DirectoryStats aggregates the latest stored rates per directory
type DirectoryStats struct {
	Directory            string  `json:"directory"`
	Observations         int     `json:"observations"`
	AverageDuplicateRate float64 `json:"avg_duplicate_rate"`
	MaxDuplicateRate     float64 `json:"max_duplicate_rate"`
}

// DirectoryRates rolls up every stored successful page observation by directory
func (db *DB) DirectoryRates(ctx context.Context) ([]DirectoryStats, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT directory, COUNT(*), AVG(duplicate_rate), MAX(duplicate_rate)
		FROM seo_report_pages
		WHERE success
		GROUP BY directory
		ORDER BY directory
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query directory rates: %w", err)
	}
	defer rows.Close()

	stats := []DirectoryStats{}
	for rows.Next() {
		var s DirectoryStats
		if err := rows.Scan(&s.Directory, &s.Observations, &s.AverageDuplicateRate, &s.MaxDuplicateRate); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return stats, nil
}
