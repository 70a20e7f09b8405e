package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/docutag/seo-scraper/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "seo.db")})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testReport(id string, createdAt time.Time, rates map[string]float64) *models.DuplicateRateReport {
	report := &models.DuplicateRateReport{
		ID:                  id,
		CreatedAt:           createdAt,
		Pages:               map[string]models.PageRecord{},
		DuplicateRates:      map[string]float64{},
		DuplicateParagraphs: map[string][]models.DuplicateRecord{},
	}
	for _, u := range []string{"https://example.com/news/a", "https://example.com/news/b", "https://example.com/about"} {
		rate, ok := rates[u]
		if !ok {
			continue
		}
		report.URLs = append(report.URLs, u)
		report.Pages[u] = models.PageRecord{URL: u, Success: true, TotalParagraphs: 4, Directory: dirOf(u), Paragraphs: []string{}}
		report.DuplicateRates[u] = rate
		report.DuplicateParagraphs[u] = []models.DuplicateRecord{}
		if rate >= 15 {
			report.Stats.HighDuplicateCount++
		}
	}
	report.Stats.TotalURLs = len(report.URLs)
	report.Stats.SuccessfulURLs = len(report.URLs)
	report.Stats.TotalParagraphs = 4 * len(report.URLs)
	return report
}

func dirOf(u string) string {
	if u == "https://example.com/about" {
		return "example.com/about"
	}
	return "example.com/news"
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(Config{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = $1 AND b = $12"
	if got := rebind(DriverSQLite, q); got != "SELECT * FROM t WHERE a = ?1 AND b = ?12" {
		t.Errorf("rebind(sqlite) = %q", got)
	}
	if got := rebind(DriverPostgres, q); got != q {
		t.Errorf("rebind(postgres) = %q", got)
	}
}

func TestMigrationsApplied(t *testing.T) {
	db := setupTestDB(t)

	status, err := GetMigrationStatus(db.DB(), db.Driver())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(status) != len(sqliteMigrations) {
		t.Fatalf("expected %d migrations, got %d", len(sqliteMigrations), len(status))
	}
	for _, s := range status {
		if !s.Applied {
			t.Errorf("migration %d (%s) not applied", s.Version, s.Name)
		}
	}

	// running again is a no-op
	if err := Migrate(db.DB(), db.Driver()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestRollback(t *testing.T) {
	db := setupTestDB(t)

	if err := Rollback(db.DB(), db.Driver()); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	status, err := GetMigrationStatus(db.DB(), db.Driver())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	last := status[len(status)-1]
	if last.Applied {
		t.Errorf("migration %d should be rolled back", last.Version)
	}

	if err := Migrate(db.DB(), db.Driver()); err != nil {
		t.Fatalf("re-Migrate() error = %v", err)
	}
}

func TestSaveAndGetReport(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	report := testReport("r1", created, map[string]float64{
		"https://example.com/news/a": 33.33,
		"https://example.com/news/b": 0,
	})
	report.Stats.AverageDuplicateRate = 16.67

	if err := db.SaveReport(ctx, report, "reports/2024/05/audit-r1.json"); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	got, err := db.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected report, got nil")
	}
	if got.Rate("https://example.com/news/a") != 33.33 || len(got.URLs) != 2 {
		t.Errorf("unexpected report: %+v", got)
	}

	path, err := db.ReportFilePath(ctx, "r1")
	if err != nil || path != "reports/2024/05/audit-r1.json" {
		t.Errorf("ReportFilePath() = %q, %v", path, err)
	}

	count, err := db.Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v", count, err)
	}

	// saving again replaces the report and its page rows
	report.DuplicateRates["https://example.com/news/a"] = 50
	if err := db.SaveReport(ctx, report, ""); err != nil {
		t.Fatalf("second SaveReport() error = %v", err)
	}
	history, err := db.URLHistory(ctx, "https://example.com/news/a", 10)
	if err != nil {
		t.Fatalf("URLHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].DuplicateRate != 50 {
		t.Errorf("URLHistory() = %+v", history)
	}
}

func TestGetReportNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetReport(ctx, "missing")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil report, got %+v", got)
	}

	if _, err := db.ReportFilePath(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReportFilePath() error = %v, want ErrNotFound", err)
	}
}

func TestListReports(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		report := testReport(id, base.Add(time.Duration(i)*time.Hour), map[string]float64{"https://example.com/news/a": float64(10 * i)})
		if err := db.SaveReport(ctx, report, ""); err != nil {
			t.Fatalf("SaveReport(%s) error = %v", id, err)
		}
	}

	items, err := db.ListReports(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if len(items) != 2 || items[0].ID != "new" || items[1].ID != "mid" {
		t.Fatalf("ListReports(2, 0) = %+v", items)
	}
	if !items[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("CreatedAt = %v", items[0].CreatedAt)
	}
	if items[0].HighDuplicateCount != 1 || items[0].TotalURLs != 1 {
		t.Errorf("unexpected summary: %+v", items[0])
	}

	items, err = db.ListReports(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if len(items) != 1 || items[0].ID != "old" {
		t.Errorf("ListReports(2, 2) = %+v", items)
	}
}

func TestDeleteReport(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	report := testReport("gone", time.Now().UTC(), map[string]float64{"https://example.com/about": 20})
	if err := db.SaveReport(ctx, report, ""); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	if err := db.DeleteReport(ctx, "gone"); err != nil {
		t.Fatalf("DeleteReport() error = %v", err)
	}
	if got, _ := db.GetReport(ctx, "gone"); got != nil {
		t.Error("report still present after delete")
	}
	history, err := db.URLHistory(ctx, "https://example.com/about", 10)
	if err != nil {
		t.Fatalf("URLHistory() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("page history not removed: %+v", history)
	}

	if err := db.DeleteReport(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteReport() error = %v, want ErrNotFound", err)
	}
}

func TestURLHistoryAndDirectoryRates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	first := testReport("first", base, map[string]float64{
		"https://example.com/news/a": 40,
		"https://example.com/news/b": 20,
		"https://example.com/about":  0,
	})
	second := testReport("second", base.Add(24*time.Hour), map[string]float64{
		"https://example.com/news/a": 10,
	})
	for _, r := range []*models.DuplicateRateReport{first, second} {
		if err := db.SaveReport(ctx, r, ""); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}

	history, err := db.URLHistory(ctx, "https://example.com/news/a", 10)
	if err != nil {
		t.Fatalf("URLHistory() error = %v", err)
	}
	if len(history) != 2 || history[0].ReportID != "second" || history[0].DuplicateRate != 10 || history[1].DuplicateRate != 40 {
		t.Fatalf("URLHistory() = %+v", history)
	}
	if !history[0].Success || history[0].TotalParagraphs != 4 {
		t.Errorf("unexpected entry: %+v", history[0])
	}

	limited, err := db.URLHistory(ctx, "https://example.com/news/a", 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("URLHistory(limit 1) = %+v, %v", limited, err)
	}

	dirs, err := db.DirectoryRates(ctx)
	if err != nil {
		t.Fatalf("DirectoryRates() error = %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("DirectoryRates() = %+v", dirs)
	}
	if dirs[0].Directory != "example.com/about" || dirs[0].Observations != 1 {
		t.Errorf("about stats = %+v", dirs[0])
	}
	news := dirs[1]
	if news.Observations != 3 || news.MaxDuplicateRate != 40 {
		t.Errorf("news stats = %+v", news)
	}
	if diff := news.AverageDuplicateRate - 70.0/3; diff > 0.001 || diff < -0.001 {
		t.Errorf("news avg = %v", news.AverageDuplicateRate)
	}
}
