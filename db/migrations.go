package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version int
	Name    string
	Applied bool
}

func migrationsFor(driver string) []Migration {
	src := sqliteMigrations
	if driver == DriverPostgres {
		src = postgresMigrations
	}
	sorted := make([]Migration, len(src))
	copy(sorted, src)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	return sorted
}

// Migrate runs all pending migrations for driver
func Migrate(db *sql.DB, driver string) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Debug("current schema version", "driver", driver, "version", currentVersion)

	for _, m := range migrationsFor(driver) {
		if m.Version <= currentVersion {
			continue
		}
		if err := runMigration(db, driver, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS seo_schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM seo_schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func runMigration(db *sql.DB, driver string, m Migration) error {
	slog.Info("applying migration", "version", m.Version, "name", m.Name)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec(
		rebind(driver, "INSERT INTO seo_schema_migrations (version, name) VALUES ($1, $2)"),
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// Rollback rolls back the last migration
func Rollback(db *sql.DB, driver string) error {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var target *Migration
	for _, m := range migrationsFor(driver) {
		if m.Version == currentVersion {
			target = &m
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(target.Down); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	if _, err := tx.Exec(rebind(driver, "DELETE FROM seo_schema_migrations WHERE version = $1"), currentVersion); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	slog.Info("rolled back migration", "version", target.Version, "name", target.Name)
	return tx.Commit()
}

// GetMigrationStatus returns the current migration status
func GetMigrationStatus(db *sql.DB, driver string) ([]MigrationStatus, error) {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return nil, err
	}

	var status []MigrationStatus
	for _, m := range migrationsFor(driver) {
		status = append(status, MigrationStatus{
			Version: m.Version,
			Name:    m.Name,
			Applied: m.Version <= currentVersion,
		})
	}
	return status, nil
}
