package db

// PostgreSQL schema for stored audit reports

var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_seo_reports_table",
		Up: `
			CREATE TABLE IF NOT EXISTS seo_reports (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				total_urls INTEGER NOT NULL,
				successful_urls INTEGER NOT NULL,
				total_paragraphs INTEGER NOT NULL,
				high_duplicate_count INTEGER NOT NULL,
				avg_duplicate_rate DOUBLE PRECISION NOT NULL,
				data TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_seo_reports_created_at ON seo_reports(created_at);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_seo_reports_created_at;
			DROP TABLE IF EXISTS seo_reports;
		`,
	},
	{
		Version: 2,
		Name:    "create_seo_report_pages_table",
		Up: `
			CREATE TABLE IF NOT EXISTS seo_report_pages (
				report_id TEXT NOT NULL REFERENCES seo_reports(id) ON DELETE CASCADE,
				url TEXT NOT NULL,
				directory TEXT NOT NULL,
				success BOOLEAN NOT NULL,
				total_paragraphs INTEGER NOT NULL,
				duplicate_rate DOUBLE PRECISION NOT NULL,
				error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (report_id, url)
			);
			CREATE INDEX IF NOT EXISTS idx_seo_report_pages_url ON seo_report_pages(url);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_seo_report_pages_url;
			DROP TABLE IF EXISTS seo_report_pages;
		`,
	},
	{
		Version: 3,
		Name:    "add_seo_reports_file_path",
		Up: `
			ALTER TABLE seo_reports ADD COLUMN IF NOT EXISTS file_path TEXT NOT NULL DEFAULT '';
		`,
		Down: `
			ALTER TABLE seo_reports DROP COLUMN IF EXISTS file_path;
		`,
	},
}
