package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/domaincrawl/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "domaincrawl.db"

// CrawlDB stores page records and run diagnostics in SQLite.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers don't block the crawl.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; fetch workers queue on this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		depth INTEGER NOT NULL,
		text TEXT,
		image_urls TEXT,
		file_urls TEXT,
		file_texts TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(url, entity_id)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_entity ON pages(entity_id);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		mode TEXT NOT NULL,
		pages_emitted INTEGER NOT NULL,
		error TEXT,
		diagnostics_json TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_entity ON runs(entity_id);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	`
	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Emit stores record, replacing an earlier crawl of the same URL for the
// same entity.
func (cdb *CrawlDB) Emit(ctx context.Context, record *model.PageRecord) error {
	images, err := json.Marshal(record.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to serialize image URLs: %w", err)
	}
	files, err := json.Marshal(record.FileURLs)
	if err != nil {
		return fmt.Errorf("failed to serialize file URLs: %w", err)
	}
	texts, err := json.Marshal(record.FileTexts)
	if err != nil {
		return fmt.Errorf("failed to serialize file texts: %w", err)
	}

	query := `
	INSERT INTO pages (url, entity_id, depth, text, image_urls, file_urls, file_texts)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url, entity_id) DO UPDATE SET
		depth = excluded.depth,
		text = excluded.text,
		image_urls = excluded.image_urls,
		file_urls = excluded.file_urls,
		file_texts = excluded.file_texts,
		timestamp = CURRENT_TIMESTAMP
	`
	if _, err := cdb.db.ExecContext(ctx, query,
		record.URL,
		record.EntityID,
		record.Depth,
		record.Text,
		string(images),
		string(files),
		string(texts),
	); err != nil {
		return fmt.Errorf("failed to insert page record: %w", err)
	}
	return nil
}

// GetPages returns the stored pages of entityID ordered by depth and URL.
func (cdb *CrawlDB) GetPages(ctx context.Context, entityID string) ([]*model.PageRecord, error) {
	query := `
	SELECT url, entity_id, depth, text, image_urls, file_urls, file_texts
	FROM pages
	WHERE entity_id = ?
	ORDER BY depth, url
	`
	rows, err := cdb.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []*model.PageRecord
	for rows.Next() {
		var rec model.PageRecord
		var text, images, files, texts sql.NullString
		if err := rows.Scan(&rec.URL, &rec.EntityID, &rec.Depth, &text, &images, &files, &texts); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		rec.Text = text.String
		rec.ImageURLs = decodeList(images)
		rec.FileURLs = decodeList(files)
		rec.FileTexts = decodeList(texts)
		pages = append(pages, &rec)
	}
	return pages, rows.Err()
}

// EntitySummary describes the stored pages of one entity.
type EntitySummary struct {
	EntityID    string
	Pages       int
	LastCrawled time.Time
}

// ListEntities returns every entity with stored pages.
func (cdb *CrawlDB) ListEntities(ctx context.Context) ([]EntitySummary, error) {
	query := `
	SELECT entity_id, COUNT(*), MAX(timestamp)
	FROM pages
	GROUP BY entity_id
	ORDER BY entity_id
	`
	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []EntitySummary
	for rows.Next() {
		var e EntitySummary
		var timestamp string
		if err := rows.Scan(&e.EntityID, &e.Pages, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.LastCrawled = parseTimestamp(timestamp)
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// RunRecord is a stored run.
type RunRecord struct {
	ID          int64
	Timestamp   time.Time
	Diagnostics model.Diagnostics
}

// SaveRun stores the diagnostics of a finished run.
func (cdb *CrawlDB) SaveRun(ctx context.Context, d model.Diagnostics) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to serialize diagnostics: %w", err)
	}

	query := `
	INSERT INTO runs (entity_id, domain, mode, pages_emitted, error, diagnostics_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := cdb.db.ExecContext(ctx, query,
		d.EntityID, d.Domain, d.Mode, d.PagesEmitted, d.Error, string(data),
	); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRuns returns the runs of entityID, newest first. An empty entityID
// returns the runs of every entity.
func (cdb *CrawlDB) GetRuns(ctx context.Context, entityID string) ([]RunRecord, error) {
	query := `
	SELECT id, timestamp, diagnostics_json
	FROM runs
	WHERE ? = '' OR entity_id = ?
	ORDER BY timestamp DESC, id DESC
	`
	rows, err := cdb.db.QueryContext(ctx, query, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var timestamp, data string
		if err := rows.Scan(&r.ID, &timestamp, &data); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &r.Diagnostics); err != nil {
			continue // Skip malformed rows
		}
		r.Timestamp = parseTimestamp(timestamp)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func decodeList(s sql.NullString) []string {
	list := []string{}
	if s.Valid && s.String != "" {
		if err := json.Unmarshal([]byte(s.String), &list); err != nil || list == nil {
			return []string{}
		}
	}
	return list
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a SQLite timestamp, returning the zero time when no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
