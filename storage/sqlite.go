package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"domus/models"
)

func openSQLite(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	return db, nil
}

// SQLiteStore holds operational data: crawl runs and their log lines.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the run database at dbPath and creates its tables.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		search_url TEXT,
		mode TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_fetched INTEGER DEFAULT 0,
		listings_found INTEGER DEFAULT 0,
		details_fetched INTEGER DEFAULT 0,
		cache_hits INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		search_url TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_run ON crawl_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON crawl_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.CrawlRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := s.db.Exec(`
		INSERT INTO crawl_runs (id, search_url, mode, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID.String(), run.SearchURL, run.Mode, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(run *models.CrawlRun) error {
	_, err := s.db.Exec(`
		UPDATE crawl_runs SET finished_at = ?, status = ?, pages_fetched = ?, listings_found = ?,
			details_fetched = ?, cache_hits = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesFetched, run.ListingsFound,
		run.DetailsFetched, run.CacheHits, run.ErrorsCount, run.ID.String())
	return err
}

func (s *SQLiteStore) GetRun(id uuid.UUID) (*models.CrawlRun, error) {
	row := s.db.QueryRow(`
		SELECT id, search_url, mode, started_at, finished_at, status, pages_fetched,
			listings_found, details_fetched, cache_hits, errors_count
		FROM crawl_runs WHERE id = ?`, id.String())

	var run models.CrawlRun
	var rawID string
	var finished sql.NullTime
	err := row.Scan(&rawID, &run.SearchURL, &run.Mode, &run.StartedAt, &finished, &run.Status,
		&run.PagesFetched, &run.ListingsFound, &run.DetailsFetched, &run.CacheHits, &run.ErrorsCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// LastRunTime returns the start of the latest completed run for a search.
func (s *SQLiteStore) LastRunTime(searchURL string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRow(`
		SELECT started_at FROM crawl_runs
		WHERE search_url = ? AND status = 'completed'
		ORDER BY started_at DESC LIMIT 1`, searchURL).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (s *SQLiteStore) Log(runID *uuid.UUID, level models.LogLevel, message, searchURL string) error {
	var rid any
	if runID != nil {
		rid = runID.String()
	}
	_, err := s.db.Exec(`
		INSERT INTO crawl_logs (run_id, timestamp, level, message, search_url)
		VALUES (?, ?, ?, ?, ?)`,
		rid, time.Now(), level, message, searchURL)
	return err
}

func (s *SQLiteStore) RunLogs(runID uuid.UUID) ([]models.CrawlLog, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, level, message, search_url
		FROM crawl_logs WHERE run_id = ? ORDER BY id`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.CrawlLog
	for rows.Next() {
		l := models.CrawlLog{RunID: &runID}
		var searchURL sql.NullString
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &searchURL); err != nil {
			return nil, err
		}
		l.SearchURL = searchURL.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SQLitePageCache is the default PageCache, one row per canonical path.
type SQLitePageCache struct {
	db *sql.DB
}

// NewSQLitePageCache opens the page cache database at dbPath.
func NewSQLitePageCache(dbPath string) (*SQLitePageCache, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS pages (
		key TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		stored_at DATETIME
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLitePageCache{db: db}, nil
}

func (c *SQLitePageCache) Close() error {
	return c.db.Close()
}

func (c *SQLitePageCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var content []byte
	err := c.db.QueryRowContext(ctx, `SELECT content FROM pages WHERE key = ?`, key).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return content, true, nil
}

func (c *SQLitePageCache) Put(ctx context.Context, key string, content []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO pages (key, content, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content, stored_at = excluded.stored_at`,
		key, content, time.Now())
	return err
}
