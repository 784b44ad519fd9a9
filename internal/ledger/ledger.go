// Package ledger keeps a durable record of the content hashes stored by
// earlier runs, so a resumed run does not store the same text twice.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"corpuscrawler/internal/store"
)

// Entry is one stored document.
type Entry struct {
	Hash     string
	URL      string
	Category string
	Source   string
	PathText string
	RunID    string
	StoredAt time.Time
}

// Ledger is a SQLite table of stored content hashes.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{db: db, path: path}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := l.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return l, nil
}

// Path returns the database file location.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		hash TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		category TEXT NOT NULL,
		source TEXT NOT NULL,
		path_text TEXT,
		run_id TEXT,
		stored_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(category, source);
	`

	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// Put records a stored document. A hash already present is kept as is.
func (l *Ledger) Put(ctx context.Context, e Entry) error {
	_, err := l.insert(ctx, e)

	return err
}

// insert reports whether e added a new hash.
func (l *Ledger) insert(ctx context.Context, e Entry) (bool, error) {
	storedAt := e.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	query := `
	INSERT INTO documents (hash, url, category, source, path_text, run_id, stored_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(hash) DO NOTHING
	`

	res, err := l.db.ExecContext(ctx, query,
		e.Hash, e.URL, e.Category, e.Source, e.PathText, e.RunID, storedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return n > 0, nil
}

// Hashes returns every stored hash.
func (l *Ledger) Hashes(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT hash FROM documents ORDER BY stored_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		hashes = append(hashes, hash)
	}

	return hashes, rows.Err()
}

// Backfill copies the ok records of the index log at indexPath that the
// ledger does not hold yet. The index log is authoritative: records written
// by runs without a ledger, or whose Put never happened, are picked up here.
// It returns the number of entries added.
func (l *Ledger) Backfill(ctx context.Context, indexPath string) (int, error) {
	added := 0
	err := store.ScanIndex(indexPath, func(rec store.Record) error {
		if rec.Status != store.StatusOK || rec.Hash() == "" {
			return nil
		}

		storedAt, _ := time.Parse(time.RFC3339, rec.FetchedAt)
		inserted, err := l.insert(ctx, Entry{
			Hash:     rec.Hash(),
			URL:      rec.URL,
			Category: rec.Category,
			Source:   rec.Source,
			PathText: rec.PathText,
			RunID:    rec.RunID,
			StoredAt: storedAt,
		})
		if err != nil {
			return err
		}
		if inserted {
			added++
		}

		return nil
	})

	return added, err
}
