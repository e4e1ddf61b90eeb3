package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/pricedex/pkg/pricedex/internalerr"
	"github.com/cognicore/pricedex/pkg/pricedex/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and
// establishes the schema on first use. Opening an existing database
// is a no-op on the schema.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreOpen, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreOpen, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreOpen, err)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS records (
	code TEXT PRIMARY KEY,
	article TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	price TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	article_lower TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_records_article_lower ON records(article_lower);

CREATE TABLE IF NOT EXISTS import_runs (
	id TEXT PRIMARY KEY,
	provenance TEXT NOT NULL,
	record_count INTEGER NOT NULL,
	imported_at TEXT NOT NULL
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// BulkUpsert writes all records in one transaction, keyed by code.
// A later record with the same code overwrites an earlier one.
// article_lower is recomputed on every write.
func (s *sqliteStore) BulkUpsert(ctx context.Context, records []store.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", internalerr.ErrStoreWrite, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO records (code, article, description, price, department, article_lower)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
	article=excluded.article,
	description=excluded.description,
	price=excluded.price,
	department=excluded.department,
	article_lower=excluded.article_lower;
`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", internalerr.ErrStoreWrite, err)
	}
	defer stmt.Close()

	count := 0
	for _, r := range records {
		if r.Code == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.Code, r.Article, r.Description, r.Price, r.Department, r.ArticleLower()); err != nil {
			return 0, fmt.Errorf("%w: %v", internalerr.ErrStoreWrite, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", internalerr.ErrStoreWrite, err)
	}
	return count, nil
}

// GetByCode retrieves a record by its exact code
func (s *sqliteStore) GetByCode(ctx context.Context, code string) (store.Record, bool, error) {
	var r store.Record
	err := s.db.QueryRowContext(ctx, `
SELECT code, article, description, price, department
FROM records
WHERE code = ?;
`, code).Scan(&r.Code, &r.Article, &r.Description, &r.Price, &r.Department)
	if err == sql.ErrNoRows {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, err
	}
	return r, true, nil
}

// ScanByArticle returns every record whose lowercased article contains
// term (lowercased) as a substring. Zero matches is an empty result,
// not an error.
func (s *sqliteStore) ScanByArticle(ctx context.Context, term string) ([]store.Record, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	rows, err := s.db.QueryContext(ctx, `
SELECT code, article, description, price, department
FROM records
WHERE article_lower LIKE ? ESCAPE '\'
ORDER BY article_lower, code;
`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []store.Record
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(&r.Code, &r.Article, &r.Description, &r.Price, &r.Department); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// escapeLike escapes LIKE metacharacters so the term matches literally
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// RecordImportRun appends one entry to the import audit trail
func (s *sqliteStore) RecordImportRun(ctx context.Context, run store.ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO import_runs (id, provenance, record_count, imported_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	provenance=excluded.provenance,
	record_count=excluded.record_count,
	imported_at=excluded.imported_at;
`, run.ID, run.Provenance, run.Count, run.ImportedAt.UTC().Format(time.RFC3339))
	return err
}

// ImportHistory returns the most recent import runs, newest first.
// ULIDs sort lexicographically by creation time, so ordering by id
// is ordering by time.
func (s *sqliteStore) ImportHistory(ctx context.Context, limit int) ([]store.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, provenance, record_count, imported_at
FROM import_runs
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.ImportRun
	for rows.Next() {
		var (
			run      store.ImportRun
			imported string
		)
		if err := rows.Scan(&run.ID, &run.Provenance, &run.Count, &imported); err != nil {
			return nil, err
		}
		if parsed, perr := time.Parse(time.RFC3339, imported); perr == nil {
			run.ImportedAt = parsed
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Purge deletes all records and the audit trail in one transaction
func (s *sqliteStore) Purge(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM import_runs`); err != nil {
		return err
	}

	return tx.Commit()
}
