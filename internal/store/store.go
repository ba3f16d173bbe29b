// Package store provides the SQLite annotation ledger.
//
// Every successful annotation is recorded so sessions can be audited
// later: which files were marked, when, over what line ranges, and why.
// The ledger is best-effort bookkeeping; callers never block annotation
// on its availability.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"provmark/internal/annotate"
	"provmark/internal/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS annotations (
    id              TEXT PRIMARY KEY,
    file_path       TEXT NOT NULL,
    start_line      INTEGER NOT NULL,
    end_line        INTEGER NOT NULL,
    char_count      INTEGER NOT NULL,
    change_count    INTEGER NOT NULL,
    classification  TEXT NOT NULL,
    reason          TEXT,
    created_ns      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_file ON annotations(file_path, created_ns);
CREATE INDEX IF NOT EXISTS idx_annotations_time ON annotations(created_ns);
`

// Store is the SQLite-backed annotation ledger.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts one annotation record.
func (s *Store) Record(rec annotate.Record) error {
	_, err := s.db.Exec(`
		INSERT INTO annotations (id, file_path, start_line, end_line, char_count, change_count, classification, reason, created_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FilePath, rec.StartLine, rec.EndLine, rec.CharCount,
		rec.ChangeCount, string(rec.Classification), rec.Reason, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert annotation: %w", err)
	}
	return nil
}

// History returns annotations for one file, newest first. A limit of 0
// returns everything.
func (s *Store) History(filePath string, limit int) ([]annotate.Record, error) {
	query := `
		SELECT id, file_path, start_line, end_line, char_count, change_count, classification, reason, created_ns
		FROM annotations WHERE file_path = ? ORDER BY created_ns DESC`
	args := []any{filePath}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRecords(query, args...)
}

// Recent returns the most recent annotations across all files.
func (s *Store) Recent(limit int) ([]annotate.Record, error) {
	query := `
		SELECT id, file_path, start_line, end_line, char_count, change_count, classification, reason, created_ns
		FROM annotations ORDER BY created_ns DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRecords(query, args...)
}

func (s *Store) queryRecords(query string, args ...any) ([]annotate.Record, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	var recs []annotate.Record
	for rows.Next() {
		var rec annotate.Record
		var class string
		var createdNs int64
		if err := rows.Scan(&rec.ID, &rec.FilePath, &rec.StartLine, &rec.EndLine,
			&rec.CharCount, &rec.ChangeCount, &class, &rec.Reason, &createdNs); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		rec.Classification = event.Classification(class)
		rec.CreatedAt = time.Unix(0, createdNs)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Stats summarizes the ledger.
type Stats struct {
	TotalAnnotations int
	FilesAnnotated   int
	TotalChars       int64
	FirstAnnotation  time.Time
	LastAnnotation   time.Time
}

// Stats returns summary statistics over all recorded annotations.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	var firstNs, lastNs sql.NullInt64
	var totalChars sql.NullInt64
	err := s.db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT file_path), SUM(char_count), MIN(created_ns), MAX(created_ns)
		FROM annotations`).
		Scan(&st.TotalAnnotations, &st.FilesAnnotated, &totalChars, &firstNs, &lastNs)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	st.TotalChars = totalChars.Int64
	if firstNs.Valid {
		st.FirstAnnotation = time.Unix(0, firstNs.Int64)
	}
	if lastNs.Valid {
		st.LastAnnotation = time.Unix(0, lastNs.Int64)
	}
	return st, nil
}
