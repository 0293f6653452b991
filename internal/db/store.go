package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/transcript"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		model TEXT NOT NULL,
		specialist TEXT NOT NULL,
		langs TEXT NOT NULL DEFAULT '',
		output TEXT NOT NULL DEFAULT '',
		audioUrl TEXT NOT NULL DEFAULT '',
		createdAt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transcriptLines (
		runId TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		speaker TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		PRIMARY KEY (runId, position)
	);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		queryText TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT '',
		createdAt REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS runsCreatedAt ON runs(createdAt);
	CREATE INDEX IF NOT EXISTS queriesCreatedAt ON queries(createdAt);
`

// Store provides access to the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path with WAL and
// applies the schema.
func Open(path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps an in-memory database shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its transcript. ID and CreatedAt are filled in
// when empty.
func (s *Store) SaveRun(run *Run, lines transcript.Transcript) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO runs (id, topic, model, specialist, langs, output, audioUrl, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Topic, run.Model, run.Specialist, strings.Join(run.Langs, ","),
		run.Output, run.AudioURL, unixFromTime(run.CreatedAt)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, l := range lines {
		if _, err := tx.Exec(`
			INSERT INTO transcriptLines (runId, position, speaker, text)
			VALUES (?, ?, ?, ?)
		`, run.ID, i, l.Speaker, l.Text); err != nil {
			return fmt.Errorf("insert transcript line %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, topic, model, specialist, langs, output, audioUrl, createdAt
		FROM runs
		ORDER BY createdAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var langs string
		var createdAt float64
		if err := rows.Scan(&r.ID, &r.Topic, &r.Model, &r.Specialist, &langs,
			&r.Output, &r.AudioURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if langs != "" {
			r.Langs = strings.Split(langs, ",")
		}
		r.CreatedAt = timeFromUnix(createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the run with id, or nil if there is none.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, topic, model, specialist, langs, output, audioUrl, createdAt
		FROM runs
		WHERE id = ?
	`, id)

	var r Run
	var langs string
	var createdAt float64
	if err := row.Scan(&r.ID, &r.Topic, &r.Model, &r.Specialist, &langs,
		&r.Output, &r.AudioURL, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if langs != "" {
		r.Langs = strings.Split(langs, ",")
	}
	r.CreatedAt = timeFromUnix(createdAt)
	return &r, nil
}

// TranscriptForRun returns the stored transcript of a run in order.
func (s *Store) TranscriptForRun(runID string) (transcript.Transcript, error) {
	rows, err := s.db.Query(`
		SELECT speaker, text
		FROM transcriptLines
		WHERE runId = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var out transcript.Transcript
	for rows.Next() {
		var l transcript.Line
		if err := rows.Scan(&l.Speaker, &l.Text); err != nil {
			return nil, fmt.Errorf("scan transcript line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SaveQuery stores a query and its result.
func (s *Store) SaveQuery(q *Query) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.now()
	}

	if _, err := s.db.Exec(`
		INSERT INTO queries (id, queryText, result, createdAt)
		VALUES (?, ?, ?, ?)
	`, q.ID, q.Text, q.Result, unixFromTime(q.CreatedAt)); err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

// RecentQueries returns up to limit queries, newest first.
func (s *Store) RecentQueries(limit int) ([]Query, error) {
	rows, err := s.db.Query(`
		SELECT id, queryText, result, createdAt
		FROM queries
		ORDER BY createdAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query queries: %w", err)
	}
	defer rows.Close()

	var out []Query
	for rows.Next() {
		var q Query
		var createdAt float64
		if err := rows.Scan(&q.ID, &q.Text, &q.Result, &createdAt); err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		q.CreatedAt = timeFromUnix(createdAt)
		out = append(out, q)
	}
	return out, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
