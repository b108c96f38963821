package cache

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/keagan/beatcut/internal/errkind"
	"github.com/keagan/beatcut/internal/logging"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SQLiteStore keeps clip metadata in a SQLite table keyed by path. All rows
// are read at open; changed rows are written back in one transaction.
type SQLiteStore struct {
	logger  zerolog.Logger
	path    string
	conn    *sql.DB
	mu      sync.Mutex
	records map[string]Record
	pending map[string]struct{}
	loadErr error
}

// OpenSQLite opens or creates the database at path. A file that is not a
// readable database is moved aside and replaced.
func OpenSQLite(logger zerolog.Logger, path string) (*SQLiteStore, error) {
	s := &SQLiteStore{
		logger:  logging.Component(logger, "cache"),
		path:    path,
		records: make(map[string]Record),
		pending: make(map[string]struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := openSQLite(path)
	if err == nil {
		err = s.load(conn)
		if err != nil {
			conn.Close()
		}
	}
	if err != nil {
		s.loadErr = &errkind.CacheCorruptionError{Path: path, Err: err}
		s.logger.Warn().Err(s.loadErr).Msg("replacing metadata cache")

		if rerr := os.Rename(path, path+".corrupt"); rerr != nil && !os.IsNotExist(rerr) {
			return nil, fmt.Errorf("move corrupt cache aside: %w", rerr)
		}
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")

		s.records = make(map[string]Record)
		conn, err = openSQLite(path)
		if err != nil {
			return nil, err
		}
	}

	s.conn = conn
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return conn, nil
}

func (s *SQLiteStore) load(conn *sql.DB) error {
	rows, err := conn.Query(`SELECT path, duration, width, height, fps, motion, motion_computed, size, mtime FROM clip_meta`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var rec Record
		var computed int
		if err := rows.Scan(&path, &rec.Duration, &rec.Width, &rec.Height, &rec.FPS,
			&rec.Motion, &computed, &rec.Size, &rec.MTime); err != nil {
			return err
		}
		rec.MotionComputed = computed != 0
		s.records[path] = rec
	}
	return rows.Err()
}

// LoadError returns the corruption recovered from at open time, if any
func (s *SQLiteStore) LoadError() error {
	return s.loadErr
}

func (s *SQLiteStore) Get(path string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	return rec, ok
}

func (s *SQLiteStore) Put(path string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.records[path]; ok && old == rec {
		return
	}
	s.records[path] = rec
	s.pending[path] = struct{}{}
}

// Flush upserts every changed row in a single transaction
func (s *SQLiteStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin cache flush: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO clip_meta (path, duration, width, height, fps, motion, motion_computed, size, mtime, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(path) DO UPDATE SET
			duration = excluded.duration,
			width = excluded.width,
			height = excluded.height,
			fps = excluded.fps,
			motion = excluded.motion,
			motion_computed = excluded.motion_computed,
			size = excluded.size,
			mtime = excluded.mtime,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare cache flush: %w", err)
	}
	defer stmt.Close()

	for path := range s.pending {
		rec := s.records[path]
		if _, err := stmt.Exec(path, rec.Duration, rec.Width, rec.Height, rec.FPS,
			rec.Motion, boolToInt(rec.MotionComputed), rec.Size, rec.MTime); err != nil {
			return fmt.Errorf("write cache row %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache flush: %w", err)
	}

	s.logger.Debug().Int("rows", len(s.pending)).Msg("metadata cache flushed")
	s.pending = make(map[string]struct{})
	return nil
}

// Close flushes pending rows and closes the database
func (s *SQLiteStore) Close() error {
	flushErr := s.Flush()
	if err := s.conn.Close(); err != nil {
		return err
	}
	return flushErr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
