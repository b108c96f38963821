package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/keagan/beatcut/internal/errkind"
	"github.com/keagan/beatcut/internal/logging"
	"github.com/rs/zerolog"
)

// JSONStore keeps one JSON document per library root, rewritten wholesale
// on Flush when something changed.
type JSONStore struct {
	logger  zerolog.Logger
	path    string
	mu      sync.Mutex
	records map[string]Record
	dirty   bool
	loadErr error
}

// OpenJSON loads the document at path. A missing file starts empty; an
// unreadable one is logged, reported by LoadError and also starts empty.
func OpenJSON(logger zerolog.Logger, path string) *JSONStore {
	s := &JSONStore{
		logger:  logging.Component(logger, "cache"),
		path:    path,
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s
	case err != nil:
		s.loadErr = &errkind.CacheCorruptionError{Path: path, Err: err}
	default:
		if err := json.Unmarshal(data, &s.records); err != nil {
			s.records = make(map[string]Record)
			s.loadErr = &errkind.CacheCorruptionError{Path: path, Err: err}
		}
	}

	if s.loadErr != nil {
		s.logger.Warn().Err(s.loadErr).Msg("ignoring metadata cache")
	} else {
		s.logger.Debug().Str("path", path).Int("entries", len(s.records)).Msg("metadata cache loaded")
	}
	return s
}

// LoadError returns the corruption recovered from at open time, if any
func (s *JSONStore) LoadError() error {
	return s.loadErr
}

func (s *JSONStore) Get(path string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	return rec, ok
}

func (s *JSONStore) Put(path string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.records[path]; ok && old == rec {
		return
	}
	s.records[path] = rec
	s.dirty = true
}

// Flush rewrites the document through a temp file and rename
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write metadata cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write metadata cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace metadata cache: %w", err)
	}

	s.dirty = false
	s.logger.Debug().Str("path", s.path).Int("entries", len(s.records)).Msg("metadata cache flushed")
	return nil
}

func (s *JSONStore) Close() error {
	return s.Flush()
}
