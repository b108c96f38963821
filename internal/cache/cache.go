// Package cache persists probed clip metadata between runs, keyed by
// absolute path and invalidated by a size+mtime fingerprint.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Fingerprint identifies one version of a file on disk
type Fingerprint struct {
	Size  int64 `json:"size"`
	MTime int64 `json:"mtime"`
}

// Stat fingerprints the file at path
func Stat(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Size: info.Size(), MTime: info.ModTime().UnixNano()}, nil
}

// Record is the cached metadata for one file. MotionComputed separates a
// real zero motion score from one that was never measured.
type Record struct {
	Duration       float64 `json:"duration"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	Motion         float64 `json:"motion"`
	MotionComputed bool    `json:"motion_computed"`
	Fingerprint
}

// Matches reports whether the record was taken from the file version fp
func (r Record) Matches(fp Fingerprint) bool {
	return r.Size == fp.Size && r.MTime == fp.MTime
}

// Store is a small key-value store for clip metadata. Implementations are
// safe for concurrent use; Put only marks data dirty and Flush persists it.
type Store interface {
	Get(path string) (Record, bool)
	Put(path string, rec Record)
	Flush() error
	Close() error
}

// MemoryStore keeps records in memory only
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	flushes int
}

// NewMemory creates an empty in-memory store
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Get(path string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[path]
	return rec, ok
}

func (m *MemoryStore) Put(path string, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[path] = rec
}

// Flush counts calls so tests can assert on write batching
func (m *MemoryStore) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Flushes returns how many times Flush was called
func (m *MemoryStore) Flushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// Len returns the number of records
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error { return nil }

// Open returns the store for backend ("json" or "sqlite") at path
func Open(logger zerolog.Logger, backend, path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	switch backend {
	case "", "json":
		return OpenJSON(logger, path), nil
	case "sqlite":
		return OpenSQLite(logger, path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
