// Package store owns the persisted log collection. The collection is
// one snapshot document, read whole and replaced whole; every append
// runs load-mutate-save under a single writer lock, so concurrent
// ingestions cannot lose updates or collide on ids.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/logbook-io/logbook/internal/model"
	"github.com/logbook-io/logbook/internal/storage"
)

// ErrUnavailable reports that the snapshot exists but cannot be read
// or decoded. Callers must surface it as a fatal request failure, not
// an empty result.
var ErrUnavailable = errors.New("log store unavailable")

// snapshot is the on-disk container document. NextID is the persisted
// monotonic counter; it never decreases, even if records are removed
// or reordered by an external tool.
type snapshot struct {
	NextID  int64             `json:"next_id"`
	Records []model.LogRecord `json:"records"`
}

// Store handles persistence of the full log collection.
type Store struct {
	path  string
	codec *storage.Codec
	mu    sync.RWMutex
}

// New creates a store backed by the snapshot file at path.
func New(path string, codec *storage.Codec) *Store {
	return &Store{path: path, codec: codec}
}

// LoadAll returns the entire persisted collection. A missing snapshot
// is an empty store; anything else that fails wraps ErrUnavailable.
func (s *Store) LoadAll() ([]model.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// ReplaceAll atomically overwrites the collection. The persisted id
// counter is carried forward and bumped past the highest id in the new
// records, so later appends can never recycle an id.
func (s *Store) ReplaceAll(records []model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadLocked()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.ID >= snap.NextID {
			snap.NextID = rec.ID + 1
		}
	}
	snap.Records = records
	return s.saveLocked(snap)
}

// Append assigns the next id to rec, appends it and persists the
// collection, returning the stored record. On failure the pre-append
// collection is left untouched on disk.
func (s *Store) Append(rec model.LogRecord) (model.LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadLocked()
	if err != nil {
		return model.LogRecord{}, err
	}

	rec.ID = snap.NextID
	snap.NextID++
	snap.Records = append(snap.Records, rec)

	if err := s.saveLocked(snap); err != nil {
		return model.LogRecord{}, err
	}
	return rec, nil
}

func (s *Store) loadLocked() (snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot{NextID: 1}, nil
		}
		return snapshot{}, fmt.Errorf("%w: read snapshot: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return snapshot{NextID: 1}, nil
	}

	doc, err := s.codec.Decode(data)
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: decode snapshot: %v", ErrUnavailable, err)
	}

	var snap snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return snapshot{}, fmt.Errorf("%w: unmarshal snapshot: %v", ErrUnavailable, err)
	}
	if snap.NextID < 1 {
		snap.NextID = 1
	}
	return snap, nil
}

// saveLocked publishes a snapshot by writing a temp file in the same
// directory, syncing it and renaming it over the snapshot path. A
// concurrent reader sees either the old or the new file, never a torn
// write.
func (s *Store) saveLocked(snap snapshot) error {
	if snap.Records == nil {
		snap.Records = make([]model.LogRecord, 0)
	}

	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", ErrUnavailable, err)
	}
	data, err := s.codec.Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", ErrUnavailable, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create data dir: %v", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("%w: create temp snapshot: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write snapshot: %v", ErrUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync snapshot: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close snapshot: %v", ErrUnavailable, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: publish snapshot: %v", ErrUnavailable, err)
	}
	return nil
}
