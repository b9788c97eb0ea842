// Package state persists failure streaks and recovery records between
// invocations. The file is written atomically and guarded by a lock file
// so overlapping invocations (a slow run plus a fresh cron tick) cannot
// lose counter updates.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vigil/alert"
	"vigil/recovery"
)

var (
	// ErrCorrupt indicates the state file existed but could not be
	// parsed. The caller gets an empty document and should log a
	// warning; corruption is never fatal to a run.
	ErrCorrupt = errors.New("state: corrupt state file")

	// ErrLocked indicates the lock could not be acquired in time.
	ErrLocked = errors.New("state: lock held by another invocation")
)

// staleLockAfter is how old a lock file must be before it is considered
// abandoned by a crashed invocation and taken over.
const staleLockAfter = 10 * time.Minute

// Document is the on-disk record mapping probe names to their
// cross-invocation state.
type Document struct {
	UpdatedAt  time.Time                  `json:"updated_at"`
	Streaks    map[string]alert.Streak    `json:"streaks"`
	Recoveries map[string]recovery.Record `json:"recoveries"`
}

// Empty returns a document with initialized maps.
func Empty() Document {
	return Document{
		Streaks:    make(map[string]alert.Streak),
		Recoveries: make(map[string]recovery.Record),
	}
}

// Store reads and writes the state file.
type Store struct {
	path string
}

// NewStore creates a store for the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A missing file yields an empty document with no
// error. An unreadable or malformed file yields an empty document and
// ErrCorrupt, so all streaks reset to zero instead of killing the run.
func (s *Store) Load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return Empty(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(data) == 0 {
		return Empty(), nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Empty(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Streaks == nil {
		doc.Streaks = make(map[string]alert.Streak)
	}
	if doc.Recoveries == nil {
		doc.Recoveries = make(map[string]recovery.Record)
	}
	return doc, nil
}

// Save writes the document atomically: temp file in the same directory,
// then rename over the target.
func (s *Store) Save(doc Document) error {
	doc.UpdatedAt = time.Now().UTC()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure state directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Lock acquires the single-writer lock for the state file. The returned
// release function must be called when the invocation finishes. Lock files
// older than staleLockAfter are treated as leftovers of a crashed run and
// taken over.
func (s *Store) Lock(ctx context.Context) (release func(), err error) {
	lockPath := s.path + ".lock"

	if dir := filepath.Dir(lockPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure state directory: %w", err)
		}
	}

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleLockAfter {
			_ = os.Remove(lockPath)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ErrLocked
		case <-time.After(100 * time.Millisecond):
		}
	}
}
