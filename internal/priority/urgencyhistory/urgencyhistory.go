// Package urgencyhistory persists the per-service UrgencyHistory used by
// the priority estimator: a JSON array of observed relative-remaining-time
// values, kept non-decreasing, shared by every estimator instance
// addressing the same service across the cluster via a shared file.
package urgencyhistory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

const lockTimeout = 5 * time.Second

// Store reads and appends to the on-disk UrgencyHistory file for one
// service, guarding every access with a per-file exclusive lock so
// concurrent estimator instances (one per node hosting the service) never
// interleave a read-modify-write.
type Store struct {
	dir string
}

// NewStore roots per-service history files under dir (one
// "<service>.json" file per service, matching the teacher's flat
// per-resource file layout).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(service string) string {
	return filepath.Join(s.dir, service+".json")
}

func (s *Store) lockPath(service string) string {
	return filepath.Join(s.dir, service+".json.lock")
}

// Read returns the current history for service, or an empty slice if it
// has never been written.
func (s *Store) Read(service string) ([]float64, error) {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	lock := flock.New(s.lockPath(service))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, fmt.Errorf("lock urgency history %q: %w", service, err)
	}
	defer lock.Unlock()
	return s.readLocked(service)
}

func (s *Store) readLocked(service string) ([]float64, error) {
	b, err := os.ReadFile(s.path(service))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read urgency history %q: %w", service, err)
	}
	var history []float64
	if err := json.Unmarshal(b, &history); err != nil {
		return nil, fmt.Errorf("decode urgency history %q: %w", service, err)
	}
	return history, nil
}

// Append inserts value into the service's history at its sorted
// position (binary-search insertion, so the file stays non-decreasing
// without a full re-sort) and persists the result. Returns the
// pre-insertion history, as callers need it to compute thresholds before
// the new observation joins it.
func (s *Store) Append(service string, value float64) (before []float64, err error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir urgency history dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	lock := flock.New(s.lockPath(service))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, fmt.Errorf("lock urgency history %q: %w", service, err)
	}
	defer lock.Unlock()

	history, err := s.readLocked(service)
	if err != nil {
		return nil, err
	}
	before = append([]float64(nil), history...)

	idx := sort.SearchFloat64s(history, value)
	history = append(history, 0)
	copy(history[idx+1:], history[idx:])
	history[idx] = value

	b, err := json.Marshal(history)
	if err != nil {
		return before, fmt.Errorf("encode urgency history %q: %w", service, err)
	}
	if err := os.WriteFile(s.path(service), b, 0644); err != nil {
		return before, fmt.Errorf("write urgency history %q: %w", service, err)
	}
	return before, nil
}
