package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// Source produces complete graph snapshots (database, file, GTFS build)
type Source interface {
	Name() string
	Load(ctx context.Context) (*Snapshot, error)
}

// Store publishes the current snapshot. Readers take the pointer once per
// search and keep using it even if a reload swaps in a newer one.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store, optionally pre-populated
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	if initial != nil {
		s.current.Store(initial)
	}
	return s
}

// Current returns the latest snapshot, or nil before the first load
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// IsLoaded returns true if a snapshot has been published
func (s *Store) IsLoaded() bool {
	return s.current.Load() != nil
}

// Swap publishes next and returns the snapshot it replaced
func (s *Store) Swap(next *Snapshot) *Snapshot {
	return s.current.Swap(next)
}

// ErrEmptyGraph is returned when a source yields a snapshot without stops
var ErrEmptyGraph = errors.New("graph has no stops")

// Reload loads a fresh snapshot from src and publishes it. On failure, and
// when the source comes back empty, the current snapshot stays in place.
func (s *Store) Reload(ctx context.Context, src Source) (*Snapshot, error) {
	startTime := time.Now()

	snap, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph from %s: %w", src.Name(), err)
	}
	if snap.NodeCount() == 0 {
		return nil, fmt.Errorf("failed to load graph from %s: %w", src.Name(), ErrEmptyGraph)
	}
	s.Swap(snap)

	log.Printf("Graph loaded from %s in %v (%d nodes, %d edges, version %s)",
		src.Name(), time.Since(startTime), snap.NodeCount(), snap.EdgeCount(), snap.Version())
	return snap, nil
}

// Watch reloads from src every interval until ctx is done. onReload, when
// set, is called after every attempt.
func (s *Store) Watch(ctx context.Context, src Source, interval time.Duration, onReload func(*Snapshot, error)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := s.Reload(ctx, src)
			if err != nil {
				log.Printf("Warning: graph reload failed, keeping current snapshot: %v", err)
			}
			if onReload != nil {
				onReload(snap, err)
			}
		}
	}
}

// StaticSource serves an already built snapshot
type StaticSource struct {
	Snapshot *Snapshot
}

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Load(ctx context.Context) (*Snapshot, error) {
	if s.Snapshot == nil {
		return nil, fmt.Errorf("static source has no snapshot")
	}
	return s.Snapshot, nil
}
