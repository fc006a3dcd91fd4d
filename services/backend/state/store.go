// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package state implements the process-wide store for the single active
// repository session.
//
// The store is the one piece of shared mutable state in the system. All
// writers are ingestion jobs; all readers are status pollers and the
// retriever. Every mutation carries the epoch of the job performing it:
// a write with a stale epoch is silently discarded, which is what makes
// supersession safe without holding locks across the whole pipeline.
package state

import (
	"log/slog"
	"sync"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
	"github.com/codematrix-ai/codematrix/services/backend/index"
)

// Snapshot is an atomic view of the session state. A poller never sees a
// torn combination of status/progress/message from different writes.
type Snapshot struct {
	Status          datatypes.RepositoryStatus
	Progress        int
	Message         string
	ErrorDetail     string
	RepoName        string
	RepoDescription string
	Epoch           uint64
}

// Store holds the active repository session and its index.
type Store struct {
	mu    sync.RWMutex
	snap  Snapshot
	index *index.Index
}

// NewStore returns a store in the Idle state with no active index.
func NewStore() *Store {
	return &Store{
		snap: Snapshot{
			Status:          datatypes.StatusIdle,
			Message:         "Awaiting repository.",
			RepoDescription: "No repository loaded.",
		},
	}
}

// BeginIngestion resets the session for a new ingestion request and
// returns the new epoch. Any job still running under an older epoch is
// superseded from this moment: its subsequent writes are discarded.
func (s *Store) BeginIngestion(repoName string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Epoch++
	s.snap.Status = datatypes.StatusCloning
	s.snap.Progress = 0
	s.snap.Message = "Starting repository ingestion..."
	s.snap.ErrorDetail = ""
	s.snap.RepoName = repoName
	s.snap.RepoDescription = "Repository " + repoName
	return s.snap.Epoch
}

// Set updates status, progress, and message on behalf of the job running
// under epoch. Progress is clamped to be non-decreasing within an epoch.
// Returns false (and changes nothing) if the epoch is stale.
func (s *Store) Set(epoch uint64, status datatypes.RepositoryStatus, progress int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.snap.Epoch {
		slog.Debug("Discarding state update from superseded ingestion", "stale_epoch", epoch, "current_epoch", s.snap.Epoch)
		return false
	}
	if progress < s.snap.Progress {
		progress = s.snap.Progress
	}
	s.snap.Status = status
	s.snap.Progress = progress
	s.snap.Message = message
	return true
}

// Fail moves the session to the Error state with a human-readable detail.
// Returns false if the epoch is stale.
func (s *Store) Fail(epoch uint64, detail string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.snap.Epoch {
		slog.Debug("Discarding failure from superseded ingestion", "stale_epoch", epoch, "current_epoch", s.snap.Epoch)
		return false
	}
	s.snap.Status = datatypes.StatusError
	s.snap.Message = detail
	s.snap.ErrorDetail = detail
	return true
}

// SwapActiveIndex atomically publishes a freshly built index and marks the
// session Ready. This is the single moment an index becomes visible to the
// retriever. A superseded job's swap is rejected so a slow stale ingestion
// can never clobber a newer session.
func (s *Store) SwapActiveIndex(epoch uint64, ix *index.Index) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.snap.Epoch {
		slog.Warn("Discarding index from superseded ingestion", "stale_epoch", epoch, "current_epoch", s.snap.Epoch)
		return false
	}
	s.index = ix
	s.snap.Status = datatypes.StatusReady
	s.snap.Progress = 100
	s.snap.Message = "Repository successfully indexed and ready to be queried."
	return true
}

// Snapshot returns a consistent copy of the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ActiveIndex returns the current index if and only if the session is
// Ready. Callers must treat a false return as "no active index", never as
// an empty result.
func (s *Store) ActiveIndex() (*index.Index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.Status != datatypes.StatusReady || s.index == nil {
		return nil, false
	}
	return s.index, true
}
