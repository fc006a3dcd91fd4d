// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package preview stores small HTML/CSS/JS snippets and serves them back
// as renderable documents.
package preview

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a preview artifact stays retrievable.
const DefaultTTL = 30 * time.Minute

// maxArtifacts caps the store; the oldest artifact is evicted when a new
// one would exceed it.
const maxArtifacts = 256

// Artifact is one stored preview snippet.
type Artifact struct {
	HTML      string
	CSS       string
	JS        string
	CreatedAt time.Time
}

// Store is an in-memory, TTL-bounded preview artifact store. Artifacts do
// not survive a restart, matching the rest of the session state.
type Store struct {
	mu    sync.Mutex
	items map[string]Artifact
	ttl   time.Duration
	now   func() time.Time
}

// NewStore builds a Store. A non-positive ttl takes the default.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		items: make(map[string]Artifact),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put stores an artifact and returns its ID.
func (s *Store) Put(a Artifact) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()

	a.CreatedAt = s.now()
	id := uuid.NewString()
	s.items[id] = a
	return id
}

// Get returns the artifact for id if it exists and has not expired.
func (s *Store) Get(id string) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[id]
	if !ok {
		return Artifact{}, false
	}
	if s.now().Sub(a.CreatedAt) > s.ttl {
		delete(s.items, id)
		return Artifact{}, false
	}
	return a, true
}

// evictLocked drops expired artifacts and, if the store is still full, the
// oldest live one.
func (s *Store) evictLocked() {
	now := s.now()
	for id, a := range s.items {
		if now.Sub(a.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
	if len(s.items) < maxArtifacts {
		return
	}
	var oldestID string
	var oldestAt time.Time
	for id, a := range s.items {
		if oldestID == "" || a.CreatedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = a.CreatedAt
		}
	}
	delete(s.items, oldestID)
}

// Render assembles the artifact into a standalone HTML document.
func Render(a Artifact) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if a.CSS != "" {
		fmt.Fprintf(&b, "<style>\n%s\n</style>\n", a.CSS)
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(a.HTML)
	if a.JS != "" {
		fmt.Fprintf(&b, "\n<script>\n%s\n</script>", a.JS)
	}
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}
