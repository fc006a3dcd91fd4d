// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
	"github.com/codematrix-ai/codematrix/services/backend/index"
	"github.com/codematrix-ai/codematrix/services/backend/state"
)

type stubFetcher struct {
	files []SourceFile
	err   error
	block chan struct{} // when set, Fetch waits for ctx or close
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string) ([]SourceFile, func(), error) {
	if s.block != nil {
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
		case <-s.block:
		}
	}
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.files, func() {}, nil
}

func threeFileRepo() []SourceFile {
	return []SourceFile{
		{RelativePath: "app.py", Content: []byte("def handler(request):\n    return greet(request.name)\n")},
		{RelativePath: "util.py", Content: []byte("def greet(name):\n    return 'hello ' + name\n")},
		{RelativePath: "README.md", Content: []byte("# Demo\n\nA tiny demo service.\n")},
	}
}

func waitForTerminal(t *testing.T, store *state.Store) state.Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		snap := store.Snapshot()
		if snap.Status == datatypes.StatusReady || snap.Status == datatypes.StatusError {
			return snap
		}
		select {
		case <-deadline:
			t.Fatalf("ingestion never reached a terminal state, stuck at %q", snap.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func newTestPipeline(store *state.Store, fetcher repoFetcher) *Pipeline {
	chunker := NewChunker(ChunkerConfig{})
	indexer := NewIndexer(&fakeEmbedder{}, IndexerConfig{BaseBackoff: time.Millisecond})
	return NewPipeline(store, fetcher, chunker, indexer, PipelineConfig{})
}

func TestPipelineEndToEnd(t *testing.T) {
	store := state.NewStore()
	p := newTestPipeline(store, &stubFetcher{files: threeFileRepo()})

	sessionID, err := p.Start("https://github.com/demo/tiny")
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)

	snap := waitForTerminal(t, store)
	require.Equal(t, datatypes.StatusReady, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "tiny", snap.RepoName)

	ix, ok := store.ActiveIndex()
	require.True(t, ok)
	assert.Greater(t, ix.Len(), 0)
}

func TestPipelineRejectsInvalidURLSynchronously(t *testing.T) {
	store := state.NewStore()
	p := newTestPipeline(store, &stubFetcher{})

	_, err := p.Start("https://example.com/not/github")
	assert.ErrorIs(t, err, ErrInvalidRepoURL)
	assert.Equal(t, datatypes.StatusIdle, store.Snapshot().Status, "a rejected request must not disturb the session")
}

func TestPipelineReportsFetchFailure(t *testing.T) {
	store := state.NewStore()
	p := newTestPipeline(store, &stubFetcher{err: fmt.Errorf("%w: host unreachable", ErrNetwork)})

	_, err := p.Start("github.com/demo/gone")
	require.NoError(t, err, "fetch failures surface via status, not Start")

	snap := waitForTerminal(t, store)
	assert.Equal(t, datatypes.StatusError, snap.Status)
	assert.Contains(t, snap.ErrorDetail, "Could not fetch the repository")
}

func TestPipelineReportsEmptyRepository(t *testing.T) {
	store := state.NewStore()
	p := newTestPipeline(store, &stubFetcher{files: []SourceFile{
		{RelativePath: "empty.py", Content: []byte("   \n")},
	}})

	_, err := p.Start("github.com/demo/empty")
	require.NoError(t, err)

	snap := waitForTerminal(t, store)
	assert.Equal(t, datatypes.StatusError, snap.Status)
	assert.Contains(t, snap.ErrorDetail, "No supported code files")
}

func TestPipelineNewRequestSupersedesInFlight(t *testing.T) {
	store := state.NewStore()
	blocked := &stubFetcher{files: threeFileRepo(), block: make(chan struct{})}
	p := newTestPipeline(store, blocked)

	_, err := p.Start("github.com/demo/slow")
	require.NoError(t, err)

	// Replace the fetcher so the second job succeeds immediately.
	p.fetcher = &stubFetcher{files: threeFileRepo()}
	_, err = p.Start("github.com/demo/fast")
	require.NoError(t, err)

	snap := waitForTerminal(t, store)
	assert.Equal(t, datatypes.StatusReady, snap.Status)
	assert.Equal(t, "fast", snap.RepoName)

	// Unblock the first job; its late writes must be discarded.
	close(blocked.block)
	time.Sleep(20 * time.Millisecond)
	final := store.Snapshot()
	assert.Equal(t, datatypes.StatusReady, final.Status)
	assert.Equal(t, "fast", final.RepoName)
}

func TestPipelineRecoversAfterError(t *testing.T) {
	store := state.NewStore()
	p := newTestPipeline(store, &stubFetcher{err: fmt.Errorf("%w", ErrFetchTimeout)})

	_, err := p.Start("github.com/demo/timeout")
	require.NoError(t, err)
	snap := waitForTerminal(t, store)
	require.Equal(t, datatypes.StatusError, snap.Status)

	p.fetcher = &stubFetcher{files: threeFileRepo()}
	_, err = p.Start("github.com/demo/retry")
	require.NoError(t, err)

	snap = waitForTerminal(t, store)
	assert.Equal(t, datatypes.StatusReady, snap.Status)
	assert.Equal(t, "retry", snap.RepoName)
}

type stuckChunker struct{}

func (stuckChunker) ChunkAll(ctx context.Context, _ []SourceFile) ([]index.Fragment, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPipelineIndexTimeoutCoversChunking(t *testing.T) {
	store := state.NewStore()
	p := NewPipeline(store, &stubFetcher{files: threeFileRepo()}, stuckChunker{},
		NewIndexer(&fakeEmbedder{}, IndexerConfig{}), PipelineConfig{IndexTimeout: 20 * time.Millisecond})

	_, err := p.Start("github.com/demo/slow")
	require.NoError(t, err)

	snap := waitForTerminal(t, store)
	assert.Equal(t, datatypes.StatusError, snap.Status)
	assert.Contains(t, snap.ErrorDetail, "took too long")
}

type panickyChunker struct{}

func (panickyChunker) ChunkAll(context.Context, []SourceFile) ([]index.Fragment, error) {
	panic("chunker exploded")
}

func TestPipelinePanicBecomesErrorState(t *testing.T) {
	store := state.NewStore()
	p := NewPipeline(store, &stubFetcher{files: threeFileRepo()}, panickyChunker{},
		NewIndexer(&fakeEmbedder{}, IndexerConfig{}), PipelineConfig{})

	_, err := p.Start("github.com/demo/panic")
	require.NoError(t, err)

	snap := waitForTerminal(t, store)
	assert.Equal(t, datatypes.StatusError, snap.Status)
	assert.Contains(t, snap.ErrorDetail, "internal error")
}

func TestUserFacingErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: bad host", ErrInvalidRepoURL), "not a valid public GitHub URL"},
		{fmt.Errorf("%w: 60MB", ErrRepoTooLarge), "too large"},
		{fmt.Errorf("%w", ErrFetchTimeout), "timed out"},
		{fmt.Errorf("%w: dns", ErrNetwork), "Could not fetch"},
		{ErrNoSupportedFiles, "No supported code files"},
		{fmt.Errorf("%w: down", ErrEmbeddingService), "embedding service"},
		{context.DeadlineExceeded, "took too long"},
		{fmt.Errorf("mystery"), "unexpectedly"},
	}
	for _, tt := range tests {
		assert.Contains(t, userFacingError(tt.err), tt.want)
	}
}
