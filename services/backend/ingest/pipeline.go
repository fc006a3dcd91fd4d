// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codematrix-ai/codematrix/pkg/validation"
	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
	"github.com/codematrix-ai/codematrix/services/backend/index"
	"github.com/codematrix-ai/codematrix/services/backend/observability"
	"github.com/codematrix-ai/codematrix/services/backend/state"
)

// DefaultIndexTimeout bounds the embed-and-build stage of one ingestion.
const DefaultIndexTimeout = 10 * time.Minute

type repoFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]SourceFile, func(), error)
}

type fragmentChunker interface {
	ChunkAll(ctx context.Context, files []SourceFile) ([]index.Fragment, error)
}

type indexBuilder interface {
	BuildIndex(ctx context.Context, fragments []index.Fragment) (*index.Index, error)
}

// Pipeline runs the full ingestion flow for one repository request:
// fetch, chunk, embed, swap. Requests are accepted immediately; the work
// happens on a background goroutine that reports through the state store.
//
// A new request supersedes any in-flight one: the old job's context is
// canceled and the store discards whatever it still writes.
type Pipeline struct {
	store   *state.Store
	fetcher repoFetcher
	chunker fragmentChunker
	indexer indexBuilder

	indexTimeout time.Duration

	mu         sync.Mutex
	cancelPrev context.CancelFunc
}

// PipelineConfig configures a Pipeline. Zero IndexTimeout takes the default.
type PipelineConfig struct {
	IndexTimeout time.Duration
}

func NewPipeline(store *state.Store, fetcher repoFetcher, chunker fragmentChunker, indexer indexBuilder, cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		store:        store,
		fetcher:      fetcher,
		chunker:      chunker,
		indexer:      indexer,
		indexTimeout: cfg.IndexTimeout,
	}
	if p.indexTimeout <= 0 {
		p.indexTimeout = DefaultIndexTimeout
	}
	return p
}

// Start validates the request, registers a new ingestion session, and
// launches the background job. It returns a session ID as soon as the job
// is accepted; callers poll the status endpoint for progress.
//
// Only URL validation happens synchronously. Every later failure is
// reported through the state store, never to the caller of Start.
func (p *Pipeline) Start(rawURL string) (string, error) {
	if _, err := validation.SanitizeRepoURL(rawURL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
	}

	repoName := validation.RepoDisplayName(rawURL)
	sessionID := uuid.NewString()

	p.mu.Lock()
	epoch := p.store.BeginIngestion(repoName)
	if p.cancelPrev != nil {
		p.cancelPrev()
	}
	// The job owns its own lifetime; it must not die with the HTTP
	// request that started it.
	jobCtx, cancel := context.WithCancel(context.Background())
	p.cancelPrev = cancel
	p.mu.Unlock()

	slog.Info("Accepted repository ingestion", "repo", repoName, "session_id", sessionID, "epoch", epoch)
	go p.run(jobCtx, epoch, rawURL)

	return sessionID, nil
}

// Shutdown cancels any in-flight ingestion job.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelPrev != nil {
		p.cancelPrev()
		p.cancelPrev = nil
	}
}

func (p *Pipeline) run(ctx context.Context, epoch uint64, rawURL string) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Ingestion job panicked", "epoch", epoch, "panic", r)
			if p.store.Fail(epoch, "internal error during ingestion") {
				observability.RecordIngestion("error", time.Since(started).Seconds())
			}
		}
	}()

	p.store.Set(epoch, datatypes.StatusCloning, 10, "Fetching repository...")
	files, cleanup, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		p.fail(ctx, epoch, started, err)
		return
	}
	defer cleanup()

	// One timeout budget covers the whole indexing phase, chunking and
	// embedding alike.
	indexCtx, cancel := context.WithTimeout(ctx, p.indexTimeout)
	defer cancel()

	p.store.Set(epoch, datatypes.StatusIndexing, 40, "Parsing and chunking code files...")
	fragments, err := p.chunker.ChunkAll(indexCtx, files)
	if err != nil {
		p.fail(ctx, epoch, started, err)
		return
	}

	p.store.Set(epoch, datatypes.StatusIndexing, 70, "Embedding code fragments...")
	built, err := p.indexer.BuildIndex(indexCtx, fragments)
	if err != nil {
		p.fail(ctx, epoch, started, err)
		return
	}

	if p.store.SwapActiveIndex(epoch, built) {
		observability.RecordIngestion("ready", time.Since(started).Seconds())
		observability.SetIndexedFragments(built.Len())
		slog.Info("Repository ingestion complete", "epoch", epoch, "fragments", built.Len())
	} else {
		observability.RecordIngestion("superseded", 0)
	}
}

// fail records a terminal error for the session unless the job was
// superseded, in which case the outcome is irrelevant and only logged.
func (p *Pipeline) fail(ctx context.Context, epoch uint64, started time.Time, err error) {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		slog.Info("Ingestion job canceled by a newer request", "epoch", epoch)
		return
	}
	detail := userFacingError(err)
	if p.store.Fail(epoch, detail) {
		observability.RecordIngestion("error", time.Since(started).Seconds())
		slog.Error("Repository ingestion failed", "epoch", epoch, "detail", detail, "error", err)
	}
}

// userFacingError converts a pipeline error into the message surfaced on
// the status endpoint.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRepoURL):
		return "The repository URL is not a valid public GitHub URL."
	case errors.Is(err, ErrRepoTooLarge):
		return "The repository is too large to index."
	case errors.Is(err, ErrFetchTimeout):
		return "Fetching the repository timed out. Please try again."
	case errors.Is(err, ErrNetwork):
		return "Could not fetch the repository. Check that it exists and is public."
	case errors.Is(err, ErrNoSupportedFiles):
		return "No supported code files were found in the repository."
	case errors.Is(err, ErrEmbeddingService):
		return "The embedding service is unavailable. Please try again later."
	case errors.Is(err, context.DeadlineExceeded):
		return "Indexing took too long and was aborted."
	default:
		return "Repository ingestion failed unexpectedly."
	}
}
