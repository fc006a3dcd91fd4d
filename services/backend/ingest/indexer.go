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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codematrix-ai/codematrix/services/backend/index"
	"github.com/codematrix-ai/codematrix/services/llm"
)

const (
	// DefaultEmbedBatchSize is how many fragments go into one embedding
	// request.
	DefaultEmbedBatchSize = 32

	// DefaultEmbedConcurrency bounds in-flight embedding requests.
	DefaultEmbedConcurrency = 4

	embedMaxAttempts = 3
)

// Indexer embeds fragments and assembles the searchable index. Indexing is
// all-or-nothing: a batch that keeps failing fails the whole build, so a
// partially embedded index is never published.
type Indexer struct {
	embedder    llm.Embedder
	batchSize   int
	concurrency int
	baseBackoff time.Duration
}

// IndexerConfig configures an Indexer. Zero values take the defaults.
type IndexerConfig struct {
	BatchSize   int
	Concurrency int

	// BaseBackoff is the sleep before the second attempt; it doubles per
	// attempt. Tests shrink it.
	BaseBackoff time.Duration
}

func NewIndexer(embedder llm.Embedder, cfg IndexerConfig) *Indexer {
	ix := &Indexer{
		embedder:    embedder,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		baseBackoff: cfg.BaseBackoff,
	}
	if ix.batchSize <= 0 {
		ix.batchSize = DefaultEmbedBatchSize
	}
	if ix.concurrency <= 0 {
		ix.concurrency = DefaultEmbedConcurrency
	}
	if ix.baseBackoff <= 0 {
		ix.baseBackoff = time.Second
	}
	return ix
}

// BuildIndex embeds every fragment and returns a ready-to-swap index.
// Batches run concurrently but each vector lands at its fragment's
// position, so fragment order is preserved exactly.
func (ix *Indexer) BuildIndex(ctx context.Context, fragments []index.Fragment) (*index.Index, error) {
	if len(fragments) == 0 {
		return nil, ErrNoSupportedFiles
	}

	vectors := make([][]float32, len(fragments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for start := 0; start < len(fragments); start += ix.batchSize {
		start := start
		end := min(start+ix.batchSize, len(fragments))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, f := range fragments[start:end] {
				texts = append(texts, f.Text)
			}
			batch, err := ix.embedBatch(gctx, texts)
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	built, err := index.New(fragments, vectors, ix.embedder.Model())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
	}
	slog.Info("Built repository index", "fragments", len(fragments), "embedding_model", ix.embedder.Model())
	return built, nil
}

// embedBatch retries transient failures with doubling backoff. Quota
// errors fail fast; retrying an exhausted quota only burns time.
func (ix *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= embedMaxAttempts; attempt++ {
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingService, len(vectors), len(texts))
			}
			return vectors, nil
		}
		if errors.Is(err, llm.ErrQuota) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt < embedMaxAttempts {
			backoff := ix.baseBackoff << (attempt - 1)
			slog.Warn("Embedding batch failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, lastErr)
}
