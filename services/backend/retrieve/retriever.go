// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieve answers similarity queries against the active
// repository index.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codematrix-ai/codematrix/services/backend/index"
	"github.com/codematrix-ai/codematrix/services/backend/state"
	"github.com/codematrix-ai/codematrix/services/llm"
)

// DefaultTopK is the fragment count returned when the caller does not ask
// for a specific number.
const DefaultTopK = 5

// MaxTopK caps caller-supplied fragment counts.
const MaxTopK = 20

var (
	// ErrNoActiveIndex means no repository is indexed and ready. Chat is
	// only possible once an ingestion has completed.
	ErrNoActiveIndex = errors.New("no repository is indexed and ready")

	// ErrModelMismatch means the query embedder and the active index were
	// built with different embedding models. Scores across models are
	// meaningless, so the query is refused rather than answered badly.
	ErrModelMismatch = errors.New("embedding model mismatch between query and index")
)

// Retriever embeds a question and searches the active index.
type Retriever struct {
	store    *state.Store
	embedder llm.Embedder
}

func NewRetriever(store *state.Store, embedder llm.Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve returns the topK most similar fragments to question. A topK
// outside [1, MaxTopK] is clamped to the defaults.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]index.Result, error) {
	ix, ok := r.store.ActiveIndex()
	if !ok {
		return nil, ErrNoActiveIndex
	}
	if ix.Model() != r.embedder.Model() {
		slog.Error("Active index was built with a different embedding model",
			"index_model", ix.Model(), "query_model", r.embedder.Model())
		return nil, fmt.Errorf("%w: index=%s query=%s", ErrModelMismatch, ix.Model(), r.embedder.Model())
	}

	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	vectors, err := r.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("failed to embed query: got %d vectors for one text", len(vectors))
	}

	results, err := ix.Search(vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}
	slog.Debug("Retrieved fragments for query", "top_k", topK, "returned", len(results))
	return results, nil
}
