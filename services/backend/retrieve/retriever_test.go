// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codematrix-ai/codematrix/services/backend/index"
	"github.com/codematrix-ai/codematrix/services/backend/state"
)

// axisEmbedder maps known texts onto fixed axes so similarity ordering is
// predictable in tests.
type axisEmbedder struct {
	model   string
	vectors map[string][]float32
}

func (a *axisEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := a.vectors[text]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func (a *axisEmbedder) Model() string { return a.model }

func readyStore(t *testing.T, model string) *state.Store {
	t.Helper()
	ix, err := index.New(
		[]index.Fragment{
			{ID: "auth", SourcePath: "auth.py", Text: "def login(): ...", StartLine: 1, EndLine: 3},
			{ID: "db", SourcePath: "db.py", Text: "def connect(): ...", StartLine: 1, EndLine: 3},
		},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		model,
	)
	require.NoError(t, err)

	store := state.NewStore()
	epoch := store.BeginIngestion("demo")
	require.True(t, store.SwapActiveIndex(epoch, ix))
	return store
}

func TestRetrieveOrdersBySimilarity(t *testing.T) {
	emb := &axisEmbedder{
		model:   "test-model",
		vectors: map[string][]float32{"how does login work?": {1, 0, 0}},
	}
	r := NewRetriever(readyStore(t, "test-model"), emb)

	results, err := r.Retrieve(context.Background(), "how does login work?", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "auth", results[0].Fragment.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRetrieveNoActiveIndex(t *testing.T) {
	r := NewRetriever(state.NewStore(), &axisEmbedder{model: "test-model"})
	_, err := r.Retrieve(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrNoActiveIndex)
}

func TestRetrieveDuringIngestionIsRefused(t *testing.T) {
	store := state.NewStore()
	store.BeginIngestion("demo")

	r := NewRetriever(store, &axisEmbedder{model: "test-model"})
	_, err := r.Retrieve(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrNoActiveIndex)
}

func TestRetrieveModelMismatch(t *testing.T) {
	r := NewRetriever(readyStore(t, "old-model"), &axisEmbedder{model: "new-model"})
	_, err := r.Retrieve(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestRetrieveClampsTopK(t *testing.T) {
	emb := &axisEmbedder{model: "test-model", vectors: map[string][]float32{}}
	r := NewRetriever(readyStore(t, "test-model"), emb)

	results, err := r.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), DefaultTopK)

	results, err = r.Retrieve(context.Background(), "q", 10000)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), MaxTopK)
}
