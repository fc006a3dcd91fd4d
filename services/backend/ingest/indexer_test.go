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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codematrix-ai/codematrix/services/backend/index"
	"github.com/codematrix-ai/codematrix/services/llm"
)

// fakeEmbedder returns a deterministic unit vector per text, with optional
// scripted failures.
type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	shouldFail := f.failures > 0
	if shouldFail {
		f.failures--
	}
	f.mu.Unlock()

	if shouldFail {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.New("transient upstream failure")
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 4)
		v[len(text)%4] = 1
		vectors[i] = v
	}
	return vectors, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embedder" }

func makeFragments(n int) []index.Fragment {
	fragments := make([]index.Fragment, n)
	for i := range fragments {
		fragments[i] = index.Fragment{
			ID:         fmt.Sprintf("frag-%03d", i),
			SourcePath: "app.py",
			Text:       fmt.Sprintf("def fn_%d(): pass", i),
			StartLine:  i + 1,
			EndLine:    i + 1,
		}
	}
	return fragments
}

func TestBuildIndexEmbedsAllFragments(t *testing.T) {
	emb := &fakeEmbedder{}
	ix := NewIndexer(emb, IndexerConfig{BatchSize: 8, BaseBackoff: time.Millisecond})

	built, err := ix.BuildIndex(context.Background(), makeFragments(20))
	require.NoError(t, err)
	require.NotNil(t, built)
	assert.Equal(t, "fake-embedder", built.Model())
	assert.Equal(t, 20, built.Len())
}

func TestBuildIndexRetriesTransientFailures(t *testing.T) {
	emb := &fakeEmbedder{failures: 2}
	ix := NewIndexer(emb, IndexerConfig{BatchSize: 64, BaseBackoff: time.Millisecond})

	built, err := ix.BuildIndex(context.Background(), makeFragments(5))
	require.NoError(t, err)
	assert.Equal(t, 5, built.Len())
	assert.Equal(t, 3, emb.calls, "two failures then one success")
}

func TestBuildIndexFailsAfterRetriesExhausted(t *testing.T) {
	emb := &fakeEmbedder{failures: 100}
	ix := NewIndexer(emb, IndexerConfig{BatchSize: 64, BaseBackoff: time.Millisecond})

	_, err := ix.BuildIndex(context.Background(), makeFragments(3))
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestBuildIndexQuotaFailsFast(t *testing.T) {
	emb := &fakeEmbedder{failures: 100, err: fmt.Errorf("%w: billing cap", llm.ErrQuota)}
	ix := NewIndexer(emb, IndexerConfig{BatchSize: 64, BaseBackoff: time.Minute})

	start := time.Now()
	_, err := ix.BuildIndex(context.Background(), makeFragments(3))
	assert.ErrorIs(t, err, llm.ErrQuota)
	assert.Less(t, time.Since(start), time.Second, "quota errors must not be retried")
	assert.Equal(t, 1, emb.calls)
}

func TestBuildIndexEmptyInput(t *testing.T) {
	ix := NewIndexer(&fakeEmbedder{}, IndexerConfig{})
	_, err := ix.BuildIndex(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSupportedFiles)
}

func TestBuildIndexVectorCountMismatch(t *testing.T) {
	ix := NewIndexer(&shortEmbedder{}, IndexerConfig{BaseBackoff: time.Millisecond})
	_, err := ix.BuildIndex(context.Background(), makeFragments(2))
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

type shortEmbedder struct{}

func (s *shortEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 0}}, nil
}

func (s *shortEmbedder) Model() string { return "short" }
