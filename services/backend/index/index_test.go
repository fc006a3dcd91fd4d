// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFragments() []Fragment {
	return []Fragment{
		{ID: "f1", SourcePath: "app.py", Text: "def handler(): pass", StartLine: 1, EndLine: 1},
		{ID: "f2", SourcePath: "app.py", Text: "class Router: pass", StartLine: 3, EndLine: 3},
		{ID: "f3", SourcePath: "README.md", Text: "# usage", StartLine: 1, EndLine: 1},
	}
}

func TestNewValidation(t *testing.T) {
	frags := testFragments()

	tests := []struct {
		name    string
		frags   []Fragment
		vectors [][]float32
		model   string
	}{
		{"mismatched counts", frags, [][]float32{{1, 0}}, "m"},
		{"zero fragments", nil, nil, "m"},
		{"missing model", frags, [][]float32{{1, 0}, {0, 1}, {1, 1}}, ""},
		{"ragged dimensions", frags, [][]float32{{1, 0}, {0, 1, 2}, {1, 1}}, "m"},
		{"empty text", []Fragment{{ID: "x"}}, [][]float32{{1}}, "m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.frags, tt.vectors, tt.model)
			assert.Error(t, err)
		})
	}
}

func TestSearchOrdersByDescendingSimilarity(t *testing.T) {
	ix, err := New(testFragments(), [][]float32{
		{1, 0},
		{0.9, 0.1},
		{0, 1},
	}, "test-model")
	require.NoError(t, err)

	results, err := ix.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "f1", results[0].Fragment.ID)
	assert.Equal(t, "f2", results[1].Fragment.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchIsDeterministic(t *testing.T) {
	// Two identical vectors tie exactly; stable sort must keep the
	// original indexing order across repeated calls.
	ix, err := New(testFragments(), [][]float32{
		{1, 0},
		{1, 0},
		{0, 1},
	}, "test-model")
	require.NoError(t, err)

	first, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ix.Search([]float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "f1", first[0].Fragment.ID)
	assert.Equal(t, "f2", first[1].Fragment.ID)
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix, err := New(testFragments(), [][]float32{{1, 0}, {0, 1}, {1, 1}}, "test-model")
	require.NoError(t, err)

	_, err = ix.Search([]float32{1, 0, 0}, 2)
	assert.Error(t, err)
}

func TestSearchZeroVectorScoresZero(t *testing.T) {
	ix, err := New(testFragments(), [][]float32{{1, 0}, {0, 0}, {0, 1}}, "test-model")
	require.NoError(t, err)

	results, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	for _, r := range results {
		if r.Fragment.ID == "f2" {
			assert.Zero(t, r.Score)
		}
	}
}

func TestSearchKLargerThanIndex(t *testing.T) {
	ix, err := New(testFragments(), [][]float32{{1, 0}, {0, 1}, {1, 1}}, "test-model")
	require.NoError(t, err)

	results, err := ix.Search([]float32{1, 1}, 50)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestIndexCopiesVectors(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	ix, err := New(testFragments(), vectors, "test-model")
	require.NoError(t, err)

	before, err := ix.Search([]float32{1, 0}, 1)
	require.NoError(t, err)

	// Mutating the caller's slice must not affect the index.
	vectors[0][0] = 0
	vectors[0][1] = 1

	after, err := ix.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
