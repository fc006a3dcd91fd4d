// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package index implements the in-memory similarity index over embedded
// code fragments.
//
// An Index is immutable after construction: re-ingestion builds a fresh
// Index and swaps it atomically into the repository state store. Queries
// are therefore lock-free and safe for unbounded concurrency.
package index

import (
	"fmt"
	"math"
	"sort"
)

// Fragment is one retrievable unit of code or text with provenance.
type Fragment struct {
	ID         string `json:"id"`
	SourcePath string `json:"source_path"`
	Text       string `json:"text"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
}

// Result is a fragment matched by a similarity query.
type Result struct {
	Fragment Fragment `json:"fragment"`
	Score    float64  `json:"score"`
}

type entry struct {
	fragment Fragment
	vector   []float32
	norm     float64
}

// Index is a similarity-searchable collection of embedded fragments for
// one repository session.
type Index struct {
	entries []entry
	model   string
	dim     int
}

// New builds an Index from fragments and their embedding vectors.
//
// Every fragment must have exactly one vector, all vectors must share one
// dimension, and model identifies the embedding model that produced them.
// The inputs are copied; the caller may discard its slices afterwards.
func New(fragments []Fragment, vectors [][]float32, model string) (*Index, error) {
	if len(fragments) != len(vectors) {
		return nil, fmt.Errorf("fragment count %d does not match vector count %d", len(fragments), len(vectors))
	}
	if len(fragments) == 0 {
		return nil, fmt.Errorf("cannot build an index with zero fragments")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model identifier is required")
	}

	dim := len(vectors[0])
	entries := make([]entry, len(fragments))
	for i, fragment := range fragments {
		if fragment.Text == "" {
			return nil, fmt.Errorf("fragment %q has empty text", fragment.ID)
		}
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vectors[i]), dim)
		}
		vector := make([]float32, dim)
		copy(vector, vectors[i])
		entries[i] = entry{
			fragment: fragment,
			vector:   vector,
			norm:     vectorNorm(vector),
		}
	}

	return &Index{entries: entries, model: model, dim: dim}, nil
}

// Len returns the number of indexed fragments.
func (ix *Index) Len() int { return len(ix.entries) }

// Model returns the embedding model identifier the index was built with.
func (ix *Index) Model() string { return ix.model }

// Dim returns the embedding dimension.
func (ix *Index) Dim() int { return ix.dim }

// Search returns up to k fragments ordered by descending cosine similarity
// to the query vector. Ties keep the original indexing order, so repeated
// calls with the same inputs return the same list.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	queryNorm := vectorNorm(query)
	results := make([]Result, 0, len(ix.entries))
	for _, e := range ix.entries {
		results = append(results, Result{
			Fragment: e.fragment,
			Score:    cosine(query, queryNorm, e.vector, e.norm),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine computes cosine similarity given precomputed norms. A zero vector
// on either side scores 0 rather than NaN.
func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
