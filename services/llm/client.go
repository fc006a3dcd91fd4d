// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm defines the pluggable model capabilities the backend depends on.
//
// The core never talks to a specific provider directly. It programs against
// two narrow interfaces: Generator (prompt in, text out) and Embedder (texts
// in, vectors out). Provider selection and fallback ordering are wiring
// concerns handled in the service main, not in this package.
package llm

import (
	"context"
	"errors"
)

// ErrQuota marks quota and rate-limit failures from a provider.
//
// Callers use errors.Is(err, ErrQuota) to decide whether a secondary
// provider may be tried. Any other provider error is treated as a plain
// upstream failure and is not worth re-routing.
var ErrQuota = errors.New("model provider quota exceeded")

// GenerationParams carries optional sampling parameters for a generation
// call. Nil pointers mean "use the provider's default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Generator is the generative capability used by the answer composer and
// the explain endpoint.
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Name identifies the backend for logging and the health endpoint.
	Name() string
}

// Embedder is the embedding capability used at index time and at query
// time. The retriever requires that both sides report the same Model();
// mixing embedding spaces invalidates similarity scores.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier, used to enforce
	// embedding-space consistency between index and query.
	Model() string
}
