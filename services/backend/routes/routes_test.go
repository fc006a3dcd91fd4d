// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/codematrix-ai/codematrix/services/backend/compose"
	"github.com/codematrix-ai/codematrix/services/backend/ingest"
	"github.com/codematrix-ai/codematrix/services/backend/retrieve"
	"github.com/codematrix-ai/codematrix/services/backend/state"
	"github.com/codematrix-ai/codematrix/services/llm"
	"github.com/codematrix-ai/codematrix/services/preview"
	"github.com/codematrix-ai/codematrix/services/scanner"
)

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// mockGenerator is a minimal mock for llm.Generator
type mockGenerator struct{}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return "mock response", nil
}

func (m *mockGenerator) Name() string { return "mock" }

// mockEmbedder is a minimal mock for llm.Embedder
type mockEmbedder struct{}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (m *mockEmbedder) Model() string { return "mock-embedding" }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	scan, err := scanner.NewScanner()
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}

	store := state.NewStore()
	embedder := &mockEmbedder{}
	fetcher := ingest.NewFetcher(ingest.FetcherConfig{})
	chunker := ingest.NewChunker(ingest.ChunkerConfig{})
	indexer := ingest.NewIndexer(embedder, ingest.IndexerConfig{})
	pipeline := ingest.NewPipeline(store, fetcher, chunker, indexer, ingest.PipelineConfig{})
	t.Cleanup(pipeline.Shutdown)

	retriever := retrieve.NewRetriever(store, embedder)
	composer := compose.NewComposer(&mockGenerator{}, compose.ComposerConfig{})
	previews := preview.NewStore(0)

	router := gin.New()
	SetupRoutes(router, store, pipeline, retriever, composer, scan, previews,
		map[string]bool{"openai": true, "groq": false})
	return router
}

func TestSetupRoutes_RegistersAllEndpoints(t *testing.T) {
	router := newTestRouter(t)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/"},
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/clone"},
		{"GET", "/v1/status"},
		{"GET", "/v1/repo_info"},
		{"POST", "/v1/chat"},
		{"POST", "/v1/explain"},
		{"POST", "/v1/security-scan"},
		{"POST", "/v1/visualize"},
		{"POST", "/v1/preview"},
		{"GET", "/v1/preview/:id"},
	}

	routes := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("route %s %s not registered", want.method, want.path)
		}
	}
}

func TestSetupRoutes_HealthResponds(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health returned %d, want 200", w.Code)
	}
}

func TestSetupRoutes_UnknownRouteIs404(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /v1/nope returned %d, want 404", w.Code)
	}
}
