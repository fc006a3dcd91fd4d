// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the wire-level request and response types shared
// by the backend handlers and the CLI client.
package datatypes

import "github.com/codematrix-ai/codematrix/services/backend/index"

// RepositoryStatus enumerates the ingestion lifecycle states.
type RepositoryStatus string

const (
	StatusIdle     RepositoryStatus = "idle"
	StatusCloning  RepositoryStatus = "cloning"
	StatusIndexing RepositoryStatus = "indexing"
	StatusReady    RepositoryStatus = "ready"
	StatusError    RepositoryStatus = "error"
)

// Message is one prior conversation turn supplied by the caller. The core
// does not persist history; whatever the client sends is all the context
// the composer sees.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CloneRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
}

type CloneResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type StatusResponse struct {
	Status   RepositoryStatus `json:"status"`
	Progress int              `json:"progress"`
	Message  string           `json:"message"`
	Error    string           `json:"error,omitempty"`
}

type RepoInfoResponse struct {
	RepoName        string `json:"repo_name"`
	RepoDescription string `json:"repo_description"`
}

type ChatRequest struct {
	Question string    `json:"question" binding:"required"`
	TopK     int       `json:"top_k"`
	History  []Message `json:"history"`
}

// RetrievedFragment is the provenance-carrying snippet view returned to
// the UI alongside an answer.
type RetrievedFragment struct {
	SourcePath string  `json:"source_path"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type ChatResponse struct {
	Answer        string              `json:"answer"`
	RetrievedCode []RetrievedFragment `json:"retrieved_code"`
}

type ExplainRequest struct {
	Code       string `json:"code" binding:"required"`
	Complexity string `json:"complexity"`
}

type ExplanationResponse struct {
	Explanation string `json:"explanation"`
}

type SecurityScanRequest struct {
	Content  string `json:"content" binding:"required"`
	FilePath string `json:"file_path"`
}

type VisualizeFile struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

type VisualizeRequest struct {
	Files []VisualizeFile `json:"files" binding:"required"`
}

type PreviewRequest struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	JS   string `json:"js"`
}

type PreviewResponse struct {
	PreviewID  string `json:"preview_id"`
	PreviewURL string `json:"preview_url"`
}

type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Backends  map[string]bool `json:"backends"`
}

// NewRetrievedFragments converts index search results into wire fragments.
func NewRetrievedFragments(results []index.Result) []RetrievedFragment {
	fragments := make([]RetrievedFragment, 0, len(results))
	for _, r := range results {
		fragments = append(fragments, RetrievedFragment{
			SourcePath: r.Fragment.SourcePath,
			StartLine:  r.Fragment.StartLine,
			EndLine:    r.Fragment.EndLine,
			Content:    r.Fragment.Text,
			Score:      r.Score,
		})
	}
	return fragments
}
