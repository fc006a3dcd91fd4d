// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
	"github.com/codematrix-ai/codematrix/services/backend/observability"
	"github.com/codematrix-ai/codematrix/services/preview"
	"github.com/codematrix-ai/codematrix/services/scanner"
	"github.com/codematrix-ai/codematrix/services/visualize"
)

// SecurityScan audits submitted code against the embedded rule set.
func SecurityScan(s *scanner.Scanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := handlerTracer.Start(c.Request.Context(), "SecurityScan")
		defer span.End()

		var req datatypes.SecurityScanRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the security scan request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		report := s.Scan(req.FilePath, req.Content)
		observability.RecordScan(string(report.RiskLevel))
		c.JSON(http.StatusOK, report)
	}
}

// Visualize builds an import dependency graph from submitted files.
func Visualize() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := handlerTracer.Start(c.Request.Context(), "Visualize")
		defer span.End()

		var req datatypes.VisualizeRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the visualize request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if len(req.Files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file is required"})
			return
		}

		c.JSON(http.StatusOK, visualize.BuildGraph(req.Files))
	}
}

// CreatePreview stores an HTML/CSS/JS snippet and returns the URL it can
// be viewed at.
func CreatePreview(store *preview.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := handlerTracer.Start(c.Request.Context(), "CreatePreview")
		defer span.End()

		var req datatypes.PreviewRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the preview request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.HTML == "" && req.CSS == "" && req.JS == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at least one of html, css, js is required"})
			return
		}

		id := store.Put(preview.Artifact{HTML: req.HTML, CSS: req.CSS, JS: req.JS})
		c.JSON(http.StatusOK, datatypes.PreviewResponse{
			PreviewID:  id,
			PreviewURL: "/v1/preview/" + id,
		})
	}
}

// GetPreview serves a stored preview artifact as a standalone HTML page.
func GetPreview(store *preview.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		artifact, ok := store.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "preview not found or expired"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(preview.Render(artifact)))
	}
}
