// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
	"github.com/codematrix-ai/codematrix/services/backend/ingest"
	"github.com/codematrix-ai/codematrix/services/backend/state"
)

// CloneRepository accepts a repository URL and starts the ingestion
// pipeline. The response returns as soon as the job is accepted; clients
// poll GET /status for progress.
func CloneRepository(pipeline *ingest.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := handlerTracer.Start(c.Request.Context(), "CloneRepository")
		defer span.End()

		var req datatypes.CloneRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the clone request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		sessionID, err := pipeline.Start(req.RepoURL)
		if err != nil {
			if errors.Is(err, ingest.ErrInvalidRepoURL) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "repo_url must be a public GitHub repository URL"})
				return
			}
			slog.Error("Failed to start ingestion", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start ingestion"})
			return
		}

		c.JSON(http.StatusAccepted, datatypes.CloneResponse{
			Success:   true,
			Message:   "Repository ingestion started.",
			SessionID: sessionID,
		})
	}
}

// GetStatus reports the current ingestion lifecycle state for polling.
func GetStatus(store *state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := store.Snapshot()
		c.JSON(http.StatusOK, datatypes.StatusResponse{
			Status:   snap.Status,
			Progress: snap.Progress,
			Message:  snap.Message,
			Error:    snap.ErrorDetail,
		})
	}
}

// GetRepoInfo returns the name and description of the loaded repository,
// or 404 when no ingestion has been requested yet.
func GetRepoInfo(store *state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := store.Snapshot()
		if snap.Status == datatypes.StatusIdle {
			c.JSON(http.StatusNotFound, gin.H{"error": "no repository loaded"})
			return
		}
		c.JSON(http.StatusOK, datatypes.RepoInfoResponse{
			RepoName:        snap.RepoName,
			RepoDescription: snap.RepoDescription,
		})
	}
}
