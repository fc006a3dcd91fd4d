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
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/codematrix-ai/codematrix/services/backend/compose"
	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
	"github.com/codematrix-ai/codematrix/services/backend/observability"
	"github.com/codematrix-ai/codematrix/services/backend/retrieve"
)

// Chat answers a question about the loaded repository using retrieval
// over the active index.
func Chat(retriever *retrieve.Retriever, composer *compose.Composer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "Chat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		results, err := retriever.Retrieve(ctx, req.Question, req.TopK)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			switch {
			case errors.Is(err, retrieve.ErrNoActiveIndex):
				observability.RecordChat("no_index")
				c.JSON(http.StatusConflict, gin.H{"error": "no repository is indexed and ready; clone one first"})
			case errors.Is(err, retrieve.ErrModelMismatch):
				observability.RecordChat("error")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "the index must be rebuilt; re-clone the repository"})
			default:
				observability.RecordChat("error")
				slog.Error("Retrieval failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search the repository"})
			}
			return
		}

		started := time.Now()
		answer, used, err := composer.Answer(ctx, req.Question, req.History, results)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observability.RecordChat("error")
			slog.Error("Answer generation failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "the model backend failed to generate an answer"})
			return
		}
		observability.RecordGeneration("chat", time.Since(started).Seconds())
		observability.RecordChat("success")

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Answer:        answer,
			RetrievedCode: datatypes.NewRetrievedFragments(used),
		})
	}
}

// Explain explains a standalone code snippet at a requested complexity
// level. It works without a loaded repository.
func Explain(composer *compose.Composer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "Explain")
		defer span.End()

		var req datatypes.ExplainRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the explain request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		started := time.Now()
		explanation, err := composer.Explain(ctx, req.Code, req.Complexity)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Explanation generation failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "the model backend failed to generate an explanation"})
			return
		}
		observability.RecordGeneration("explain", time.Since(started).Seconds())

		c.JSON(http.StatusOK, datatypes.ExplanationResponse{Explanation: explanation})
	}
}
