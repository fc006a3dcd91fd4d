// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codematrix-ai/codematrix/services/backend/compose"
	"github.com/codematrix-ai/codematrix/services/backend/handlers"
	"github.com/codematrix-ai/codematrix/services/backend/ingest"
	"github.com/codematrix-ai/codematrix/services/backend/retrieve"
	"github.com/codematrix-ai/codematrix/services/backend/state"
	"github.com/codematrix-ai/codematrix/services/preview"
	"github.com/codematrix-ai/codematrix/services/scanner"
)

// SetupRoutes wires every endpoint onto the router.
func SetupRoutes(
	router *gin.Engine,
	store *state.Store,
	pipeline *ingest.Pipeline,
	retriever *retrieve.Retriever,
	composer *compose.Composer,
	scan *scanner.Scanner,
	previews *preview.Store,
	backends map[string]bool,
) {
	router.GET("/", handlers.Root())
	router.GET("/health", handlers.HealthCheck(backends))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/clone", handlers.CloneRepository(pipeline))
		v1.GET("/status", handlers.GetStatus(store))
		v1.GET("/repo_info", handlers.GetRepoInfo(store))

		v1.POST("/chat", handlers.Chat(retriever, composer))
		v1.POST("/explain", handlers.Explain(composer))

		v1.POST("/security-scan", handlers.SecurityScan(scan))
		v1.POST("/visualize", handlers.Visualize())
		v1.POST("/preview", handlers.CreatePreview(previews))
		v1.GET("/preview/:id", handlers.GetPreview(previews))
	}
}
