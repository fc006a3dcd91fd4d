// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin HTTP handlers for the backend API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
)

var handlerTracer = otel.Tracer("codematrix.backend.handlers")

// Root is the welcome route, a cheap reachability check for clients that
// don't care about backend details.
func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Hello World"})
	}
}

// HealthCheck reports liveness plus which model backends were configured
// at startup.
func HealthCheck(backends map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Backends:  backends,
		})
	}
}
