// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads backend settings from the environment. Every value
// has a default; missing settings are logged, never fatal.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds the runtime settings of the backend service.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// PrimaryBackend selects the chat model provider: "groq" or "openai".
	// The other provider, when configured, becomes the quota fallback.
	PrimaryBackend string

	// MaxRepoBytes bounds the aggregate size of a fetched repository.
	MaxRepoBytes int64

	// FetchTimeout bounds one repository fetch.
	FetchTimeout time.Duration

	// IndexTimeout bounds the embed-and-build stage of one ingestion.
	IndexTimeout time.Duration

	// ChunkSize is the target fragment size in characters.
	ChunkSize int

	// PreviewTTL is how long preview artifacts stay retrievable.
	PreviewTTL time.Duration
}

// Load reads the configuration from the environment, logging each default
// it falls back to.
func Load() Config {
	cfg := Config{
		Port:           envString("BACKEND_PORT", "8000"),
		PrimaryBackend: envString("LLM_BACKEND_TYPE", "groq"),
		MaxRepoBytes:   envInt64("MAX_REPO_MB", 50) * 1024 * 1024,
		FetchTimeout:   time.Duration(envInt64("FETCH_TIMEOUT_SECONDS", 120)) * time.Second,
		IndexTimeout:   time.Duration(envInt64("INDEX_TIMEOUT_SECONDS", 600)) * time.Second,
		ChunkSize:      int(envInt64("CHUNK_SIZE", 1000)),
		PreviewTTL:     time.Duration(envInt64("PREVIEW_TTL_MINUTES", 30)) * time.Minute,
	}
	return cfg
}

func envString(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		slog.Warn("Environment variable not set, using default", "key", key, "default", fallback)
		return fallback
	}
	return value
}

func envInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		slog.Warn("Invalid value for environment variable, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return value
}
