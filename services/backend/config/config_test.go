// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "groq", cfg.PrimaryBackend)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxRepoBytes)
	assert.Equal(t, 2*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Minute, cfg.IndexTimeout)
	assert.Equal(t, 1000, cfg.ChunkSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND_PORT", "9000")
	t.Setenv("LLM_BACKEND_TYPE", "openai")
	t.Setenv("MAX_REPO_MB", "10")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "openai", cfg.PrimaryBackend)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxRepoBytes)
}

func TestLoadRejectsGarbageValues(t *testing.T) {
	t.Setenv("MAX_REPO_MB", "not-a-number")
	t.Setenv("CHUNK_SIZE", "-5")

	cfg := Load()
	assert.Equal(t, int64(50*1024*1024), cfg.MaxRepoBytes)
	assert.Equal(t, 1000, cfg.ChunkSize)
}
