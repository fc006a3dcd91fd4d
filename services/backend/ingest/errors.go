// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import "errors"

// Sentinel errors for the ingestion pipeline. Handlers and tests match on
// these with errors.Is; the concrete cause is carried by wrapping.
var (
	// ErrInvalidRepoURL marks input rejected before any network access.
	ErrInvalidRepoURL = errors.New("invalid repository URL")

	// ErrRepoTooLarge marks a repository whose aggregate content exceeds
	// the configured size ceiling. The fetch is aborted mid-stream.
	ErrRepoTooLarge = errors.New("repository exceeds the size limit")

	// ErrFetchTimeout marks a fetch that ran past its wall-clock bound.
	ErrFetchTimeout = errors.New("repository fetch timed out")

	// ErrNetwork marks any other failure talking to the repository host.
	ErrNetwork = errors.New("repository fetch failed")

	// ErrNoSupportedFiles means the repository produced zero fragments
	// after filtering and chunking.
	ErrNoSupportedFiles = errors.New("no supported code files found in the repository")

	// ErrEmbeddingService marks an embedding failure that survived the
	// bounded retry policy. The whole ingestion fails; there is no
	// silently-partial index.
	ErrEmbeddingService = errors.New("embedding service failed")
)
