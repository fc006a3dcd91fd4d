// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest implements the repository ingestion pipeline: fetch,
// chunk, embed, index.
package ingest

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codematrix-ai/codematrix/pkg/validation"
)

const (
	// DefaultMaxRepoBytes is the aggregate uncompressed size ceiling.
	DefaultMaxRepoBytes = 50 * 1024 * 1024

	// DefaultMaxFileBytes is the per-file size threshold; larger files
	// are skipped, not fatal.
	DefaultMaxFileBytes = 512 * 1024

	// DefaultFetchTimeout is the wall-clock bound on a whole fetch.
	DefaultFetchTimeout = 2 * time.Minute

	// binarySniffLen is how many leading bytes are inspected when
	// deciding whether a file is text.
	binarySniffLen = 8000
)

// SourceFile is one text file retrieved from the repository. Content is
// handed read-only to the chunker and discarded after chunking.
type SourceFile struct {
	RelativePath string
	Content      []byte
}

// HTTPClient allows injecting a mock client in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetcherConfig bounds a Fetcher. Zero values take the defaults above.
type FetcherConfig struct {
	MaxRepoBytes int64
	MaxFileBytes int64
	Timeout      time.Duration

	// ArchiveBaseURL overrides the codeload host, for tests.
	ArchiveBaseURL string

	// ScratchRoot is the parent directory for per-fetch scratch
	// directories. Empty means the OS temp dir.
	ScratchRoot string

	HTTPClient HTTPClient
}

// Fetcher downloads a repository's file tree as a tar.gz archive into a
// scratch directory, enforcing size and time bounds.
type Fetcher struct {
	maxRepoBytes   int64
	maxFileBytes   int64
	timeout        time.Duration
	archiveBaseURL string
	scratchRoot    string
	httpClient     HTTPClient
}

// NewFetcher builds a Fetcher, filling unset config fields with defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		maxRepoBytes:   cfg.MaxRepoBytes,
		maxFileBytes:   cfg.MaxFileBytes,
		timeout:        cfg.Timeout,
		archiveBaseURL: cfg.ArchiveBaseURL,
		scratchRoot:    cfg.ScratchRoot,
		httpClient:     cfg.HTTPClient,
	}
	if f.maxRepoBytes <= 0 {
		f.maxRepoBytes = DefaultMaxRepoBytes
	}
	if f.maxFileBytes <= 0 {
		f.maxFileBytes = DefaultMaxFileBytes
	}
	if f.timeout <= 0 {
		f.timeout = DefaultFetchTimeout
	}
	if f.archiveBaseURL == "" {
		f.archiveBaseURL = "https://codeload.github.com"
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: f.timeout}
	}
	return f
}

// Fetch retrieves the repository at rawURL.
//
// On success it returns the filtered text files plus a cleanup function
// that disposes the scratch directory; the caller must invoke it once the
// files are chunked. On failure the scratch directory is already disposed
// and the error wraps one of ErrInvalidRepoURL, ErrRepoTooLarge,
// ErrFetchTimeout, or ErrNetwork.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]SourceFile, func(), error) {
	locator, err := validation.SanitizeRepoURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	scratch, err := os.MkdirTemp(f.scratchRoot, "codematrix-repo-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(scratch); err != nil {
			slog.Warn("Failed to dispose scratch directory", "path", scratch, "error", err)
		}
	}

	files, err := f.download(ctx, locator, scratch)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	slog.Info("Fetched repository archive", "repo", locator.String(), "files_kept", len(files), "scratch", scratch)
	return files, cleanup, nil
}

func (f *Fetcher) download(ctx context.Context, locator validation.RepoLocator, scratch string) ([]SourceFile, error) {
	archiveURL := fmt.Sprintf("%s/%s/%s/tar.gz/HEAD", f.archiveBaseURL, locator.Owner, locator.Name)
	slog.Info("Downloading repository archive", "url", archiveURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", "codematrix-backend/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: repository %s not found or not public", ErrNetwork, locator)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: archive host returned status %s", ErrNetwork, resp.Status)
	}

	// The compressed stream is capped at the repo ceiling too, so a
	// hostile archive cannot make us buffer unbounded input before the
	// per-entry accounting kicks in.
	limited := &cappedReader{r: resp.Body, remaining: f.maxRepoBytes}
	gz, err := gzip.NewReader(limited)
	if err != nil {
		if errors.Is(err, errSizeCapExceeded) {
			return nil, fmt.Errorf("%w: archive larger than %d bytes", ErrRepoTooLarge, f.maxRepoBytes)
		}
		return nil, fmt.Errorf("%w: invalid archive: %v", ErrNetwork, err)
	}
	defer gz.Close()

	files, err := f.extract(ctx, tar.NewReader(gz), scratch)
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (f *Fetcher) extract(ctx context.Context, tr *tar.Reader, scratch string) ([]SourceFile, error) {
	var files []SourceFile
	var totalBytes int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, classifyFetchError(err)
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, errSizeCapExceeded) {
				return nil, fmt.Errorf("%w: aggregate content exceeds %d bytes", ErrRepoTooLarge, f.maxRepoBytes)
			}
			return nil, classifyFetchError(err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		rel, ok := archiveRelativePath(hdr.Name)
		if !ok {
			slog.Warn("Skipping archive entry with unsafe path", "name", hdr.Name)
			continue
		}
		if hdr.Size > f.maxFileBytes {
			slog.Debug("Skipping oversized file", "path", rel, "size", hdr.Size)
			continue
		}

		content, err := io.ReadAll(io.LimitReader(tr, f.maxFileBytes+1))
		if err != nil {
			if errors.Is(err, errSizeCapExceeded) {
				return nil, fmt.Errorf("%w: aggregate content exceeds %d bytes", ErrRepoTooLarge, f.maxRepoBytes)
			}
			// A single unreadable entry is skipped, not fatal.
			slog.Warn("Skipping unreadable archive entry", "path", rel, "error", err)
			continue
		}
		if int64(len(content)) > f.maxFileBytes {
			continue
		}
		if !isTextContent(content) {
			slog.Debug("Skipping binary file", "path", rel)
			continue
		}

		totalBytes += int64(len(content))
		if totalBytes > f.maxRepoBytes {
			return nil, fmt.Errorf("%w: aggregate content exceeds %d bytes", ErrRepoTooLarge, f.maxRepoBytes)
		}

		if err := writeScratchFile(scratch, rel, content); err != nil {
			slog.Warn("Failed to write scratch copy", "path", rel, "error", err)
			continue
		}
		files = append(files, SourceFile{RelativePath: rel, Content: content})
	}

	return files, nil
}

// archiveRelativePath strips the tarball's top-level directory component
// and rejects entries that could escape the scratch directory.
func archiveRelativePath(name string) (string, bool) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if clean == "." || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "..") {
		return "", false
	}
	parts := strings.SplitN(clean, "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	rel := parts[1]
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return "", false
		}
	}
	return rel, true
}

func writeScratchFile(scratch, rel string, content []byte) error {
	dest := filepath.Join(scratch, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}
	return os.WriteFile(dest, content, 0640)
}

// isTextContent reports whether content looks like text. A NUL byte in
// the sniff window or invalid UTF-8 marks the file as binary.
func isTextContent(content []byte) bool {
	if len(content) == 0 {
		return true
	}
	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	for _, b := range sniff {
		if b == 0 {
			return false
		}
	}
	if len(content) <= binarySniffLen && !utf8.Valid(content) {
		return false
	}
	return true
}

func classifyFetchError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrFetchTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrFetchTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// errSizeCapExceeded distinguishes the size cap from ordinary read errors.
var errSizeCapExceeded = errors.New("size cap exceeded")

// cappedReader fails the stream once more than remaining bytes have been
// read, instead of silently truncating like io.LimitReader would.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		return 0, errSizeCapExceeded
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errSizeCapExceeded
	}
	return n, err
}
