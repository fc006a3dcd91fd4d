// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that reach the
// network or the filesystem. Using these validators prevents the ingestion
// pipeline from ever fetching an attacker-chosen host or writing outside its
// scratch directory.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// repoSegmentPattern matches a single owner or repository path segment.
// Allows: letters, digits, dots, underscores, hyphens. Max 100 characters,
// which covers GitHub's own limits with room to spare.
var repoSegmentPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,99}$`)

// allowedRepoHosts is the locator allow-list. Only hosts the fetcher knows
// how to download an archive from are accepted.
var allowedRepoHosts = map[string]bool{
	"github.com":     true,
	"www.github.com": true,
}

// RepoLocator is a validated, normalized remote repository reference.
type RepoLocator struct {
	Host  string
	Owner string
	Name  string
}

// String returns the canonical HTTPS URL for the locator.
func (l RepoLocator) String() string {
	return fmt.Sprintf("https://%s/%s/%s", l.Host, l.Owner, l.Name)
}

// SanitizeRepoURL validates a user-provided repository URL against the
// locator allow-list and returns its normalized form.
//
// Valid locators:
//   - HTTPS scheme (a bare "github.com/owner/repo" is also accepted)
//   - an allow-listed host
//   - exactly owner/repo path segments; a trailing ".git" or "/" is stripped
//
// No network access happens here; malformed input is rejected synchronously.
func SanitizeRepoURL(raw string) (RepoLocator, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RepoLocator{}, fmt.Errorf("repository URL cannot be empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return RepoLocator{}, fmt.Errorf("malformed repository URL %q: %w", raw, err)
	}
	if parsed.Scheme != "https" {
		return RepoLocator{}, fmt.Errorf("unsupported scheme %q: only https repository URLs are accepted", parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if !allowedRepoHosts[host] {
		return RepoLocator{}, fmt.Errorf("host %q is not in the repository allow-list", host)
	}
	if host == "www.github.com" {
		host = "github.com"
	}

	segments := strings.Split(strings.Trim(parsed.EscapedPath(), "/"), "/")
	if len(segments) != 2 {
		return RepoLocator{}, fmt.Errorf("repository URL must be of the form https://%s/<owner>/<repo>", host)
	}
	owner := segments[0]
	name := strings.TrimSuffix(segments[1], ".git")

	for _, segment := range []string{owner, name} {
		if !repoSegmentPattern.MatchString(segment) {
			return RepoLocator{}, fmt.Errorf("invalid repository path segment %q", segment)
		}
		if strings.Contains(segment, "..") {
			return RepoLocator{}, fmt.Errorf("repository path segment %q contains a traversal sequence", segment)
		}
	}

	return RepoLocator{Host: host, Owner: owner, Name: name}, nil
}

// RepoDisplayName derives the human-facing repository name from a raw URL.
// It mirrors the normalization in SanitizeRepoURL but never fails; invalid
// input yields an empty string.
func RepoDisplayName(raw string) string {
	locator, err := SanitizeRepoURL(raw)
	if err != nil {
		return ""
	}
	return locator.Name
}
