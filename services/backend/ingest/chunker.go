// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/codematrix-ai/codematrix/services/backend/index"
)

const (
	// DefaultChunkSize is the target fragment size in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is 10% of the chunk size, carried between
	// adjacent fragments produced by the character splitter.
	DefaultChunkOverlap = DefaultChunkSize / 10
)

var (
	defaultSeparators = []string{"\n\n", "\n", " ", ""}
	pythonSeparators  = []string{"\nclass ", "\ndef ", "\n\t", "\n", " "}
	cStyleSeparators  = []string{
		"\nfunction ", "\nclass ", "\ninterface ",
		"\npublic ", "\nprivate ", "\nprotected ",
		"\nfunc", "\ntype",
		"\n\n", "\n", " ", "",
	}
	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
)

// span is a chunk of a single file with its 1-based line range.
type span struct {
	text      string
	startLine int
	endLine   int
}

// Chunker splits source files into fragments suitable for embedding.
//
// Files in languages with a tree-sitter grammar are split along top-level
// declaration boundaries so a function or class stays in one fragment
// where it fits; everything else goes through a recursive character
// splitter with language-aware separators.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// ChunkerConfig configures a Chunker. Zero values take the defaults.
type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

func NewChunker(cfg ChunkerConfig) *Chunker {
	c := &Chunker{chunkSize: cfg.ChunkSize, chunkOverlap: cfg.ChunkOverlap}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.chunkOverlap <= 0 {
		c.chunkOverlap = DefaultChunkOverlap
	}
	return c
}

// ChunkAll splits every file into fragments. Files are processed in
// lexicographic path order so repeated runs over the same tree produce
// identical fragments in identical order.
func (c *Chunker) ChunkAll(ctx context.Context, files []SourceFile) ([]index.Fragment, error) {
	ordered := make([]SourceFile, len(files))
	copy(ordered, files)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].RelativePath < ordered[j].RelativePath })

	var fragments []index.Fragment
	for _, f := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fragments = append(fragments, c.chunkFile(ctx, f)...)
	}
	if len(fragments) == 0 {
		return nil, ErrNoSupportedFiles
	}
	return fragments, nil
}

func (c *Chunker) chunkFile(ctx context.Context, f SourceFile) []index.Fragment {
	content := string(f.Content)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	ext := path.Ext(f.RelativePath)
	var spans []span
	if lang := treeSitterLanguage(ext); lang != nil {
		var err error
		spans, err = c.structuralSpans(ctx, lang, ext, content)
		if err != nil {
			slog.Debug("Structural chunking failed, falling back to character splitting", "path", f.RelativePath, "error", err)
			spans = nil
		}
	}
	if spans == nil {
		spans = c.splitterSpans(content, ext, 0)
	}

	fragments := make([]index.Fragment, 0, len(spans))
	for _, s := range spans {
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		fragments = append(fragments, index.Fragment{
			ID:         fragmentID(f.RelativePath, s.startLine, s.text),
			SourcePath: f.RelativePath,
			Text:       s.text,
			StartLine:  s.startLine,
			EndLine:    s.endLine,
		})
	}
	return fragments
}

// splitterSpans runs the recursive character splitter and maps each chunk
// back to its line range. lineOffset shifts the range when the text being
// split is an excerpt of a larger file.
func (c *Chunker) splitterSpans(content, ext string, lineOffset int) []span {
	chunks, err := c.splitterFor(ext).SplitText(content)
	if err != nil {
		// The recursive splitter only errors on impossible configs; treat
		// the whole file as one span rather than dropping it.
		slog.Warn("Text splitter failed, keeping file as a single fragment", "error", err)
		chunks = []string{content}
	}

	searchFrom := 0
	spans := make([]span, 0, len(chunks))
	for _, chunk := range chunks {
		abs := locateChunk(content, chunk, searchFrom)
		startLine := lineOffset + 1 + strings.Count(content[:abs], "\n")
		spans = append(spans, span{
			text:      chunk,
			startLine: startLine,
			endLine:   startLine + strings.Count(chunk, "\n"),
		})
		searchFrom = abs + 1
	}
	return spans
}

func (c *Chunker) splitterFor(ext string) textsplitter.TextSplitter {
	separators := defaultSeparators
	switch ext {
	case ".md":
		separators = markdownSeparators
	case ".py":
		separators = pythonSeparators
	case ".js", ".jsx", ".ts", ".tsx", ".java", ".c", ".cpp", ".h", ".hpp", ".rs", ".go":
		separators = cStyleSeparators
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.chunkSize),
		textsplitter.WithChunkOverlap(c.chunkOverlap),
		textsplitter.WithSeparators(separators),
	)
}

// locateChunk finds the byte offset of chunk within content, preferring a
// match at or after from. Overlapping chunks make a plain sequential scan
// miss, hence the full-content retry.
func locateChunk(content, chunk string, from int) int {
	if from < len(content) {
		if off := strings.Index(content[from:], chunk); off >= 0 {
			return from + off
		}
	}
	if off := strings.Index(content, chunk); off >= 0 {
		return off
	}
	return from
}

// fragmentID derives a stable UUID from the fragment's identity. The same
// file content always produces the same IDs.
func fragmentID(sourcePath string, startLine int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", sourcePath, startLine, text)))
	id, _ := uuid.FromBytes(sum[:16])
	return id.String()
}
