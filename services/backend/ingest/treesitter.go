// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// treeSitterLanguage returns the grammar for ext, or nil when the file
// should go straight to the character splitter.
func treeSitterLanguage(ext string) *sitter.Language {
	switch ext {
	case ".go":
		return golang.GetLanguage()
	case ".py":
		return python.GetLanguage()
	case ".js", ".jsx":
		return javascript.GetLanguage()
	default:
		return nil
	}
}

// structuralSpans splits content along top-level declaration boundaries.
// Adjacent declarations are packed into one span while they fit the chunk
// size; a declaration larger than the chunk size is re-split internally
// with the character splitter, preserving its line offsets.
func (c *Chunker) structuralSpans(ctx context.Context, lang *sitter.Language, ext, content string) ([]span, error) {
	// New parser per call; sitter.Parser is not safe for concurrent use.
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, fmt.Errorf("source has syntax errors")
	}

	var spans []span
	var group []*sitter.Node
	var groupBytes int

	flush := func() {
		if len(group) == 0 {
			return
		}
		first, last := group[0], group[len(group)-1]
		spans = append(spans, span{
			text:      content[first.StartByte():last.EndByte()],
			startLine: int(first.StartPoint().Row) + 1,
			endLine:   int(last.EndPoint().Row) + 1,
		})
		group = nil
		groupBytes = 0
	}

	count := int(root.NamedChildCount())
	for i := 0; i < count; i++ {
		node := root.NamedChild(i)
		size := int(node.EndByte() - node.StartByte())

		if size > c.chunkSize {
			flush()
			text := content[node.StartByte():node.EndByte()]
			spans = append(spans, c.splitterSpans(text, ext, int(node.StartPoint().Row))...)
			continue
		}
		if groupBytes+size > c.chunkSize {
			flush()
		}
		group = append(group, node)
		groupBytes += size
	}
	flush()

	if len(spans) == 0 {
		return nil, fmt.Errorf("no top-level declarations found")
	}
	return spans, nil
}
