// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package visualize derives an import dependency graph from a set of
// source files, for rendering in the UI.
package visualize

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
)

// Node is one vertex of the dependency graph. Type is "file" for files
// present in the submitted set and "external" for imported modules that
// are not.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Edge is a directed import relation from one node to another.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the full dependency graph. Nodes and edges are sorted so the
// same input always produces the same JSON.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

var (
	pythonImportRe = regexp.MustCompile(`(?m)^\s*(?:from\s+([A-Za-z_][\w.]*)\s+import|import\s+([A-Za-z_][\w.]*))`)
	jsImportRe     = regexp.MustCompile(`(?m)(?:import\s+[^'"]*from\s+|require\s*\(\s*)['"]([^'"]+)['"]`)
	goImportRe     = regexp.MustCompile(`(?m)^\s*(?:import\s+)?"([^"]+)"`)
)

// BuildGraph extracts import statements from every file and links them to
// the other submitted files where possible; imports that resolve to
// nothing in the set become external nodes.
func BuildGraph(files []datatypes.VisualizeFile) Graph {
	// Module-name candidates for each submitted file, e.g. src/app.py is
	// importable as "src.app" or "app".
	moduleIndex := make(map[string]string)
	for _, f := range files {
		for _, candidate := range moduleCandidates(f.Path) {
			if _, taken := moduleIndex[candidate]; !taken {
				moduleIndex[candidate] = f.Path
			}
		}
	}

	nodeSet := make(map[string]Node)
	edgeSet := make(map[Edge]struct{})
	for _, f := range files {
		nodeSet[f.Path] = Node{ID: f.Path, Label: path.Base(f.Path), Type: "file"}
	}

	for _, f := range files {
		for _, imported := range extractImports(f.Path, f.Content) {
			target, internal := resolveImport(imported, f.Path, moduleIndex)
			if target == f.Path {
				continue
			}
			if !internal {
				nodeSet[target] = Node{ID: target, Label: target, Type: "external"}
			}
			edgeSet[Edge{From: f.Path, To: target}] = struct{}{}
		}
	}

	graph := Graph{
		Nodes: make([]Node, 0, len(nodeSet)),
		Edges: make([]Edge, 0, len(edgeSet)),
	}
	for _, n := range nodeSet {
		graph.Nodes = append(graph.Nodes, n)
	}
	for e := range edgeSet {
		graph.Edges = append(graph.Edges, e)
	}
	sort.Slice(graph.Nodes, func(i, j int) bool { return graph.Nodes[i].ID < graph.Nodes[j].ID })
	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].From != graph.Edges[j].From {
			return graph.Edges[i].From < graph.Edges[j].From
		}
		return graph.Edges[i].To < graph.Edges[j].To
	})
	return graph
}

// extractImports returns the raw imported module names found in content.
func extractImports(filePath, content string) []string {
	var imports []string
	switch path.Ext(filePath) {
	case ".py":
		for _, m := range pythonImportRe.FindAllStringSubmatch(content, -1) {
			if m[1] != "" {
				imports = append(imports, m[1])
			} else if m[2] != "" {
				imports = append(imports, m[2])
			}
		}
	case ".js", ".jsx", ".ts", ".tsx", ".mjs":
		for _, m := range jsImportRe.FindAllStringSubmatch(content, -1) {
			imports = append(imports, m[1])
		}
	case ".go":
		inBlock := false
		for _, line := range strings.Split(content, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(trimmed, "import ("):
				inBlock = true
			case inBlock && trimmed == ")":
				inBlock = false
			case inBlock || strings.HasPrefix(trimmed, "import "):
				if m := goImportRe.FindStringSubmatch(trimmed); m != nil {
					imports = append(imports, m[1])
				}
			}
		}
	}
	return imports
}

// resolveImport maps an import name to a submitted file when possible.
// Relative JS imports resolve against the importing file's directory.
func resolveImport(imported, fromPath string, moduleIndex map[string]string) (string, bool) {
	if strings.HasPrefix(imported, ".") {
		resolved := path.Clean(path.Join(path.Dir(fromPath), imported))
		for _, ext := range []string{"", ".js", ".jsx", ".ts", ".tsx", ".py"} {
			if target, ok := moduleIndex[resolved+ext]; ok {
				return target, true
			}
		}
		return imported, false
	}
	if target, ok := moduleIndex[imported]; ok {
		return target, true
	}
	// "pkg.submodule" still counts as an internal hit on "pkg".
	if i := strings.IndexByte(imported, '.'); i > 0 {
		if target, ok := moduleIndex[imported[:i]]; ok {
			return target, true
		}
	}
	return imported, false
}

// moduleCandidates lists the names under which a file can be imported by
// its siblings.
func moduleCandidates(filePath string) []string {
	trimmed := strings.TrimSuffix(filePath, path.Ext(filePath))
	return []string{
		filePath,
		trimmed,
		strings.ReplaceAll(trimmed, "/", "."),
		path.Base(trimmed),
	}
}
