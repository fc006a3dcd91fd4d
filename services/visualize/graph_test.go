// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package visualize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
)

func TestBuildGraphPythonInternalAndExternal(t *testing.T) {
	files := []datatypes.VisualizeFile{
		{Path: "app.py", Content: "import util\nimport requests\n\ndef main(): pass\n"},
		{Path: "util.py", Content: "import os\n\ndef helper(): pass\n"},
	}

	g := BuildGraph(files)

	ids := map[string]string{}
	for _, n := range g.Nodes {
		ids[n.ID] = n.Type
	}
	assert.Equal(t, "file", ids["app.py"])
	assert.Equal(t, "file", ids["util.py"])
	assert.Equal(t, "external", ids["requests"])
	assert.Equal(t, "external", ids["os"])

	assert.Contains(t, g.Edges, Edge{From: "app.py", To: "util.py"})
	assert.Contains(t, g.Edges, Edge{From: "app.py", To: "requests"})
}

func TestBuildGraphPythonFromImport(t *testing.T) {
	files := []datatypes.VisualizeFile{
		{Path: "src/handlers.py", Content: "from src.models import User\n"},
		{Path: "src/models.py", Content: "class User: pass\n"},
	}

	g := BuildGraph(files)
	assert.Contains(t, g.Edges, Edge{From: "src/handlers.py", To: "src/models.py"})
}

func TestBuildGraphJavaScriptRelativeImports(t *testing.T) {
	files := []datatypes.VisualizeFile{
		{Path: "src/index.js", Content: "import { render } from './render';\nconst axios = require('axios');\n"},
		{Path: "src/render.js", Content: "export function render() {}\n"},
	}

	g := BuildGraph(files)
	assert.Contains(t, g.Edges, Edge{From: "src/index.js", To: "src/render.js"})
	assert.Contains(t, g.Edges, Edge{From: "src/index.js", To: "axios"})
}

func TestBuildGraphGoImportBlock(t *testing.T) {
	files := []datatypes.VisualizeFile{
		{Path: "main.go", Content: "package main\n\nimport (\n\t\"fmt\"\n\t\"net/http\"\n)\n"},
	}

	g := BuildGraph(files)
	assert.Contains(t, g.Edges, Edge{From: "main.go", To: "fmt"})
	assert.Contains(t, g.Edges, Edge{From: "main.go", To: "net/http"})
}

func TestBuildGraphIsDeterministic(t *testing.T) {
	files := []datatypes.VisualizeFile{
		{Path: "a.py", Content: "import b\nimport c\n"},
		{Path: "b.py", Content: "import c\n"},
		{Path: "c.py", Content: ""},
	}

	first := BuildGraph(files)
	second := BuildGraph([]datatypes.VisualizeFile{files[2], files[0], files[1]})
	assert.Equal(t, first, second)
}

func TestBuildGraphNoSelfEdges(t *testing.T) {
	files := []datatypes.VisualizeFile{
		{Path: "weird.py", Content: "import weird\n"},
	}

	g := BuildGraph(files)
	require.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
}

func TestBuildGraphEmptyInput(t *testing.T) {
	g := BuildGraph(nil)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}
