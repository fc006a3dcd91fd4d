// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package compose turns retrieved fragments and conversation history into
// model prompts and produces grounded answers.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
	"github.com/codematrix-ai/codematrix/services/backend/index"
	"github.com/codematrix-ai/codematrix/services/llm"
)

const (
	// DefaultContextBudget is the character budget for the code context
	// block of a chat prompt.
	DefaultContextBudget = 8000

	// maxHistoryTurns bounds how many prior turns are replayed into the
	// prompt. History beyond this is dropped oldest-first.
	maxHistoryTurns = 6
)

// complexityInstructions selects the explanation register. Unknown levels
// fall back to adult.
var complexityInstructions = map[string]string{
	"5-year-old":  "Explain this code like I'm a 5-year-old child. Use simple words and analogies.",
	"10-year-old": "Explain this code like I'm a 10-year-old. Use simple terms but include basic programming concepts.",
	"teenager":    "Explain this code like I'm a teenager learning programming. Include technical details but keep it accessible.",
	"adult":       "Explain this code for an adult programmer. Include technical details and best practices.",
}

// Composer produces answers from a primary generator, falling back to a
// secondary one when the primary reports quota exhaustion. At most one
// fallback is attempted per request.
type Composer struct {
	primary       llm.Generator
	fallback      llm.Generator
	contextBudget int
}

// ComposerConfig configures a Composer. Fallback may be nil; a zero
// ContextBudget takes the default.
type ComposerConfig struct {
	Fallback      llm.Generator
	ContextBudget int
}

func NewComposer(primary llm.Generator, cfg ComposerConfig) *Composer {
	c := &Composer{
		primary:       primary,
		fallback:      cfg.Fallback,
		contextBudget: cfg.ContextBudget,
	}
	if c.contextBudget <= 0 {
		c.contextBudget = DefaultContextBudget
	}
	return c
}

// Answer generates a grounded answer to question. It returns the answer
// and exactly the fragments that made it into the prompt, so the caller
// can show provenance that matches what the model actually saw.
func (c *Composer) Answer(ctx context.Context, question string, history []datatypes.Message, results []index.Result) (string, []index.Result, error) {
	used := c.selectWithinBudget(results)
	prompt := c.buildChatPrompt(question, history, used)

	answer, err := c.generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	return answer, used, nil
}

// Explain explains a standalone code snippet at the requested complexity
// level. No repository index is required.
func (c *Composer) Explain(ctx context.Context, code, complexity string) (string, error) {
	instruction, ok := complexityInstructions[complexity]
	if !ok {
		instruction = complexityInstructions["adult"]
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nCode to explain:\n```\n")
	b.WriteString(code)
	b.WriteString("\n```\n\nPlease provide a clear, well-structured explanation.")

	return c.generate(ctx, b.String())
}

// selectWithinBudget keeps fragments in retrieval order until the context
// budget is exhausted. The first fragment is always kept, oversized or
// not, so the model never answers from an empty context when retrieval
// found something.
func (c *Composer) selectWithinBudget(results []index.Result) []index.Result {
	var used []index.Result
	remaining := c.contextBudget
	for _, r := range results {
		cost := len(r.Fragment.Text)
		if len(used) > 0 && cost > remaining {
			break
		}
		used = append(used, r)
		remaining -= cost
	}
	return used
}

func (c *Composer) buildChatPrompt(question string, history []datatypes.Message, used []index.Result) string {
	var b strings.Builder
	b.WriteString("Answer the user's question based only on the following context.\n")
	b.WriteString("If the answer is not in the context, say you don't know.\n")
	b.WriteString("Be concise and provide code snippets from the context if they are relevant.\n\n")

	b.WriteString("Context:\n")
	if len(used) == 0 {
		b.WriteString("(no relevant code was found in the repository)\n")
	}
	for _, r := range used {
		fmt.Fprintf(&b, "--- %s (lines %d-%d) ---\n", r.Fragment.SourcePath, r.Fragment.StartLine, r.Fragment.EndLine)
		b.WriteString(r.Fragment.Text)
		b.WriteString("\n\n")
	}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// generate calls the primary generator and falls back once on quota
// exhaustion. Any other failure is returned as-is.
func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	answer, err := c.primary.Generate(ctx, prompt, llm.GenerationParams{})
	if err == nil {
		return answer, nil
	}
	if c.fallback == nil || !errors.Is(err, llm.ErrQuota) {
		return "", err
	}

	slog.Warn("Primary generator exhausted its quota, falling back",
		"primary", c.primary.Name(), "fallback", c.fallback.Name())
	answer, fbErr := c.fallback.Generate(ctx, prompt, llm.GenerationParams{})
	if fbErr != nil {
		return "", fmt.Errorf("fallback %s also failed: %w (primary: %v)", c.fallback.Name(), fbErr, err)
	}
	return answer, nil
}
