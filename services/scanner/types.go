// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scanner

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities for risk aggregation.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	incoming := Severity(raw)
	switch incoming {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		*s = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for severity: %q", incoming)
	}
}

// RuleFile is the top-level shape of the embedded rules YAML.
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Rule groups related patterns under one vulnerability category.
type Rule struct {
	Name           string    `yaml:"name"`
	Description    string    `yaml:"description"`
	Severity       Severity  `yaml:"severity"`
	Recommendation string    `yaml:"recommendation"`
	Priority       int       `yaml:"priority"`
	Patterns       []Pattern `yaml:"patterns"`
}

// Pattern is one regex with its own identity, so a finding can point at
// the exact check that fired.
type Pattern struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Regex       string `yaml:"regex"`

	compiled *regexp.Regexp `yaml:"-"`
}

// CompileRegexes compiles every pattern up front so a malformed rule fails
// at startup, not during a scan.
func (f *RuleFile) CompileRegexes() error {
	for i := range f.Rules {
		for j := range f.Rules[i].Patterns {
			pattern := &f.Rules[i].Patterns[j]
			re, err := regexp.Compile(pattern.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile the regex %s: %w", pattern.Regex, err)
			}
			pattern.compiled = re
		}
	}
	return nil
}

// SortByPriority orders rules from highest to lowest priority.
func (f *RuleFile) SortByPriority() {
	sort.Slice(f.Rules, func(i, j int) bool {
		return f.Rules[i].Priority > f.Rules[j].Priority
	})
}

// Finding is one rule match with its location and remediation advice.
type Finding struct {
	FilePath       string   `json:"file_path,omitempty"`
	LineNumber     int      `json:"line_number"`
	MatchedContent string   `json:"matched_content"`
	RuleName       string   `json:"rule_name"`
	PatternID      string   `json:"pattern_id"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
}

// Report is the result of scanning one piece of content.
type Report struct {
	RiskLevel Severity  `json:"risk_level"`
	Findings  []Finding `json:"findings"`
}
