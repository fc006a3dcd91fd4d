// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scanner flags common security issues in submitted code using an
// embedded, regex-based rule set.
package scanner

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codematrix-ai/codematrix/services/scanner/enforcement"
)

// Scanner holds the compiled rule set and scans content against it.
type Scanner struct {
	Rules []Rule
}

// NewScanner loads the rules embedded in the binary, compiles every regex,
// and sorts rules by priority. It returns an error if the embedded YAML is
// malformed or contains an invalid regex.
func NewScanner() (*Scanner, error) {
	var ruleFile RuleFile
	if err := yaml.Unmarshal(enforcement.SecurityRules, &ruleFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded rules file: %w", err)
	}

	if err := ruleFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex: %w", err)
	}

	ruleFile.SortByPriority()

	return &Scanner{Rules: ruleFile.Rules}, nil
}

// Scan audits content line by line against every rule and returns a report
// with all matches and an aggregated risk level.
//
// filePath is carried into findings for display only; it may be empty.
func (s *Scanner) Scan(filePath, content string) Report {
	var findings []Finding
	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		for _, rule := range s.Rules {
			for _, pattern := range rule.Patterns {
				match := pattern.compiled.FindString(line)
				if match == "" {
					continue
				}
				findings = append(findings, Finding{
					FilePath:       filePath,
					LineNumber:     lineNum + 1,
					MatchedContent: strings.TrimSpace(match),
					RuleName:       rule.Name,
					PatternID:      pattern.ID,
					Description:    pattern.Description,
					Severity:       rule.Severity,
					Recommendation: rule.Recommendation,
				})
			}
		}
	}

	return Report{
		RiskLevel: aggregateRisk(findings),
		Findings:  findings,
	}
}

// aggregateRisk is the highest severity among the findings. No findings
// means low risk; there is no separate "clean" level on the wire.
func aggregateRisk(findings []Finding) Severity {
	risk := SeverityLow
	for _, f := range findings {
		if f.Severity.rank() > risk.rank() {
			risk = f.Severity
		}
	}
	return risk
}
