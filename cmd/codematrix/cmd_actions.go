// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codematrix-ai/codematrix/services/backend/datatypes"
)

func runClone(cmd *cobra.Command, args []string) {
	var resp datatypes.CloneResponse
	if err := postJSON("/v1/clone", datatypes.CloneRequest{RepoURL: args[0]}, &resp); err != nil {
		log.Fatalf("Clone failed: %v", err)
	}
	fmt.Println(resp.Message)
	fmt.Println("Session:", resp.SessionID)
	fmt.Println("Run 'codematrix status --watch' to follow the ingestion.")
}

func runStatus(cmd *cobra.Command, args []string) {
	for {
		var resp datatypes.StatusResponse
		if err := getJSON("/v1/status", &resp); err != nil {
			log.Fatalf("Status failed: %v", err)
		}

		fmt.Printf("[%3d%%] %-8s %s\n", resp.Progress, resp.Status, resp.Message)
		if resp.Error != "" {
			fmt.Println("Error:", resp.Error)
		}

		terminal := resp.Status == datatypes.StatusReady || resp.Status == datatypes.StatusError ||
			resp.Status == datatypes.StatusIdle
		if !watch || terminal {
			if resp.Status == datatypes.StatusError {
				os.Exit(1)
			}
			return
		}
		time.Sleep(2 * time.Second)
	}
}

func runChat(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")

	var resp datatypes.ChatResponse
	err := postJSON("/v1/chat", datatypes.ChatRequest{Question: question, TopK: topK}, &resp)
	if err != nil {
		log.Fatalf("Chat failed: %v", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.RetrievedCode) > 0 {
		fmt.Println("\nSources:")
		for _, fragment := range resp.RetrievedCode {
			fmt.Printf("  %s:%d-%d (score %.3f)\n",
				fragment.SourcePath, fragment.StartLine, fragment.EndLine, fragment.Score)
		}
	}
}

func runExplain(cmd *cobra.Command, args []string) {
	code, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Could not read %s: %v", args[0], err)
	}

	var resp datatypes.ExplanationResponse
	err = postJSON("/v1/explain", datatypes.ExplainRequest{
		Code:       string(code),
		Complexity: complexity,
	}, &resp)
	if err != nil {
		log.Fatalf("Explain failed: %v", err)
	}
	fmt.Println(resp.Explanation)
}
