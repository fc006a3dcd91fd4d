// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL  string
	topK       int
	complexity string
	watch      bool

	rootCmd = &cobra.Command{
		Use:   "codematrix",
		Short: "A cli to talk to a CodeMatrix backend",
		Long: `codematrix is a client for the CodeMatrix backend: point it at a
public GitHub repository, wait for indexing, and ask questions about
the code from your terminal.`,
	}

	cloneCmd = &cobra.Command{
		Use:   "clone [repo-url]",
		Short: "Start ingesting a public GitHub repository",
		Args:  cobra.ExactArgs(1),
		Run:   runClone, // Defined in cmd_actions.go
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the ingestion status of the current repository",
		Run:   runStatus, // Defined in cmd_actions.go
	}

	chatCmd = &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask a question about the indexed repository",
		Args:  cobra.MinimumNArgs(1),
		Run:   runChat, // Defined in cmd_actions.go
	}

	explainCmd = &cobra.Command{
		Use:   "explain [file]",
		Short: "Explain a local code file at a chosen complexity level",
		Args:  cobra.ExactArgs(1),
		Run:   runExplain, // Defined in cmd_actions.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000",
		"Base URL of the CodeMatrix backend")

	statusCmd.Flags().BoolVar(&watch, "watch", false, "Poll until ingestion reaches a terminal state")
	chatCmd.Flags().IntVar(&topK, "top-k", 0, "How many code fragments to retrieve (default server-side)")
	explainCmd.Flags().StringVar(&complexity, "complexity", "adult",
		"Explanation level: 5-year-old, 10-year-old, teenager, adult")

	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(explainCmd)
}
