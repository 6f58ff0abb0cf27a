// Package cmd contains the ragpilot CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ragpilot",
	Short: "RagPilot - terminal client for your RAG assistant",
	Long: `RagPilot is a terminal client for a retrieval-augmented chat backend.
It manages your conversations, attaches files to questions, and enriches
answers with document retrieval and optional web search.

Running ragpilot without arguments opens the interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand: interactive chat mode.
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Subcommands register themselves in their own files.
}
