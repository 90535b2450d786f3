package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatview",
	Short: "Telegram front end for a chat orchestrator",
	Long:  "ChatView normalizes Telegram messages into canonical chat messages and manages the per-user interaction flow for an external orchestrator.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
