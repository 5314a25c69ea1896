// Package main provides the toolloop CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider   string
	model      string
	maxRounds  int
	hooksFile  string
	workingDir string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "toolloop",
		Short: "Run a tool-calling agent turn against an LLM",
		Long: `Run one agent turn: the model is called in rounds, requested tools are
validated and executed with lifecycle hooks around them, and the turn ends
when the model answers without tool calls, a hook aborts, repetition is
detected or the round budget runs out.

Configuration comes from TOOLLOOP_* environment variables (a .env file in the
current directory is loaded first) and the flags below.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (anthropic, openai, gemini)")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "Model id or alias")
	rootCmd.PersistentFlags().IntVar(&maxRounds, "max-rounds", 0, "Round budget for the turn")
	rootCmd.PersistentFlags().StringVar(&hooksFile, "hooks", "", "Path to a JSON hooks file")
	rootCmd.PersistentFlags().StringVarP(&workingDir, "dir", "C", "", "Working directory for tools (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
