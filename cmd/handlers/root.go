package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsdesk/internal/config"
	"newsdesk/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsdesk",
		Short: "Newsdesk aggregates news into deduplicated, ranked highlights.",
		Long: `Newsdesk scrapes configured news outlets per category, clusters
near-duplicate coverage with embeddings, ranks the clusters into highlights,
and serves the results over an HTTP API with a retrieval-backed chat layer.

Run "newsdesk serve" to start the API server, or "newsdesk extract" to run
the pipeline once from the command line.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.newsdesk.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewExtractCmd())
	rootCmd.AddCommand(NewHighlightsCmd())
	rootCmd.AddCommand(NewChatCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.App.LogLevel != "" {
		logger.SetLevel(cfg.App.LogLevel)
	}
	if cfg.App.Debug {
		logger.SetLevel("debug")
	}
}
