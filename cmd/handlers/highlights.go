package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"newsdesk/internal/logger"
)

// NewHighlightsCmd creates the highlights command for listing ranked highlights
func NewHighlightsCmd() *cobra.Command {
	highlightsCmd := &cobra.Command{
		Use:   "highlights",
		Short: "List the current ranked highlights",
		Long: `List the highlights produced by the most recent extraction runs.

Highlights are printed most important first. Use --category to restrict the
listing and --format json for machine-readable output.`,
		Run: func(cmd *cobra.Command, args []string) {
			category, _ := cmd.Flags().GetString("category")
			limit, _ := cmd.Flags().GetInt("limit")
			format, _ := cmd.Flags().GetString("format")
			if err := runHighlights(cmd, category, limit, format); err != nil {
				logger.Error("Failed to list highlights", err)
				os.Exit(1)
			}
		},
	}

	highlightsCmd.Flags().StringP("category", "c", "", "restrict to one category")
	highlightsCmd.Flags().IntP("limit", "n", 20, "maximum number of highlights")
	highlightsCmd.Flags().StringP("format", "f", "terminal", "output format: terminal, json")

	return highlightsCmd
}

func runHighlights(cmd *cobra.Command, category string, limit int, format string) error {
	if format != "terminal" && format != "json" {
		return fmt.Errorf("invalid format %q, valid formats: terminal, json", format)
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	ctx := cmd.Context()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	highlights, err := svc.store.ListHighlights(ctx, category, limit)
	if err != nil {
		return err
	}

	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(highlights)
	}

	if len(highlights) == 0 {
		fmt.Println("No highlights yet. Run \"newsdesk extract\" first.")
		return nil
	}

	for i, h := range highlights {
		fmt.Printf("%d. [%s] %s\n", i+1, h.Category, h.Title)
		if h.Summary != "" {
			fmt.Printf("   %s\n", h.Summary)
		}
		fmt.Printf("   %d sources (%s)\n", h.Frequency, strings.Join(h.Sources, ", "))
	}
	return nil
}
