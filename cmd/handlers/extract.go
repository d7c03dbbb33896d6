package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsdesk/internal/core"
	"newsdesk/internal/logger"
)

// NewExtractCmd creates the extract command that runs the pipeline once
func NewExtractCmd() *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Run the extraction pipeline and wait for it to finish",
		Long: `Run the full extraction pipeline from the command line.

Each requested category is scraped, clustered, ranked, and indexed, and the
resulting highlights replace the previous run's. With no --category flags
every configured category is processed.

Examples:
  # Process every configured category
  newsdesk extract

  # Process only sports and finance, bypassing the reuse window
  newsdesk extract --category sports --category finance --force`,
		Run: func(cmd *cobra.Command, args []string) {
			categories, _ := cmd.Flags().GetStringSlice("category")
			force, _ := cmd.Flags().GetBool("force")
			if err := runExtract(cmd, categories, force); err != nil {
				logger.Error("Extraction failed", err)
				os.Exit(1)
			}
		},
	}

	extractCmd.Flags().StringSliceP("category", "c", nil, "category to process (repeatable, default all)")
	extractCmd.Flags().Bool("force", false, "re-scrape even when recent articles exist")

	return extractCmd
}

func runExtract(cmd *cobra.Command, categories []string, force bool) error {
	ctx := cmd.Context()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	accepted, err := svc.runner.Submit(ctx, categories, force)
	if err != nil {
		return err
	}

	fmt.Printf("Processing %d categories...\n", len(accepted))
	svc.runner.Wait()

	for _, status := range svc.runner.Status() {
		switch status.State {
		case core.RunStateCompleted:
			mark := ""
			if status.Degraded {
				mark = " (degraded)"
			}
			fmt.Printf("  %s: %d articles, %d highlights%s\n",
				status.Category, status.ArticleCount, status.HighlightCount, mark)
		case core.RunStateFailed:
			fmt.Printf("  %s: failed: %s\n", status.Category, status.Error)
		}
	}
	return nil
}
