package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdforge/ingestor/ingest"
)

var batchRecursive bool

var batchCmd = &cobra.Command{
	Use:   "batch <folder>",
	Short: "Ingest every supported file in a folder",
	Long: `Discover supported files in a folder and ingest them concurrently.
Each source is independent: a failing file never blocks its siblings.
'.url' pointer files are followed as remote sources.

Examples:
  ingestor batch ./documents
  ingestor batch ./documents -r --concurrency 10`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVarP(&batchRecursive, "recursive", "r", false, "descend into subdirectories")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	folder := args[0]
	if err := requireDir(folder); err != nil {
		return err
	}

	sources, err := ingest.DiscoverSources(folder, batchRecursive)
	if err != nil {
		return fmt.Errorf("discover %s: %w", folder, err)
	}
	if len(sources) == 0 {
		fmt.Println("no supported files found")
		return nil
	}

	pipe, _, closer, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closer()

	report := pipe.RunBatch(cmd.Context(), sources)
	for _, item := range report.Items {
		switch {
		case item.Err != nil:
			fmt.Printf("FAIL  %s: %s\n", item.Source, item.Error)
		case item.Paths != nil && item.Paths.Skipped:
			fmt.Printf("skip  %s\n", item.Source)
		default:
			fmt.Printf("ok    %s\n", item.Source)
		}
	}
	fmt.Printf("\n%d succeeded (%d skipped), %d failed\n", report.Succeeded, report.Skipped, report.Failed)

	if report.Cancelled {
		return fmt.Errorf("batch cancelled")
	}
	if report.AnyFailed() {
		return fmt.Errorf("%d of %d sources failed", report.Failed, len(sources))
	}
	return nil
}
