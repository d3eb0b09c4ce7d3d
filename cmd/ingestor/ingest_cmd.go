package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdforge/ingestor/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path-or-url>",
	Short: "Ingest a single file or URL",
	Long: `Ingest a single source and write its markdown output folder.

Examples:
  ingestor ingest report.pdf
  ingestor ingest https://example.com/article -o ./out
  ingestor ingest https://github.com/owner/repo`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	pipe, _, closer, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closer()

	src := sourceFromArg(args[0])
	paths, err := pipe.Process(cmd.Context(), src)
	if err != nil {
		return fmt.Errorf("%s: %w", src.Identifier(), err)
	}
	if paths.Skipped {
		fmt.Printf("skipped (exists): %s\n", paths.Dir)
		return nil
	}
	fmt.Printf("written: %s\n", paths.Markdown)
	return nil
}

// sourceFromArg treats http(s) arguments as URLs, everything else as a
// local path.
func sourceFromArg(arg string) *ingest.Source {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return ingest.FromURL(arg)
	}
	return ingest.FromPath(arg)
}

// requireDir validates a folder argument before starting a batch.
func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("folder not found: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}
