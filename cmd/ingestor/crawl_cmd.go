package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdforge/ingestor/imgconv"
	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
	"github.com/mdforge/ingestor/output"
)

// deepCrawler is implemented by the web extractor.
type deepCrawler interface {
	CrawlDeep(ctx context.Context, startURL string) ([]*ingest.ExtractionResult, error)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a website and ingest every page",
	Long: `Breadth-first crawl of a website starting from the given URL,
staying on the same domain, bounded by web.max_depth and web.max_pages.
Each page becomes its own output folder.

Examples:
  ingestor crawl https://docs.example.com
  ingestor crawl https://example.com -c config.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	startURL := args[0]
	if !strings.HasPrefix(startURL, "http://") && !strings.HasPrefix(startURL, "https://") {
		return fmt.Errorf("crawl requires an http(s) URL, got %q", startURL)
	}

	pipe, cfg, closer, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closer()

	ex, err := pipe.Registry().Route(mediatype.Web)
	if err != nil {
		return err
	}
	crawler, ok := ex.(deepCrawler)
	if !ok {
		return fmt.Errorf("web extractor does not support crawling")
	}

	results, err := crawler.CrawlDeep(cmd.Context(), startURL)
	if len(results) == 0 && err != nil {
		return err
	}

	conv := imgconv.New(cfg.Image.TargetFormat, cfg.Logger)
	writer := output.New(cfg.SkipExisting, cfg.GenerateMetadata)

	var failed int
	for _, result := range results {
		result.Images = conv.Normalize(cmd.Context(), result.Images)
		paths, werr := writer.Write(cmd.Context(), result, cfg.OutputDir)
		if werr != nil {
			failed++
			fmt.Printf("FAIL  %s: %s\n", result.SourceID, werr)
			continue
		}
		if paths.Skipped {
			fmt.Printf("skip  %s\n", result.SourceID)
		} else {
			fmt.Printf("ok    %s\n", result.SourceID)
		}
	}

	fmt.Printf("\ncrawled %d pages, %d failed\n", len(results), failed)
	if err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d pages failed to write", failed)
	}
	return nil
}
