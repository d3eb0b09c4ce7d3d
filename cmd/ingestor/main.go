// Entry point for the ingestor CLI — converts documents, web pages, and
// repositories into normalized markdown output folders.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mdforge/ingestor/detect"
	"github.com/mdforge/ingestor/extractor"
	"github.com/mdforge/ingestor/imgconv"
	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/ledger"
	"github.com/mdforge/ingestor/output"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	configPath   string
	outputDir    string
	concurrency  int
	verbose      bool
	withMetadata bool
	skipExisting bool
	imgFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "ingestor",
	Short: "Convert documents, web pages, and repositories to markdown",
	Long: `Ingestor detects the media type of each source (file, URL, or folder),
extracts its content with the matching extractor, normalizes embedded
images, and writes one markdown output folder per source.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	godotenv.Load()
	setupLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory (overrides config)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "parallel workers for batch runs (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&withMetadata, "metadata", false, "write a metadata.json sidecar per source")
	rootCmd.PersistentFlags().BoolVar(&skipExisting, "skip-existing", false, "skip sources whose output already exists")
	rootCmd.PersistentFlags().StringVar(&imgFormat, "img-to", "", "target image format: png, jpeg, or keep (overrides config)")
}

func setupLogging() {
	lvl := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadConfig merges flag overrides over the config file (or defaults).
func loadConfig() (*ingest.Config, error) {
	var cfg *ingest.Config
	var err error
	if configPath != "" {
		cfg, err = ingest.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = ingest.DefaultConfig()
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	if withMetadata {
		cfg.GenerateMetadata = true
	}
	if skipExisting {
		cfg.SkipExisting = true
	}
	if imgFormat != "" {
		cfg.Image.TargetFormat = imgFormat
	}
	if verbose {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		slog.SetDefault(cfg.Logger)
	} else {
		cfg.Logger = slog.Default()
	}
	return cfg, cfg.Validate()
}

// buildPipeline assembles the full pipeline from configuration. The
// returned closer releases the browser renderer and the ledger.
func buildPipeline() (*ingest.Pipeline, *ingest.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	registry, closeExtractors, err := extractor.NewSet(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	pipe := ingest.NewPipeline(cfg, detect.New(), registry,
		imgconv.New(cfg.Image.TargetFormat, cfg.Logger),
		output.New(cfg.SkipExisting, cfg.GenerateMetadata))

	closer := closeExtractors
	if cfg.LedgerPath != "" {
		led, err := ledger.Open(cfg.LedgerPath, cfg.Logger)
		if err != nil {
			closeExtractors()
			return nil, nil, nil, err
		}
		pipe.SetRecorder(led)
		closer = func() {
			closeExtractors()
			led.Close()
		}
	}

	return pipe, cfg, closer, nil
}
