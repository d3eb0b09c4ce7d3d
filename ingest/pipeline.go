package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mdforge/ingestor/mediatype"
)

// Detector classifies a source into a media type. Detection is pure:
// unreadable content resolves to Unknown rather than an error.
type Detector interface {
	Detect(ctx context.Context, src *Source) mediatype.Type
}

// Normalizer converts extracted images to the canonical output encoding.
// Cardinality and order preserving; corrupt entries degrade in place.
type Normalizer interface {
	Normalize(ctx context.Context, images []Image) []Image
}

// Writer persists an extraction result under a destination root.
type Writer interface {
	Write(ctx context.Context, result *ExtractionResult, root string) (*WrittenPaths, error)
}

// WrittenPaths reports what the writer produced for one source.
type WrittenPaths struct {
	Dir      string   `json:"dir"`
	Markdown string   `json:"markdown"`
	Images   []string `json:"images,omitempty"`
	Metadata string   `json:"metadata,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
}

// Recorder receives one event per processed source. Implementations must
// be best-effort: a failing recorder never fails the run.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Event describes the outcome of one source's pipeline run.
type Event struct {
	SourceID   string
	MediaType  mediatype.Type
	Outcome    string // ok, skipped, error
	OutputPath string
	Warnings   int
	Error      string
	Duration   time.Duration
}

// Pipeline runs detect → route → extract → normalize → write for one
// source. Instances are safe for concurrent use: all fields are read-only
// after construction.
type Pipeline struct {
	cfg      *Config
	detector Detector
	registry *Registry
	conv     Normalizer
	writer   Writer
	recorder Recorder
	logger   *slog.Logger
}

// NewPipeline assembles a pipeline from its stages.
func NewPipeline(cfg *Config, det Detector, reg *Registry, conv Normalizer, w Writer) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.defaults()
	return &Pipeline{
		cfg:      cfg,
		detector: det,
		registry: reg,
		conv:     conv,
		writer:   w,
		logger:   cfg.Logger,
	}
}

// SetRecorder attaches an optional per-source event recorder. Must be
// called before processing starts.
func (p *Pipeline) SetRecorder(r Recorder) { p.recorder = r }

// Registry exposes the extractor registry (read-only use).
func (p *Pipeline) Registry() *Registry { return p.registry }

// Detect classifies a source without running extraction.
func (p *Pipeline) Detect(ctx context.Context, src *Source) mediatype.Type {
	return p.detector.Detect(ctx, src)
}

// Extract runs detection, routing, extraction, and image normalisation,
// returning the in-memory result without writing it.
func (p *Pipeline) Extract(ctx context.Context, src *Source) (*ExtractionResult, error) {
	_, result, err := p.extract(ctx, src)
	return result, err
}

// extract is Extract plus the detected media type, which error events
// keep even when extraction itself fails.
func (p *Pipeline) extract(ctx context.Context, src *Source) (mediatype.Type, *ExtractionResult, error) {
	mt := p.detector.Detect(ctx, src)
	if mt == mediatype.Unknown {
		return mt, nil, &UnsupportedFormatError{MediaType: mt}
	}

	ex, err := p.registry.Route(mt)
	if err != nil {
		return mt, nil, err
	}
	if !ex.Supports(src) {
		return mt, nil, &UnsupportedFormatError{MediaType: mt}
	}

	p.logger.Debug("extracting", "source", src.Identifier(), "media_type", mt)

	result, err := ex.Extract(ctx, src)
	if err != nil {
		return mt, nil, fmt.Errorf("extract %s (%s): %w", src.Identifier(), mt, err)
	}

	if p.conv != nil && len(result.Images) > 0 {
		before := len(result.Images)
		result.Images = p.conv.Normalize(ctx, result.Images)
		if len(result.Images) != before {
			// Cardinality is a converter contract; a violation here is a bug.
			return mt, nil, fmt.Errorf("image converter changed cardinality: %d -> %d", before, len(result.Images))
		}
		for _, img := range result.Images {
			if img.Failed {
				result.AddWarning("image %s failed conversion", img.Name)
			}
		}
	}

	return mt, result, nil
}

// Process runs the full pipeline for one source and writes the output
// under the configured output directory.
func (p *Pipeline) Process(ctx context.Context, src *Source) (*WrittenPaths, error) {
	start := time.Now()

	mt, result, err := p.extract(ctx, src)
	if err != nil {
		p.record(ctx, src, mt, "", 0, err, start)
		return nil, err
	}

	paths, err := p.writer.Write(ctx, result, p.cfg.OutputDir)
	if err != nil {
		p.record(ctx, src, result.MediaType, "", len(result.Warnings), err, start)
		return nil, fmt.Errorf("write %s: %w", src.Identifier(), err)
	}

	for _, w := range result.Warnings {
		p.logger.Warn("partial extraction", "source", src.Identifier(), "warning", w)
	}
	outcome := "ok"
	if paths.Skipped {
		outcome = "skipped"
	}
	p.recordOutcome(ctx, src, result.MediaType, outcome, paths.Markdown, len(result.Warnings), start)

	p.logger.Info("ingested",
		"source", src.Identifier(),
		"media_type", result.MediaType,
		"images", len(result.Images),
		"warnings", len(result.Warnings),
		"output", paths.Markdown,
		"skipped", paths.Skipped)

	return paths, nil
}

func (p *Pipeline) record(ctx context.Context, src *Source, mt mediatype.Type, out string, warnings int, err error, start time.Time) {
	if err == nil {
		p.recordOutcome(ctx, src, mt, "ok", out, warnings, start)
		return
	}
	if p.recorder == nil {
		return
	}
	p.recorder.Record(ctx, Event{
		SourceID:  src.Identifier(),
		MediaType: mt,
		Outcome:   "error",
		Warnings:  warnings,
		Error:     err.Error(),
		Duration:  time.Since(start),
	})
}

func (p *Pipeline) recordOutcome(ctx context.Context, src *Source, mt mediatype.Type, outcome, out string, warnings int, start time.Time) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(ctx, Event{
		SourceID:   src.Identifier(),
		MediaType:  mt,
		Outcome:    outcome,
		OutputPath: out,
		Warnings:   warnings,
		Duration:   time.Since(start),
	})
}
