package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// Audio transcribes audio files by delegating to an external transcriber
// command, invoked as `<command> [--model <model>] <file>` and expected
// to print the transcript to stdout. The core never embeds a speech
// model.
type Audio struct {
	Command string
	Model   string
}

// NewAudio creates the audio extractor.
func NewAudio(command, model string) *Audio {
	return &Audio{Command: command, Model: model}
}

func (a *Audio) Supports(src *ingest.Source) bool {
	return !src.IsURL() && a.Command != ""
}

func (a *Audio) Extract(ctx context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	if a.Command == "" {
		return nil, ingest.Unreadable(fmt.Errorf("no transcriber configured (set audio.transcriber)"))
	}
	if src.Path == "" {
		return nil, ingest.Unreadable(fmt.Errorf("audio transcription needs a file path"))
	}

	args := []string{}
	if a.Model != "" {
		args = append(args, "--model", a.Model)
	}
	args = append(args, src.Path)

	cmd := exec.CommandContext(ctx, a.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, ingest.Unreadable(fmt.Errorf("transcriber %s: %w: %s", a.Command, err, strings.TrimSpace(stderr.String())))
	}

	transcript := normalizeWhitespace(stdout.String())
	if transcript == "" {
		return nil, ingest.Malformed(fmt.Errorf("transcriber produced no output"))
	}

	name := filepath.Base(src.Path)
	return &ingest.ExtractionResult{
		Markdown:  fmt.Sprintf("# %s\n\n%s", name, transcript),
		MediaType: mediatype.Audio,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{"title": name, "transcriber": a.Command},
	}, nil
}
