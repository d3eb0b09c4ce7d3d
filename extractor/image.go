package extractor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// ImageFile handles standalone image inputs: the markdown is a stub
// embedding the image, and the image itself rides through the converter
// and writer like any document-embedded one. Captioning via a vision
// model is an external capability this extractor does not own.
type ImageFile struct {
	maxBytes int64
}

// NewImageFile creates the image extractor.
func NewImageFile(maxBytes int64) *ImageFile {
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}
	return &ImageFile{maxBytes: maxBytes}
}

func (i *ImageFile) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (i *ImageFile) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	data, err := readAllSource(src, i.maxBytes)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ingest.Malformed(fmt.Errorf("empty image file"))
	}

	name := filepath.Base(src.Identifier())
	format := formatFromName(name)

	return &ingest.ExtractionResult{
		Markdown:  fmt.Sprintf("# %s\n\n![%s](img/%s)", name, name, name),
		Images:    []ingest.Image{{Data: data, Format: format, Name: name}},
		MediaType: mediatype.Image,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{"title": name},
	}, nil
}
