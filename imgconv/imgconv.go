// Package imgconv normalises heterogeneous embedded image encodings to a
// single canonical output format.
package imgconv

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/mdforge/ingestor/ingest"
)

// Converter re-encodes images to the configured target format.
type Converter struct {
	target string // png, jpeg, or keep
	logger *slog.Logger
}

// New creates a Converter. Target "keep" passes original encodings
// through untouched.
func New(target string, logger *slog.Logger) *Converter {
	if target == "" {
		target = "png"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{target: target, logger: logger}
}

// Normalize converts each image to the target encoding, in place.
// Cardinality-preserving: N images in, N images out, same order. A
// corrupt entry degrades to a failed-conversion marker in its slot; one
// bad image never discards a document's extraction.
//
// Names are never touched: extractors embed img/<name> references in the
// markdown, and the writer derives the on-disk filename (and rewrites
// those references) from the post-conversion Format tag.
func (c *Converter) Normalize(ctx context.Context, images []ingest.Image) []ingest.Image {
	if c.target == "keep" {
		return images
	}
	for i := range images {
		select {
		case <-ctx.Done():
			return images
		default:
		}
		images[i] = c.convert(images[i])
	}
	return images
}

func (c *Converter) convert(img ingest.Image) ingest.Image {
	if img.Failed || len(img.Data) == 0 {
		img.Failed = true
		return img
	}
	if img.Format == c.target {
		return img
	}

	decoded, err := decode(img.Data, img.Format)
	if err != nil {
		c.logger.Warn("image conversion failed", "name", img.Name, "format", img.Format, "error", err)
		img.Failed = true
		return img
	}

	var buf bytes.Buffer
	switch c.target {
	case "jpeg":
		err = jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(&buf, decoded)
	}
	if err != nil {
		c.logger.Warn("image encode failed", "name", img.Name, "target", c.target, "error", err)
		img.Failed = true
		return img
	}

	img.Data = buf.Bytes()
	img.Format = c.target
	return img
}

// decode picks a decoder from the format tag, falling back to content
// sniffing via image.Decode for untagged or mislabelled data.
func decode(data []byte, format string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch strings.ToLower(format) {
	case "png":
		return png.Decode(r)
	case "jpeg", "jpg":
		return jpeg.Decode(r)
	case "gif":
		return gif.Decode(r)
	case "webp":
		return webp.Decode(r)
	case "bmp":
		return bmp.Decode(r)
	case "tiff", "tif":
		return tiff.Decode(r)
	}
	decoded, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", format, err)
	}
	return decoded, nil
}
