package extractor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/microcosm-cc/bluemonday"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// Text extracts plain text, markdown, and local HTML files. Text and
// markdown pass through with whitespace normalisation; local HTML is
// converted to markdown.
type Text struct {
	maxBytes  int64
	conv      *converter.Converter
	sanitizer *bluemonday.Policy
}

// NewText creates the text extractor.
func NewText(maxBytes int64) *Text {
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}
	return &Text{
		maxBytes:  maxBytes,
		conv:      newMarkdownConverter(),
		sanitizer: newSanitizer(),
	}
}

func (t *Text) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (t *Text) Extract(ctx context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	r, err := src.Reader()
	if err != nil {
		return nil, ingest.Unreadable(err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, t.maxBytes))
	if err != nil {
		return nil, ingest.Unreadable(fmt.Errorf("read %s: %w", src.Identifier(), err))
	}

	content := string(data)
	var markdown string

	if isHTML(src, content) {
		clean := t.sanitizer.Sanitize(content)
		markdown, err = t.conv.ConvertString(clean)
		if err != nil {
			return nil, ingest.Malformed(fmt.Errorf("html to markdown: %w", err))
		}
		markdown = normalizeWhitespace(markdown)
	} else {
		markdown = normalizeWhitespace(content)
	}

	result := &ingest.ExtractionResult{
		Markdown:  markdown,
		MediaType: mediatype.Text,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{"title": firstLine(markdown)},
	}
	return result, nil
}

// isHTML decides whether text content should go through the HTML
// converter, from the extension or a leading tag.
func isHTML(src *ingest.Source, content string) bool {
	switch src.Ext() {
	case "html", "htm":
		return true
	}
	head := strings.ToLower(strings.TrimSpace(content))
	if len(head) > 256 {
		head = head[:256]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
