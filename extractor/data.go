package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// CSV renders comma-separated files as markdown tables.
type CSV struct {
	MaxRows int
}

// NewCSV creates the CSV extractor.
func NewCSV() *CSV { return &CSV{MaxRows: 10_000} }

func (c *CSV) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (c *CSV) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	r, err := src.Reader()
	if err != nil {
		return nil, ingest.Unreadable(err)
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are common in the wild

	result := &ingest.ExtractionResult{
		MediaType: mediatype.CSV,
		SourceID:  src.Identifier(),
	}

	var md strings.Builder
	width := 0
	count := 0
	truncated := false

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingest.Malformed(fmt.Errorf("parse csv: %w", err))
		}
		if c.MaxRows > 0 && count >= c.MaxRows {
			truncated = true
			break
		}
		if width == 0 {
			width = len(record)
			if width == 0 {
				continue
			}
		}
		md.WriteString(markdownRow(record, width))
		count++
		if count == 1 {
			md.WriteString(markdownSeparator(width))
		}
	}

	if count == 0 {
		return nil, ingest.Malformed(fmt.Errorf("empty csv"))
	}
	if truncated {
		fmt.Fprintf(&md, "\n_(truncated at %d rows)_\n", c.MaxRows)
		result.AddWarning("truncated at %d rows", c.MaxRows)
	}

	result.Markdown = strings.TrimRight(md.String(), "\n")
	result.Metadata = map[string]any{"rows": count}
	return result, nil
}

// JSON pretty-prints JSON documents inside a fenced code block.
type JSON struct {
	maxBytes int64
}

// NewJSON creates the JSON extractor.
func NewJSON(maxBytes int64) *JSON {
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}
	return &JSON{maxBytes: maxBytes}
}

func (j *JSON) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (j *JSON) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	data, err := readAllSource(src, j.maxBytes)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, ingest.Malformed(fmt.Errorf("parse json: %w", err))
	}

	return &ingest.ExtractionResult{
		Markdown:  "```json\n" + buf.String() + "\n```",
		MediaType: mediatype.JSON,
		SourceID:  src.Identifier(),
	}, nil
}

// XML carries XML documents through inside a fenced code block.
type XML struct {
	maxBytes int64
}

// NewXML creates the XML extractor.
func NewXML(maxBytes int64) *XML {
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}
	return &XML{maxBytes: maxBytes}
}

func (x *XML) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (x *XML) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	data, err := readAllSource(src, x.maxBytes)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, ingest.Malformed(fmt.Errorf("empty xml"))
	}

	return &ingest.ExtractionResult{
		Markdown:  "```xml\n" + content + "\n```",
		MediaType: mediatype.XML,
		SourceID:  src.Identifier(),
	}, nil
}

// readAllSource reads local source content up to a byte cap.
func readAllSource(src *ingest.Source, maxBytes int64) ([]byte, error) {
	r, err := src.Reader()
	if err != nil {
		return nil, ingest.Unreadable(err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxBytes))
	if err != nil {
		return nil, ingest.Unreadable(fmt.Errorf("read %s: %w", src.Identifier(), err))
	}
	return data, nil
}
