// Package ingest implements the media-to-markdown ingestion core:
// detection, extractor routing, image normalisation, and output writing,
// plus the bounded-concurrency batch driver tying them together.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdforge/ingestor/mediatype"
)

// Source references ingestible content: a filesystem path, a URL, or an
// in-memory buffer. Sources are caller-owned; the pipeline never mutates
// or deletes them.
type Source struct {
	Path string // filesystem path, exclusive with URL/Data
	URL  string // remote URL, exclusive with Path/Data
	Data []byte // in-memory content, exclusive with Path/URL
	MIME string // optional declared MIME hint
	Name string // display name for buffer sources
}

// FromPath creates a file source.
func FromPath(path string) *Source { return &Source{Path: path} }

// FromURL creates a remote source.
func FromURL(url string) *Source { return &Source{URL: url} }

// FromBytes creates an in-memory source with a display name.
func FromBytes(name string, data []byte) *Source {
	return &Source{Name: name, Data: data}
}

// IsURL reports whether the source is remote.
func (s *Source) IsURL() bool { return s.URL != "" }

// Identifier returns the original source reference for traceability.
func (s *Source) Identifier() string {
	switch {
	case s.URL != "":
		return s.URL
	case s.Path != "":
		return s.Path
	case s.Name != "":
		return s.Name
	}
	return "(buffer)"
}

// Ext returns the lowercase file extension of the source name, without
// the leading dot. Empty for URL sources without a path extension.
func (s *Source) Ext() string {
	name := s.Path
	if name == "" {
		name = s.Name
	}
	if name == "" && s.URL != "" {
		name = s.URL
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Reader opens the source content for reading. URL sources have no
// resident bytes; retrieval is the remote extractor's concern.
func (s *Source) Reader() (io.ReadCloser, error) {
	switch {
	case s.Data != nil:
		return io.NopCloser(bytes.NewReader(s.Data)), nil
	case s.Path != "":
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.Path, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("source %s has no local content", s.Identifier())
}

// Prefix reads up to n leading bytes of the source content. Used by
// detection; errors degrade to a nil prefix rather than propagating.
func (s *Source) Prefix(n int) []byte {
	if s.Data != nil {
		if len(s.Data) > n {
			return s.Data[:n]
		}
		return s.Data
	}
	if s.Path == "" {
		return nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil
	}
	defer f.Close()
	buf := make([]byte, n)
	read, _ := io.ReadFull(f, buf)
	return buf[:read]
}

// Image is one embedded image extracted from a document, in the order it
// is referenced by the markdown.
type Image struct {
	Data   []byte `json:"-"`
	Format string `json:"format"` // original encoding: png, jpeg, gif, webp, bmp, tiff
	Name   string `json:"name"`   // suggested filename, no directory component
	Failed bool   `json:"failed"` // decode/conversion failed; slot preserved
}

// ExtractionResult is the normalised output of one extractor invocation.
// Immutable once constructed; consumed exactly once by the output writer.
// Images ordering is stable and matches reference order in Markdown.
type ExtractionResult struct {
	Markdown  string         `json:"markdown"`
	Images    []Image        `json:"images,omitempty"`
	MediaType mediatype.Type `json:"media_type"`
	SourceID  string         `json:"source_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// AddWarning attaches a non-fatal extraction warning.
func (r *ExtractionResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Title returns the metadata title, or empty.
func (r *ExtractionResult) Title() string {
	if r.Metadata == nil {
		return ""
	}
	if t, ok := r.Metadata["title"].(string); ok {
		return t
	}
	return ""
}
