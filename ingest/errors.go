package ingest

import (
	"errors"
	"fmt"

	"github.com/mdforge/ingestor/mediatype"
)

// ErrSourceUnreadable marks I/O or network failures reading a source.
// Recoverable by caller retry.
var ErrSourceUnreadable = errors.New("ingest: source unreadable")

// ErrUnsupportedContent marks bytes that matched a media type but whose
// internal structure could not be parsed. Not retryable without
// different input.
var ErrUnsupportedContent = errors.New("ingest: unsupported content")

// ErrDuplicateExtractor is returned when a media type is registered twice.
var ErrDuplicateExtractor = errors.New("ingest: extractor already registered for media type")

// UnsupportedFormatError is returned when no extractor is registered for
// a detected media type. Fatal for that source, not retryable.
type UnsupportedFormatError struct {
	MediaType mediatype.Type
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("ingest: no extractor for media type %q", e.MediaType)
}

// Unreadable wraps err as a source-read failure.
func Unreadable(err error) error {
	return fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
}

// Malformed wraps err as an unparseable-content failure.
func Malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrUnsupportedContent, err)
}
