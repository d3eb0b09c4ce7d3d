package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/mdforge/ingestor/mediatype"
)

// Extractor transforms a source of one media type into an ExtractionResult.
//
// Supports is cheap and advisory, used for defensive double-checking after
// routing; Extract is the actual transformation and may perform network or
// subprocess I/O. Extractors must not mutate the Source. A partially
// successful extraction (some embedded resources failed) returns a result
// with warnings attached, not an error.
type Extractor interface {
	Supports(src *Source) bool
	Extract(ctx context.Context, src *Source) (*ExtractionResult, error)
}

// Registry maps each media type to its single responsible extractor.
// Registration happens at startup and is append-only; once the pipeline
// starts routing, the registry is shared read-only across concurrent
// pipeline instances without locking.
type Registry struct {
	extractors map[mediatype.Type]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[mediatype.Type]Extractor)}
}

// Register binds an extractor to a media type. Re-registering the same
// media type is a configuration error surfaced here, at startup, so
// ambiguity never reaches dispatch time.
func (r *Registry) Register(mt mediatype.Type, ex Extractor) error {
	if mt == mediatype.Unknown {
		return fmt.Errorf("ingest: cannot register extractor for unknown media type")
	}
	if ex == nil {
		return fmt.Errorf("ingest: nil extractor for media type %q", mt)
	}
	if _, dup := r.extractors[mt]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateExtractor, mt)
	}
	r.extractors[mt] = ex
	return nil
}

// MustRegister is Register for static wiring where a duplicate is a
// programming error.
func (r *Registry) MustRegister(mt mediatype.Type, ex Extractor) {
	if err := r.Register(mt, ex); err != nil {
		panic(err)
	}
}

// Route returns the extractor responsible for mt, or an
// UnsupportedFormatError when none is registered. There is no fallback or
// chaining between extractors: exactly one handler per type.
func (r *Registry) Route(mt mediatype.Type) (Extractor, error) {
	ex, ok := r.extractors[mt]
	if !ok {
		return nil, &UnsupportedFormatError{MediaType: mt}
	}
	return ex, nil
}

// Types returns the registered media types in a stable order.
func (r *Registry) Types() []mediatype.Type {
	types := make([]mediatype.Type, 0, len(r.extractors))
	for mt := range r.extractors {
		types = append(types, mt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
