package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mdforge/ingestor/mediatype"
)

// memRecorder collects events for assertions.
type memRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *memRecorder) Record(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// dropConverter violates the cardinality contract on purpose.
type dropConverter struct{}

func (dropConverter) Normalize(_ context.Context, images []Image) []Image {
	return images[:0]
}

// markFailedConverter keeps cardinality but marks everything failed.
type markFailedConverter struct{}

func (markFailedConverter) Normalize(_ context.Context, images []Image) []Image {
	out := make([]Image, len(images))
	for i, img := range images {
		img.Failed = true
		img.Data = nil
		out[i] = img
	}
	return out
}

func TestExtractUnknownType(t *testing.T) {
	// WHAT: sources detected as Unknown are rejected with
	// UnsupportedFormatError before any extractor runs.
	reg := NewRegistry()
	pipe := NewPipeline(DefaultConfig(), fixedDetector{mediatype.Unknown}, reg, nil, &memWriter{})

	_, err := pipe.Extract(context.Background(), FromBytes("blob", []byte{0x00}))
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("got %v, want UnsupportedFormatError", err)
	}
}

func TestExtractSupportsMismatch(t *testing.T) {
	// WHAT: an extractor that declines the source after routing stops
	// the pipeline instead of running on content it cannot handle.
	reg := NewRegistry()
	reg.MustRegister(mediatype.Text, &stubExtractor{support: false})
	pipe := NewPipeline(DefaultConfig(), fixedDetector{mediatype.Text}, reg, nil, &memWriter{})

	_, err := pipe.Extract(context.Background(), FromBytes("doc", []byte("x")))
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("got %v, want UnsupportedFormatError", err)
	}
}

func TestExtractConverterCardinalityViolation(t *testing.T) {
	// WHAT: an image converter that drops slots is a bug surfaced as an
	// error, never silently shifted markdown references.
	result := &ExtractionResult{
		Markdown:  "![a](img/a.png)",
		Images:    []Image{{Name: "a.png", Format: "png", Data: []byte{1}}},
		MediaType: mediatype.Text,
	}
	reg := NewRegistry()
	reg.MustRegister(mediatype.Text, &stubExtractor{support: true, result: result})
	pipe := NewPipeline(DefaultConfig(), fixedDetector{mediatype.Text}, reg, dropConverter{}, &memWriter{})

	_, err := pipe.Extract(context.Background(), FromBytes("doc", []byte("x")))
	if err == nil {
		t.Fatal("cardinality violation not reported")
	}
}

func TestExtractAttachesConversionWarnings(t *testing.T) {
	// WHAT: failed image conversions surface as result warnings while
	// extraction still succeeds.
	result := &ExtractionResult{
		Markdown:  "![a](img/a.png)",
		Images:    []Image{{Name: "a.png", Format: "png", Data: []byte{1}}},
		MediaType: mediatype.Text,
	}
	reg := NewRegistry()
	reg.MustRegister(mediatype.Text, &stubExtractor{support: true, result: result})
	pipe := NewPipeline(DefaultConfig(), fixedDetector{mediatype.Text}, reg, markFailedConverter{}, &memWriter{})

	got, err := pipe.Extract(context.Background(), FromBytes("doc", []byte("x")))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(got.Warnings) == 0 {
		t.Error("no warning for failed image conversion")
	}
	if len(got.Images) != 1 || !got.Images[0].Failed {
		t.Errorf("failed image slot not preserved: %+v", got.Images)
	}
}

func TestProcessRecordsOutcomes(t *testing.T) {
	// WHAT: the recorder sees one event per processed source with the
	// outcome matching what actually happened.
	rec := &memRecorder{}

	pipe := testPipeline(t, &failNth{failName: "bad"}, &memWriter{})
	pipe.SetRecorder(rec)

	if _, err := pipe.Process(context.Background(), FromBytes("good", []byte("x"))); err != nil {
		t.Fatalf("process good: %v", err)
	}
	if _, err := pipe.Process(context.Background(), FromBytes("bad", []byte("x"))); err == nil {
		t.Fatal("process bad: expected error")
	}

	if len(rec.events) != 2 {
		t.Fatalf("recorded %d events, want 2", len(rec.events))
	}
	if rec.events[0].Outcome != "ok" || rec.events[0].OutputPath == "" {
		t.Errorf("first event = %+v, want ok with output path", rec.events[0])
	}
	if rec.events[1].Outcome != "error" || rec.events[1].Error == "" {
		t.Errorf("second event = %+v, want error with message", rec.events[1])
	}
}

func TestProcessErrorEventKeepsDetectedType(t *testing.T) {
	// WHAT: when detection succeeds but extraction fails, the error event
	// still carries the detected media type rather than Unknown.
	rec := &memRecorder{}
	reg := NewRegistry()
	reg.MustRegister(mediatype.PDF, &stubExtractor{support: true, err: errors.New("extractor: broken xref")})
	pipe := NewPipeline(DefaultConfig(), fixedDetector{mediatype.PDF}, reg, nil, &memWriter{})
	pipe.SetRecorder(rec)

	if _, err := pipe.Process(context.Background(), FromBytes("doc.pdf", []byte("%PDF"))); err == nil {
		t.Fatal("expected extraction error")
	}
	if len(rec.events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(rec.events))
	}
	if rec.events[0].MediaType != mediatype.PDF {
		t.Errorf("event media type = %v, want pdf", rec.events[0].MediaType)
	}
	if rec.events[0].Outcome != "error" {
		t.Errorf("event outcome = %q, want error", rec.events[0].Outcome)
	}
}
