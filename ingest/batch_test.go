package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mdforge/ingestor/mediatype"
)

// fixedDetector classifies everything as one type.
type fixedDetector struct{ mt mediatype.Type }

func (d fixedDetector) Detect(context.Context, *Source) mediatype.Type { return d.mt }

// memWriter collects results instead of touching the filesystem.
type memWriter struct {
	mu      sync.Mutex
	written []string
}

func (w *memWriter) Write(_ context.Context, result *ExtractionResult, root string) (*WrittenPaths, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, result.SourceID)
	return &WrittenPaths{Dir: root, Markdown: filepath.Join(root, "index.md")}, nil
}

// failNth fails extraction for one specific source name.
type failNth struct{ failName string }

func (f *failNth) Supports(*Source) bool { return true }

func (f *failNth) Extract(_ context.Context, src *Source) (*ExtractionResult, error) {
	if src.Name == f.failName {
		return nil, Malformed(errors.New("corrupt payload"))
	}
	return &ExtractionResult{Markdown: "# ok", MediaType: mediatype.Text, SourceID: src.Identifier()}, nil
}

func testPipeline(t *testing.T, ex Extractor, w Writer) *Pipeline {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(mediatype.Text, ex)
	cfg := DefaultConfig()
	cfg.Concurrency = 3
	return NewPipeline(cfg, fixedDetector{mediatype.Text}, reg, nil, w)
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	// WHAT: one corrupt source in a batch fails alone; siblings still
	// produce output and the report reflects exactly one failure.
	w := &memWriter{}
	pipe := testPipeline(t, &failNth{failName: "doc2"}, w)

	sources := []*Source{
		FromBytes("doc0", []byte("a")),
		FromBytes("doc1", []byte("b")),
		FromBytes("doc2", []byte("c")),
		FromBytes("doc3", []byte("d")),
	}
	report := pipe.RunBatch(context.Background(), sources)

	if report.Failed != 1 || report.Succeeded != 3 {
		t.Fatalf("got %d failed / %d succeeded, want 1 / 3", report.Failed, report.Succeeded)
	}
	if !report.AnyFailed() {
		t.Error("AnyFailed() = false with a failed item")
	}
	if report.Items[2].Err == nil {
		t.Error("item 2 should carry its error")
	}
	if !errors.Is(report.Items[2].Err, ErrUnsupportedContent) {
		t.Errorf("item 2 error = %v, want ErrUnsupportedContent class", report.Items[2].Err)
	}
	if len(w.written) != 3 {
		t.Errorf("wrote %d outputs, want 3", len(w.written))
	}
}

func TestRunBatchResultsInInputOrder(t *testing.T) {
	w := &memWriter{}
	pipe := testPipeline(t, &failNth{}, w)

	sources := make([]*Source, 10)
	for i := range sources {
		sources[i] = FromBytes(string(rune('a'+i)), []byte("x"))
	}
	report := pipe.RunBatch(context.Background(), sources)

	for i, item := range report.Items {
		if item.Source != sources[i].Identifier() {
			t.Errorf("item %d = %q, want %q", i, item.Source, sources[i].Identifier())
		}
	}
}

func TestRunBatchCancellation(t *testing.T) {
	// WHAT: a cancelled context stops launching new sources and marks
	// the remainder as cancelled without panicking.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &memWriter{}
	pipe := testPipeline(t, &failNth{}, w)

	sources := []*Source{FromBytes("a", nil), FromBytes("b", nil)}
	report := pipe.RunBatch(ctx, sources)

	if !report.Cancelled {
		t.Error("report.Cancelled = false after pre-cancelled context")
	}
	for i, item := range report.Items {
		if item.Err == nil {
			t.Errorf("item %d has no error after cancellation", i)
		}
	}
}

func TestDiscoverSources(t *testing.T) {
	// WHAT: folder discovery picks supported extensions, follows .url
	// pointer files, and skips everything else.
	dir := t.TempDir()
	files := map[string]string{
		"a.pdf":     "%PDF-1.4",
		"b.txt":     "hello",
		"c.exe":     "MZ",
		"link.url":  "[InternetShortcut]\nURL=https://example.com/page\n",
		"empty.url": "# no url here\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "d.docx"), []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}

	flat, err := DiscoverSources(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 3 { // a.pdf, b.txt, link.url
		t.Fatalf("flat discovery found %d sources, want 3: %+v", len(flat), flat)
	}

	var foundURL bool
	for _, s := range flat {
		if s.URL == "https://example.com/page" {
			foundURL = true
		}
	}
	if !foundURL {
		t.Error("pointer file URL not discovered")
	}

	deep, err := DiscoverSources(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(deep) != 4 {
		t.Fatalf("recursive discovery found %d sources, want 4", len(deep))
	}
}
