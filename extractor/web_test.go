package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mdforge/ingestor/fetch"
	"github.com/mdforge/ingestor/ingest"
)

func testWeb(t *testing.T, maxDepth, maxPages int) *Web {
	t.Helper()
	return NewWeb(fetch.New(fetch.Config{}), nil, maxDepth, maxPages, nil)
}

func TestWebExtractPage(t *testing.T) {
	// WHAT: a page converts to markdown, its title lands in metadata,
	// and referenced images download and rewrite to img/.
	var imageHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>The Article</title></head><body>
<h1>The Article</h1>
<p>Useful prose.</p>
<img src="/static/diagram.png" alt="diagram">
<script>evil()</script>
</body></html>`)
	})
	mux.HandleFunc("/static/diagram.png", func(w http.ResponseWriter, r *http.Request) {
		imageHits++
		w.Write([]byte("\x89PNG fake"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ex := testWeb(t, 1, 10)
	result, err := ex.Extract(context.Background(), ingest.FromURL(srv.URL+"/article"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if result.Metadata["title"] != "The Article" {
		t.Errorf("title = %v", result.Metadata["title"])
	}
	if !strings.Contains(result.Markdown, "# The Article") {
		t.Errorf("heading missing:\n%s", result.Markdown)
	}
	if !strings.Contains(result.Markdown, "![diagram](img/image_001.png)") {
		t.Errorf("image ref not rewritten:\n%s", result.Markdown)
	}
	if strings.Contains(result.Markdown, "evil") {
		t.Error("script survived sanitisation")
	}
	if imageHits != 1 || len(result.Images) != 1 || result.Images[0].Failed {
		t.Errorf("image download: hits=%d images=%+v", imageHits, result.Images)
	}
}

func TestWebImageFailureIsPartial(t *testing.T) {
	// WHAT: an image that 404s becomes a failed slot plus warning; the
	// page itself still extracts.
	mux := http.NewServeMux()
	mux.HandleFunc("/p", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>text</p><img src="/gone.png" alt="x"></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ex := testWeb(t, 1, 10)
	result, err := ex.Extract(context.Background(), ingest.FromURL(srv.URL+"/p"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("no warning for failed image download")
	}
	if len(result.Images) != 1 || !result.Images[0].Failed {
		t.Errorf("images = %+v, want one failed slot", result.Images)
	}
}

func TestWebResolveURLFromPointerFile(t *testing.T) {
	src := ingest.FromBytes("link.url", []byte("[InternetShortcut]\r\nURL=https://example.com/x\r\n"))
	ex := testWeb(t, 1, 10)
	url, err := ex.resolveURL(src)
	if err != nil {
		t.Fatalf("resolveURL: %v", err)
	}
	if url != "https://example.com/x" {
		t.Errorf("url = %q", url)
	}
}

func TestCrawlDeepFetchesEachPageOnce(t *testing.T) {
	// WHY: link discovery reuses the body fetched for extraction; a page
	// snapshot is retrieved exactly once per crawl.
	hits := map[string]int{}
	mux := http.NewServeMux()
	serve := func(path string, links ...string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			hits[r.URL.Path]++
			fmt.Fprintf(w, "<html><body><p>page %s</p>", r.URL.Path)
			for _, l := range links {
				fmt.Fprintf(w, `<a href="%s">link</a>`, l)
			}
			fmt.Fprint(w, "</body></html>")
		})
	}
	serve("/start", "/next")
	serve("/next")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ex := testWeb(t, 2, 10)
	results, err := ex.CrawlDeep(context.Background(), srv.URL+"/start")
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("crawled %d pages, want 2", len(results))
	}
	for path, n := range hits {
		if n != 1 {
			t.Errorf("page %s fetched %d times, want 1", path, n)
		}
	}
}

func TestCrawlDeepBounds(t *testing.T) {
	// WHAT: the crawl stays on the same host and respects both the page
	// budget and the depth limit.
	mux := http.NewServeMux()
	page := func(links ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "<html><head><title>%s</title></head><body><p>page %s</p>", r.URL.Path, r.URL.Path)
			for _, l := range links {
				fmt.Fprintf(w, `<a href="%s">link</a>`, l)
			}
			fmt.Fprint(w, `<a href="https://elsewhere.invalid/off">offsite</a></body></html>`)
		}
	}
	mux.HandleFunc("/", page("/a", "/b"))
	mux.HandleFunc("/a", page("/c"))
	mux.HandleFunc("/b", page())
	mux.HandleFunc("/c", page("/d"))
	mux.HandleFunc("/d", page())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ex := testWeb(t, 1, 10)
	results, err := ex.CrawlDeep(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	// depth 0: /, depth 1: /a and /b. /c is depth 2, beyond MaxDepth.
	if len(results) != 3 {
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.SourceID
		}
		t.Fatalf("crawled %d pages, want 3: %v", len(results), ids)
	}
	for _, r := range results {
		if strings.Contains(r.SourceID, "elsewhere.invalid") {
			t.Error("crawl left the start host")
		}
	}

	capped := testWeb(t, 5, 2)
	results, err = capped.CrawlDeep(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("capped crawl: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("crawled %d pages, want 2 (page budget)", len(results))
	}
}
