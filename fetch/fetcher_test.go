package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchBasics(t *testing.T) {
	// WHAT: a successful fetch returns body, content type, final URL,
	// and a body hash.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "ingestor") {
			t.Errorf("user agent = %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html>hi</html>")
	}))
	defer srv.Close()

	f := New(Config{})
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Body) != "<html>hi</html>" || res.StatusCode != 200 {
		t.Errorf("res = %+v", res)
	}
	if res.ContentType != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", res.ContentType)
	}
	want := fmt.Sprintf("%x", sha256.Sum256(res.Body))
	if res.Hash != want {
		t.Errorf("hash = %q, want %q", res.Hash, want)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{})
	res, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("404 did not error")
	}
	if res == nil || res.StatusCode != 404 {
		t.Errorf("res = %+v", res)
	}
}

func TestFetchBodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 100})
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Body) != 100 {
		t.Errorf("body = %d bytes, want capped at 100", len(res.Body))
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{})
	res, err := f.Fetch(context.Background(), srv.URL+"/start")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Body) != "landed" {
		t.Errorf("body = %q", res.Body)
	}
	if !strings.HasSuffix(res.FinalURL, "/final") {
		t.Errorf("final url = %q", res.FinalURL)
	}
}

func TestFetchRedirectValidation(t *testing.T) {
	// WHAT: redirects re-run the URL validator, so a page cannot bounce
	// the fetcher to a blocked target.
	mux := http.NewServeMux()
	mux.HandleFunc("/trap", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://blocked.invalid/x")
		w.WriteHeader(http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	blocked := func(raw string) error {
		if strings.Contains(raw, "blocked.invalid") {
			return fmt.Errorf("denied host")
		}
		return nil
	}
	f := New(Config{URLValidator: blocked})
	if _, err := f.Fetch(context.Background(), srv.URL+"/trap"); err == nil {
		t.Fatal("blocked redirect did not error")
	}
}

func TestValidateURL(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/a", true},
		{"http://example.com", true},
		{"ftp://example.com", false},
		{"file:///etc/passwd", false},
		{"https://", false},
		{"not a url at all\x7f", false},
	}
	for _, c := range cases {
		err := ValidateURL(c.url)
		if (err == nil) != c.ok {
			t.Errorf("ValidateURL(%q) = %v, want ok=%v", c.url, err, c.ok)
		}
	}
}
