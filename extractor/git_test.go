package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mdforge/ingestor/ingest"
)

func TestGitSupports(t *testing.T) {
	g := NewGit(50, 100_000)
	cases := []struct {
		url  string
		want bool
	}{
		{"https://github.com/golang/go", true},
		{"https://gitlab.com/group/proj", true},
		{"git@github.com:golang/go.git", true},
		{"https://example.com/custom/repo.git", true},
		{"https://example.com/article", false},
	}
	for _, c := range cases {
		if got := g.Supports(ingest.FromURL(c.url)); got != c.want {
			t.Errorf("Supports(%q) = %v, want %v", c.url, got, c.want)
		}
	}
	if g.Supports(ingest.FromPath("/tmp/x.pdf")) {
		t.Error("local paths are not git sources")
	}
}

func TestGitCollectFiles(t *testing.T) {
	// WHAT: the walk picks source files by extension, skips vendored
	// and hidden directories, sorts, and caps at MaxFiles.
	dir := t.TempDir()
	writeFiles := map[string]string{
		"main.go":              "package main",
		"util/helper.py":       "pass",
		"README.md":            "# readme",
		"docs/guide.md":        "guide",
		"binary.o":             "\x7fELF",
		"node_modules/dep.js":  "ignored",
		".git/config":          "ignored",
		"vendor/lib/lib.go":    "ignored",
		"__pycache__/x.py":     "ignored",
	}
	for rel, content := range writeFiles {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	g := NewGit(50, 100_000)
	files, truncated := g.collectFiles(dir)
	if truncated {
		t.Error("unexpected truncation")
	}
	want := []string{"docs/guide.md", "main.go", filepath.Join("util", "helper.py")}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if filepath.ToSlash(files[i]) != filepath.ToSlash(want[i]) {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}

	g.MaxFiles = 2
	files, truncated = g.collectFiles(dir)
	if len(files) != 2 || !truncated {
		t.Errorf("cap not applied: %v truncated=%v", files, truncated)
	}
}

func TestGitRenderFileClipping(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "big.go"), []byte(strings.Repeat("a", 500)), 0o644); err != nil {
		t.Fatal(err)
	}

	g := NewGit(50, 100)
	var b strings.Builder
	result := &ingest.ExtractionResult{}
	g.renderFile(&b, dir, "big.go", result)

	if !strings.Contains(b.String(), "### big.go") || !strings.Contains(b.String(), "```go") {
		t.Errorf("rendered:\n%s", b.String())
	}
	if len(result.Warnings) != 1 {
		t.Errorf("warnings = %v, want clip warning", result.Warnings)
	}
}

func TestGitReadReadme(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Project\nintro\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := NewGit(50, 100_000)
	if got := g.readReadme(dir); !strings.HasPrefix(got, "# Project") {
		t.Errorf("readme = %q", got)
	}
	if got := g.readReadme(t.TempDir()); got != "" {
		t.Errorf("readme of empty dir = %q", got)
	}
}

func TestRepoName(t *testing.T) {
	cases := map[string]string{
		"https://github.com/golang/go":     "go",
		"https://example.com/custom.git":   "custom",
		"git@github.com:owner/project.git": "project",
		"https://github.com/owner/repo/":   "repo",
	}
	for url, want := range cases {
		if got := repoName(url); got != want {
			t.Errorf("repoName(%q) = %q, want %q", url, got, want)
		}
	}
}
