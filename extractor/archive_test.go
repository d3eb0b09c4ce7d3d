package extractor

import (
	"context"
	"strings"
	"testing"

	"github.com/mdforge/ingestor/ingest"
)

func TestArchiveListingAndInlining(t *testing.T) {
	// WHAT: all members are listed; text-like members are inlined as
	// fenced blocks; binaries are listed only.
	zipData := buildZip(t, map[string]string{
		"readme.md":  "# Inside\n\nwords",
		"data.bin":   "\x00\x01\x02",
		"src/app.go": "package app",
	})
	src := ingest.FromBytes("bundle.zip", zipData)

	result, err := NewArchive().Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	md := result.Markdown
	for _, want := range []string{"- `readme.md`", "- `data.bin`", "- `src/app.go`", "## readme.md", "```go\npackage app\n```"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## data.bin") {
		t.Error("binary member was inlined")
	}
	if result.Metadata["member_count"] != 3 {
		t.Errorf("member_count = %v", result.Metadata["member_count"])
	}
}

func TestArchiveMemberCap(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 6; i++ {
		files[string(rune('a'+i))+".txt"] = "content"
	}
	src := ingest.FromBytes("many.zip", buildZip(t, files))

	ex := NewArchive()
	ex.MaxMembers = 3
	result, err := ex.Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("no warning when inlining stopped at the cap")
	}
	if n := strings.Count(result.Markdown, "\n## "); n != 3 {
		t.Errorf("inlined %d members, want 3", n)
	}
}

func TestArchiveSkipsOversizeMember(t *testing.T) {
	src := ingest.FromBytes("big.zip", buildZip(t, map[string]string{
		"huge.txt": strings.Repeat("x", 200),
		"ok.txt":   "small",
	}))
	ex := NewArchive()
	ex.MaxMemberBytes = 100
	result, err := ex.Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(result.Markdown, "## huge.txt") {
		t.Error("oversize member was inlined")
	}
	if !strings.Contains(result.Markdown, "## ok.txt") {
		t.Error("small member not inlined")
	}
}
