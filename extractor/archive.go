package extractor

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// Archive extracts zip archives: a member listing plus the content of
// text-like members inlined as fenced blocks, capped per member and in
// total.
type Archive struct {
	MaxMembers     int
	MaxMemberBytes int64
}

// NewArchive creates the archive extractor.
func NewArchive() *Archive {
	return &Archive{MaxMembers: 50, MaxMemberBytes: 100_000}
}

// textLikeExts lists member extensions whose content is inlined.
var textLikeExts = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".xml": true, ".csv": true, ".ini": true, ".cfg": true, ".conf": true,
	".log": true, ".html": true, ".htm": true, ".css": true,
	".py": true, ".go": true, ".js": true, ".ts": true, ".sh": true,
	".c": true, ".h": true, ".cpp": true, ".java": true, ".rs": true,
	".rb": true, ".sql": true, ".proto": true,
}

func (a *Archive) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (a *Archive) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	zr, closeZip, err := openZipSource(src)
	if err != nil {
		return nil, err
	}
	defer closeZip()

	result := &ingest.ExtractionResult{
		MediaType: mediatype.Archive,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{"member_count": len(zr.File)},
	}

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)

	var md strings.Builder
	md.WriteString("# Archive contents\n")
	for _, name := range names {
		fmt.Fprintf(&md, "\n- `%s`", name)
	}

	inlined := 0
	for _, name := range names {
		if inlined >= a.MaxMembers {
			result.AddWarning("member inlining stopped at %d files", a.MaxMembers)
			break
		}
		if !textLikeExts[strings.ToLower(path.Ext(name))] {
			continue
		}
		f, ok := zipEntry(zr, name)
		if !ok || int64(f.UncompressedSize64) > a.MaxMemberBytes {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			result.AddWarning("member %s unreadable: %v", name, err)
			continue
		}
		lang := strings.TrimPrefix(path.Ext(name), ".")
		fmt.Fprintf(&md, "\n\n## %s\n\n```%s\n%s\n```", name, lang, strings.TrimSpace(string(data)))
		inlined++
	}

	result.Markdown = md.String()
	result.Metadata["title"] = path.Base(src.Identifier())
	return result, nil
}
