// Package output persists extraction results to a deterministic
// directory layout:
//
//	<root>/<source-name>/<source-name>.md
//	<root>/<source-name>/img/*
//	<root>/<source-name>/metadata.json   (optional)
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mdforge/ingestor/ingest"
)

// Writer persists extraction results.
type Writer struct {
	// SkipExisting skips a source whose markdown output already exists,
	// leaving the previous run untouched. The default (false) overwrites
	// deterministically.
	SkipExisting bool

	// GenerateMetadata writes a metadata.json sidecar per source.
	GenerateMetadata bool
}

// New creates a Writer.
func New(skipExisting, generateMetadata bool) *Writer {
	return &Writer{SkipExisting: skipExisting, GenerateMetadata: generateMetadata}
}

// Write persists one result under root. Filesystem errors are fatal for
// this source only; batch siblings are unaffected.
func (w *Writer) Write(ctx context.Context, result *ingest.ExtractionResult, root string) (*ingest.WrittenPaths, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := SanitizeName(result.SourceID)
	dir := filepath.Join(root, name)
	mdPath := filepath.Join(dir, name+".md")

	if w.SkipExisting {
		if _, err := os.Stat(mdPath); err == nil {
			return &ingest.WrittenPaths{Dir: dir, Markdown: mdPath, Skipped: true}, nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	names := finalImageNames(result.Images)
	markdown := rewriteImageLinks(result.Markdown, result.Images, names)

	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return nil, fmt.Errorf("write markdown: %w", err)
	}

	paths := &ingest.WrittenPaths{Dir: dir, Markdown: mdPath}

	if hasWritableImage(result.Images) {
		imgDir := filepath.Join(dir, "img")
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", imgDir, err)
		}
		for i, img := range result.Images {
			if img.Failed || len(img.Data) == 0 {
				continue
			}
			imgPath := filepath.Join(imgDir, names[i])
			if err := os.WriteFile(imgPath, img.Data, 0o644); err != nil {
				return nil, fmt.Errorf("write image %s: %w", imgPath, err)
			}
			paths.Images = append(paths.Images, imgPath)
		}
	}

	if w.GenerateMetadata {
		metaPath := filepath.Join(dir, "metadata.json")
		if err := writeMetadata(metaPath, result, names); err != nil {
			return nil, err
		}
		paths.Metadata = metaPath
	}

	return paths, nil
}

func hasWritableImage(images []ingest.Image) bool {
	for _, img := range images {
		if !img.Failed && len(img.Data) > 0 {
			return true
		}
	}
	return false
}

// finalImageNames assigns the on-disk filename for every image slot:
// sanitized suggested basename (or a positional fallback) plus the
// extension matching the post-conversion format tag. Duplicate names get
// an indexed suffix so two carried parts never overwrite each other.
func finalImageNames(images []ingest.Image) []string {
	names := make([]string, len(images))
	used := make(map[string]bool, len(images))
	for i, img := range images {
		base := fmt.Sprintf("image_%03d", i+1)
		if img.Name != "" {
			base = SanitizeName(strings.TrimSuffix(img.Name, filepath.Ext(img.Name)))
		}
		name := base + imageExtension(img)
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d%s", base, n, imageExtension(img))
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// imageExtension derives the filename extension from the format tag,
// falling back to the suggested name's extension for untagged images.
func imageExtension(img ingest.Image) string {
	switch img.Format {
	case "jpeg":
		return ".jpg"
	case "":
		if ext := strings.ToLower(filepath.Ext(img.Name)); ext != "" {
			return ext
		}
		return ".bin"
	default:
		return "." + img.Format
	}
}

// rewriteImageLinks repoints img/<suggested-name> markdown references at
// the filenames the writer actually produces. Extractors embed the
// suggested name; conversion may have changed the encoding since.
func rewriteImageLinks(markdown string, images []ingest.Image, names []string) string {
	for i, img := range images {
		if img.Name == "" || img.Name == names[i] {
			continue
		}
		markdown = strings.ReplaceAll(markdown,
			"(img/"+img.Name+")",
			"(img/"+names[i]+")")
	}
	return markdown
}

type metadataSidecar struct {
	Source    string         `json:"source"`
	MediaType string         `json:"media_type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Images    []imageEntry   `json:"images,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

type imageEntry struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Failed bool   `json:"failed,omitempty"`
}

func writeMetadata(path string, result *ingest.ExtractionResult, names []string) error {
	sidecar := metadataSidecar{
		Source:    result.SourceID,
		MediaType: result.MediaType.String(),
		Metadata:  result.Metadata,
		Warnings:  result.Warnings,
	}
	for i, img := range result.Images {
		sidecar.Images = append(sidecar.Images, imageEntry{
			Name:   names[i],
			Format: img.Format,
			Failed: img.Failed,
		})
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// SanitizeName derives a filesystem-safe directory name from a source
// identifier (path, URL, or buffer name).
func SanitizeName(id string) string {
	name := id

	if u, err := url.Parse(id); err == nil && u.Scheme != "" && u.Host != "" {
		name = u.Host + u.Path
	} else {
		name = filepath.Base(id)
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	var sb strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
			lastDash = false
		case r == '.' || r == '-' || r == '_':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}

	out := strings.Trim(sb.String(), "-._")
	if out == "" {
		out = "source"
	}
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
