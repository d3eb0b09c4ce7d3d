// Package extractor provides the per-media-type extraction variants
// registered with the ingest router. Each variant owns its internals; the
// only cross-cutting contract is the ExtractionResult shape.
package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// newMarkdownConverter builds the shared HTML→markdown converter with
// commonmark and table support.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
}

// newSanitizer builds the HTML sanitizer applied before markdown
// conversion. UGC policy plus images, which the pipeline carries through
// to the output img/ directory.
func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	return p
}

// markdownImageRe matches markdown image references: ![alt](target)
var markdownImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)

// rewriteImageRefs walks markdown image references in document order and
// lets resolve map each target to a carried image filename. Targets that
// resolve are rewritten to img/<name>; unresolved ones are left alone.
// The resolve callback is invoked in reference order, which is what makes
// the images slice ordering match the markdown.
func rewriteImageRefs(markdown string, resolve func(target string) (name string, ok bool)) string {
	return markdownImageRe.ReplaceAllStringFunc(markdown, func(m string) string {
		groups := markdownImageRe.FindStringSubmatch(m)
		alt, target := groups[1], groups[2]
		name, ok := resolve(target)
		if !ok {
			return m
		}
		return fmt.Sprintf("![%s](img/%s)", alt, name)
	})
}

// normalizeWhitespace collapses runs of blank lines and trims trailing
// spaces, leaving markdown structure intact.
func normalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// firstLine returns the first non-empty line, capped for use as a title.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	return ""
}

// formatFromName guesses the image encoding tag from a filename.
func formatFromName(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasSuffix(name, ".png"):
		return "png"
	case strings.HasSuffix(name, ".jpg"), strings.HasSuffix(name, ".jpeg"):
		return "jpeg"
	case strings.HasSuffix(name, ".gif"):
		return "gif"
	case strings.HasSuffix(name, ".webp"):
		return "webp"
	case strings.HasSuffix(name, ".bmp"):
		return "bmp"
	case strings.HasSuffix(name, ".tiff"), strings.HasSuffix(name, ".tif"):
		return "tiff"
	case strings.HasSuffix(name, ".svg"):
		return "svg"
	}
	return ""
}
