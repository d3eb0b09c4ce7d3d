package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// DOCX extracts Word documents: word/document.xml for text structure,
// word/media/* for embedded images, ordered by where the document
// references them.
type DOCX struct{}

// NewDOCX creates the Word extractor.
func NewDOCX() *DOCX { return &DOCX{} }

func (d *DOCX) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (d *DOCX) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	zr, closeZip, err := openZipSource(src)
	if err != nil {
		return nil, err
	}
	defer closeZip()

	docFile, ok := zipEntry(zr, "word/document.xml")
	if !ok {
		return nil, ingest.Malformed(fmt.Errorf("word/document.xml not found in archive"))
	}
	docXML, err := readZipEntry(docFile)
	if err != nil {
		return nil, ingest.Unreadable(err)
	}

	rels, err := parseRels(zr, "word/_rels/document.xml.rels", "word")
	if err != nil {
		return nil, ingest.Malformed(err)
	}

	result := &ingest.ExtractionResult{
		MediaType: mediatype.DOCX,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{},
	}

	markdown, title := d.walkDocument(docXML, zr, rels, result)
	if markdown == "" && len(result.Images) == 0 {
		return nil, ingest.Malformed(fmt.Errorf("empty document body"))
	}

	result.Markdown = markdown
	result.Metadata["title"] = title
	return result, nil
}

// walkDocument streams through document.xml, emitting markdown per
// paragraph and appending images at their reference positions.
func (d *DOCX) walkDocument(docXML []byte, zr *zip.Reader, rels map[string]string, result *ingest.ExtractionResult) (string, string) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))

	var md strings.Builder
	var title string
	var currentText strings.Builder
	var pendingImages []string // image refs inside the current paragraph
	var inParagraph bool
	var paragraphStyle string
	loaded := make(map[string]string) // rId → carried filename
	usedNames := make(map[string]bool)

	flush := func() {
		text := strings.TrimSpace(currentText.String())
		if text != "" {
			if md.Len() > 0 {
				md.WriteString("\n\n")
			}
			if level := docxHeadingLevel(paragraphStyle); level > 0 {
				if title == "" {
					title = text
				}
				md.WriteString(strings.Repeat("#", level) + " " + text)
			} else {
				md.WriteString(text)
			}
		}
		for _, name := range pendingImages {
			if md.Len() > 0 {
				md.WriteString("\n\n")
			}
			fmt.Fprintf(&md, "![](img/%s)", name)
		}
		currentText.Reset()
		pendingImages = nil
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				currentText.Reset()
				pendingImages = nil
				paragraphStyle = ""
			case "pStyle":
				if inParagraph {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							paragraphStyle = attr.Value
						}
					}
				}
			case "blip":
				for _, attr := range t.Attr {
					if attr.Name.Local == "embed" {
						if name, ok := d.loadImage(zr, rels, attr.Value, loaded, usedNames, result); ok {
							pendingImages = append(pendingImages, name)
						}
					}
				}
			case "tab":
				if inParagraph {
					currentText.WriteByte('\t')
				}
			case "br":
				if inParagraph {
					currentText.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inParagraph {
				currentText.Write(t)
			}

		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				flush()
			}
		}
	}

	return md.String(), title
}

// loadImage resolves an r:embed relationship to its media part and
// carries it on the result. Unreadable media degrades to a failed slot
// plus a warning; the document extraction continues.
func (d *DOCX) loadImage(zr *zip.Reader, rels map[string]string, rID string, loaded map[string]string, used map[string]bool, result *ingest.ExtractionResult) (string, bool) {
	if name, done := loaded[rID]; done {
		return name, name != ""
	}

	target, ok := rels[rID]
	if !ok {
		loaded[rID] = ""
		return "", false
	}

	name := uniqueImageName(path.Base(target), used)
	format := formatFromName(name)

	f, ok := zipEntry(zr, target)
	if !ok {
		result.Images = append(result.Images, ingest.Image{Name: name, Format: format, Failed: true})
		result.AddWarning("image %s referenced but missing from archive", target)
		loaded[rID] = name
		return name, true
	}

	data, err := readZipEntry(f)
	if err != nil {
		result.Images = append(result.Images, ingest.Image{Name: name, Format: format, Failed: true})
		result.AddWarning("image %s failed to decode: %v", target, err)
		loaded[rID] = name
		return name, true
	}

	result.Images = append(result.Images, ingest.Image{Data: data, Format: format, Name: name})
	loaded[rID] = name
	return name, true
}

// docxHeadingLevel extracts the heading level from a paragraph style
// name, e.g. "Heading1" → 1, "Title" → 1.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}

	// "Heading1", "heading1", "Titre1", etc.
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}

// openZipSource opens a path or buffer source as a zip archive. The
// returned closer must be called after all archive members are read.
func openZipSource(src *ingest.Source) (*zip.Reader, func(), error) {
	if src.Data != nil {
		zr, err := zip.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
		if err != nil {
			return nil, nil, ingest.Malformed(fmt.Errorf("open zip: %w", err))
		}
		return zr, func() {}, nil
	}
	if src.Path == "" {
		return nil, nil, ingest.Unreadable(fmt.Errorf("source %s has no local content", src.Identifier()))
	}
	rc, err := zip.OpenReader(src.Path)
	if err != nil {
		return nil, nil, ingest.Malformed(fmt.Errorf("open zip: %w", err))
	}
	return &rc.Reader, func() { rc.Close() }, nil
}
