package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// PPTX extracts PowerPoint decks: one markdown section per slide, with
// slide text from the drawing markup and images from each slide's
// relationships.
type PPTX struct{}

// NewPPTX creates the PowerPoint extractor.
func NewPPTX() *PPTX { return &PPTX{} }

var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (p *PPTX) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (p *PPTX) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	zr, closeZip, err := openZipSource(src)
	if err != nil {
		return nil, err
	}
	defer closeZip()

	slides := slideNumbers(zr)
	if len(slides) == 0 {
		return nil, ingest.Malformed(fmt.Errorf("no slides found in archive"))
	}

	result := &ingest.ExtractionResult{
		MediaType: mediatype.PPTX,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{"slide_count": len(slides)},
	}

	var md strings.Builder
	var title string
	usedNames := make(map[string]bool)

	for _, nr := range slides {
		slidePath := fmt.Sprintf("ppt/slides/slide%d.xml", nr)
		f, ok := zipEntry(zr, slidePath)
		if !ok {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			result.AddWarning("slide %d unreadable: %v", nr, err)
			continue
		}

		paragraphs, imageIDs := parseSlide(data)
		if title == "" && len(paragraphs) > 0 {
			title = paragraphs[0]
		}

		if md.Len() > 0 {
			md.WriteString("\n\n")
		}
		fmt.Fprintf(&md, "## Slide %d", nr)
		for _, para := range paragraphs {
			md.WriteString("\n\n" + para)
		}

		rels, err := parseRels(zr, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", nr), "ppt/slides")
		if err != nil {
			result.AddWarning("slide %d relationships unreadable: %v", nr, err)
			continue
		}
		for _, rID := range imageIDs {
			name, ok := loadZipImage(zr, rels[rID], usedNames, result)
			if !ok {
				continue
			}
			fmt.Fprintf(&md, "\n\n![slide %d image](img/%s)", nr, name)
		}
	}

	if md.Len() == 0 {
		return nil, ingest.Malformed(fmt.Errorf("empty presentation"))
	}

	result.Markdown = md.String()
	result.Metadata["title"] = title
	return result, nil
}

// slideNumbers lists slide part numbers present in the archive, sorted.
func slideNumbers(zr *zip.Reader) []int {
	var nrs []int
	for _, f := range zr.File {
		if m := slidePathRe.FindStringSubmatch(f.Name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				nrs = append(nrs, n)
			}
		}
	}
	sort.Ints(nrs)
	return nrs
}

// parseSlide pulls text paragraphs (a:p / a:t runs) and image embed
// relationship ids (a:blip) from one slide part, in document order.
func parseSlide(data []byte) ([]string, []string) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var paragraphs []string
	var imageIDs []string
	var current strings.Builder
	var inParagraph bool

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
				current.Reset()
			case "blip":
				for _, attr := range t.Attr {
					if attr.Name.Local == "embed" {
						imageIDs = append(imageIDs, attr.Value)
					}
				}
			}
		case xml.CharData:
			if inParagraph {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
	}
	return paragraphs, imageIDs
}

// loadZipImage carries one archive media file on the result, degrading
// to a failed slot when the member is missing or unreadable. Basenames
// already carried for a different part get an indexed suffix, so the
// markdown references stay unambiguous.
func loadZipImage(zr *zip.Reader, target string, used map[string]bool, result *ingest.ExtractionResult) (string, bool) {
	if target == "" {
		return "", false
	}
	name := uniqueImageName(path.Base(target), used)
	format := formatFromName(name)

	f, ok := zipEntry(zr, target)
	if !ok {
		result.Images = append(result.Images, ingest.Image{Name: name, Format: format, Failed: true})
		result.AddWarning("image %s referenced but missing from archive", target)
		return name, true
	}
	data, err := readZipEntry(f)
	if err != nil {
		result.Images = append(result.Images, ingest.Image{Name: name, Format: format, Failed: true})
		result.AddWarning("image %s failed to decode: %v", target, err)
		return name, true
	}
	result.Images = append(result.Images, ingest.Image{Data: data, Format: format, Name: name})
	return name, true
}

// uniqueImageName reserves a carried filename, suffixing duplicates so
// two distinct archive parts sharing a basename stay distinct files.
func uniqueImageName(base string, used map[string]bool) string {
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := base
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	used[name] = true
	return name
}
