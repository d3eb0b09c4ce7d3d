package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/microcosm-cc/bluemonday"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// EPUB extracts ebooks: OPF spine order drives chapter sequence, each
// XHTML chapter is converted to markdown, and manifest images are carried
// through in the order the chapters reference them.
type EPUB struct {
	conv      *converter.Converter
	sanitizer *bluemonday.Policy
}

// NewEPUB creates the EPUB extractor.
func NewEPUB() *EPUB {
	return &EPUB{conv: newMarkdownConverter(), sanitizer: newSanitizer()}
}

func (e *EPUB) Supports(src *ingest.Source) bool { return !src.IsURL() }

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Metadata struct {
		Title   string   `xml:"title"`
		Creator []string `xml:"creator"`
		Date    string   `xml:"date"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func (e *EPUB) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	zr, closeZip, err := openZipSource(src)
	if err != nil {
		return nil, err
	}
	defer closeZip()

	opfPath, err := findOPF(zr)
	if err != nil {
		return nil, ingest.Malformed(err)
	}

	opfFile, ok := zipEntry(zr, opfPath)
	if !ok {
		return nil, ingest.Malformed(fmt.Errorf("OPF package %s missing", opfPath))
	}
	opfData, err := readZipEntry(opfFile)
	if err != nil {
		return nil, ingest.Unreadable(err)
	}

	var pkg epubPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, ingest.Malformed(fmt.Errorf("parse OPF: %w", err))
	}

	baseDir := path.Dir(opfPath)
	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		hrefByID[item.ID] = resolveEpubPath(baseDir, item.Href)
	}

	result := &ingest.ExtractionResult{
		MediaType: mediatype.EPUB,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{"title": pkg.Metadata.Title},
	}
	if len(pkg.Metadata.Creator) > 0 {
		result.Metadata["authors"] = pkg.Metadata.Creator
	}
	if pkg.Metadata.Date != "" {
		result.Metadata["date"] = pkg.Metadata.Date
	}

	var md strings.Builder
	carried := make(map[string]string) // archive path → carried filename
	usedNames := make(map[string]bool)

	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		f, ok := zipEntry(zr, href)
		if !ok {
			result.AddWarning("spine item %s missing from archive", href)
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			result.AddWarning("chapter %s unreadable: %v", href, err)
			continue
		}

		chapter, err := e.conv.ConvertString(e.sanitizer.Sanitize(string(data)))
		if err != nil {
			result.AddWarning("chapter %s conversion failed: %v", href, err)
			continue
		}

		chapterDir := path.Dir(href)
		chapter = rewriteImageRefs(chapter, func(target string) (string, bool) {
			archivePath := resolveEpubPath(chapterDir, target)
			if name, done := carried[archivePath]; done {
				return name, name != ""
			}
			name, ok := loadZipImage(zr, archivePath, usedNames, result)
			if !ok {
				carried[archivePath] = ""
				return "", false
			}
			carried[archivePath] = name
			return name, true
		})

		if chapter = normalizeWhitespace(chapter); chapter != "" {
			if md.Len() > 0 {
				md.WriteString("\n\n")
			}
			md.WriteString(chapter)
		}
	}

	if md.Len() == 0 {
		return nil, ingest.Malformed(fmt.Errorf("no readable chapters"))
	}

	result.Markdown = md.String()
	return result, nil
}

// findOPF locates the package document via META-INF/container.xml.
func findOPF(zr *zip.Reader) (string, error) {
	f, ok := zipEntry(zr, "META-INF/container.xml")
	if !ok {
		return "", fmt.Errorf("META-INF/container.xml missing")
	}
	data, err := readZipEntry(f)
	if err != nil {
		return "", err
	}
	var c epubContainer
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("parse container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("container.xml lists no rootfile")
	}
	return c.Rootfiles[0].FullPath, nil
}

func resolveEpubPath(baseDir, href string) string {
	href = strings.SplitN(href, "#", 2)[0]
	if strings.HasPrefix(href, "/") {
		return strings.TrimPrefix(href, "/")
	}
	if baseDir == "." || baseDir == "" {
		return path.Clean(href)
	}
	return path.Clean(path.Join(baseDir, href))
}
