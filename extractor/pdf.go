package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// PDF extracts text and embedded images from PDF files using pdfcpu.
// Structured extraction runs first; when the result scores poorly the
// quality metrics are attached and an OCR-needed warning is raised, since
// OCR itself is an external capability.
type PDF struct{}

// NewPDF creates the PDF extractor.
func NewPDF() *PDF { return &PDF{} }

func (p *PDF) Supports(src *ingest.Source) bool {
	return bytes.HasPrefix(src.Prefix(5), []byte("%PDF-"))
}

func (p *PDF) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	rs, closeFn, err := sourceReadSeeker(src)
	if err != nil {
		return nil, ingest.Unreadable(err)
	}
	defer closeFn()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return nil, ingest.Malformed(fmt.Errorf("pdfcpu read: %w", err))
	}

	result := &ingest.ExtractionResult{
		MediaType: mediatype.PDF,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{},
	}

	var md strings.Builder
	var title string
	totalChars := 0
	hasImages := false

	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		pageText := extractPageText(pdfCtx, pageNr)
		pageImages := extractPageImages(pdfCtx, pageNr, result)
		if len(pageImages) > 0 {
			hasImages = true
		}
		if pageText == "" && len(pageImages) == 0 {
			continue
		}

		totalChars += len([]rune(pageText))
		if title == "" {
			title = firstLine(pageText)
		}

		if md.Len() > 0 {
			md.WriteString("\n\n")
		}
		md.WriteString(pageText)
		for _, name := range pageImages {
			if md.Len() > 0 {
				md.WriteString("\n\n")
			}
			fmt.Fprintf(&md, "![page %d image](img/%s)", pageNr, name)
		}
	}

	if md.Len() == 0 {
		return nil, ingest.Malformed(fmt.Errorf("no text content found in PDF"))
	}

	fullText := md.String()
	quality := pdfQuality{
		PageCount:      pdfCtx.PageCount,
		PrintableRatio: printableRatio(fullText),
		WordlikeRatio:  wordlikeRatio(fullText),
		HasImages:      hasImages,
		VisualRefCount: countVisualRefs(fullText),
	}
	if pdfCtx.PageCount > 0 {
		quality.CharsPerPage = float64(totalChars) / float64(pdfCtx.PageCount)
	}

	result.Markdown = fullText
	result.Metadata["title"] = title
	result.Metadata["page_count"] = pdfCtx.PageCount
	result.Metadata["quality"] = quality

	if quality.NeedsOCR() {
		result.AddWarning("low text yield (%.0f chars/page, printable %.2f): PDF likely needs OCR", quality.CharsPerPage, quality.PrintableRatio)
	}
	if quality.HasVisualGap() {
		result.AddWarning("text references %d figures/tables alongside image streams: check extracted images", quality.VisualRefCount)
	}

	return result, nil
}

// extractPageImages pulls image XObjects for one page, appends them to
// the result in object-number order, and returns their filenames.
func extractPageImages(pdfCtx *model.Context, pageNr int, result *ingest.ExtractionResult) []string {
	images, err := pdfcpu.ExtractPageImages(pdfCtx, pageNr, false)
	if err != nil {
		result.AddWarning("page %d: image extraction failed: %v", pageNr, err)
		return nil
	}
	if len(images) == 0 {
		return nil
	}

	objNrs := make([]int, 0, len(images))
	for objNr := range images {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	var names []string
	for _, objNr := range objNrs {
		img := images[objNr]
		data, err := io.ReadAll(img)
		if err != nil || len(data) == 0 {
			result.Images = append(result.Images, ingest.Image{
				Name:   fmt.Sprintf("page%03d_obj%d.%s", pageNr, objNr, img.FileType),
				Format: normalizeImageFormat(img.FileType),
				Failed: true,
			})
			result.AddWarning("page %d: image object %d unreadable", pageNr, objNr)
			continue
		}
		name := fmt.Sprintf("page%03d_obj%d.%s", pageNr, objNr, img.FileType)
		result.Images = append(result.Images, ingest.Image{
			Data:   data,
			Format: normalizeImageFormat(img.FileType),
			Name:   name,
		})
		names = append(names, name)
	}
	return names
}

func normalizeImageFormat(fileType string) string {
	switch strings.ToLower(fileType) {
	case "jpg", "jpeg":
		return "jpeg"
	case "tif", "tiff":
		return "tiff"
	case "":
		return "png"
	default:
		return strings.ToLower(fileType)
	}
}

// sourceReadSeeker opens the source as an io.ReadSeeker, from memory or
// from disk.
func sourceReadSeeker(src *ingest.Source) (io.ReadSeeker, func(), error) {
	if src.Data != nil {
		return bytes.NewReader(src.Data), func() {}, nil
	}
	if src.Path != "" {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", src.Path, err)
		}
		return f, func() { f.Close() }, nil
	}
	return nil, nil, fmt.Errorf("source %s has no local content", src.Identifier())
}

// extractPageText extracts text from a single PDF page content stream.
func extractPageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromContentStream parses PDF content stream operators for text.
func textFromContentStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		// Tj / TJ show-text operators.
		if bytes.HasSuffix(line, []byte("Tj")) || bytes.HasSuffix(line, []byte("TJ")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteString(text)
				}
			}
		}

		// ' operator: move to next line and show text.
		if bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteByte('\n')
					sb.WriteString(text)
				}
			}
		}

		// Positioning operators become separators.
		if bytes.HasSuffix(line, []byte("Td")) || bytes.HasSuffix(line, []byte("TD")) {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}
		if bytes.Equal(line, []byte("T*")) {
			sb.WriteByte('\n')
		}
	}

	return cleanPDFText(sb.String())
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\', '(', ')':
				sb.WriteByte(raw[i])
			default:
				// Octal escape (e.g. \040 for space).
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(raw[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(raw[i])
				}
			}
		} else {
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// cleanPDFText normalises whitespace in extracted PDF text.
func cleanPDFText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
