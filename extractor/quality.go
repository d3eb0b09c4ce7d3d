package extractor

import (
	"regexp"
	"strings"
	"unicode"
)

// pdfQuality captures metrics about PDF text extraction quality.
type pdfQuality struct {
	PageCount      int     `json:"page_count"`
	CharsPerPage   float64 `json:"chars_per_page"`
	PrintableRatio float64 `json:"printable_ratio"`
	WordlikeRatio  float64 `json:"wordlike_ratio"`
	HasImages      bool    `json:"has_images"`
	VisualRefCount int     `json:"visual_ref_count"`
}

// NeedsOCR reports whether the PDF likely needs OCR to yield its text.
func (q pdfQuality) NeedsOCR() bool {
	return (q.CharsPerPage < 50 && q.HasImages) || q.PrintableRatio < 0.85
}

// HasVisualGap reports whether the text references figures or tables
// while the PDF carries image streams.
func (q pdfQuality) HasVisualGap() bool {
	return q.VisualRefCount > 0 && q.HasImages
}

// printableRatio returns the ratio of printable characters in text.
// Excludes PUA U+E000-U+F8FF, control chars < U+0020 (except \n\r\t),
// and U+FFFD, all of which indicate broken font-to-unicode mapping.
func printableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == 0xFFFD {
		return true
	}
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the ratio of word-like tokens (length 2-15) to
// total tokens.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

var visualRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(see|cf\.?|refer\s+to)\s+(figure|fig\.?|table|schema|image|illustration|graph|diagram)\s*\d`),
	regexp.MustCompile(`(?i)(figure|fig\.?|table)\s+\d+`),
}

// countVisualRefs counts references to figures, tables, and diagrams.
func countVisualRefs(text string) int {
	count := 0
	for _, pat := range visualRefPatterns {
		count += len(pat.FindAllString(text, -1))
	}
	return count
}
