package extractor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mdforge/ingestor/ingest"
)

func TestPDFSupports(t *testing.T) {
	p := NewPDF()
	if !p.Supports(ingest.FromBytes("a.pdf", []byte("%PDF-1.7 rest"))) {
		t.Error("declined a PDF payload")
	}
	if p.Supports(ingest.FromBytes("a.pdf", []byte("PK\x03\x04"))) {
		t.Error("accepted a zip payload named .pdf")
	}
}

func TestPDFExtractText(t *testing.T) {
	// WHAT: a minimal single-page PDF yields its text, a title, and
	// quality metadata.
	src := ingest.FromBytes("hello.pdf", buildTextPDF(t, "Hello World from the test suite"))

	result, err := NewPDF().Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(result.Markdown, "Hello World") {
		t.Errorf("markdown = %q", result.Markdown)
	}
	if result.Metadata["page_count"] != 1 {
		t.Errorf("page_count = %v", result.Metadata["page_count"])
	}
	if _, ok := result.Metadata["quality"].(pdfQuality); !ok {
		t.Error("quality metrics missing")
	}
}

func TestPDFMalformed(t *testing.T) {
	src := ingest.FromBytes("broken.pdf", []byte("%PDF-1.4\nnot really a pdf"))
	if _, err := NewPDF().Extract(context.Background(), src); err == nil {
		t.Fatal("malformed PDF did not error")
	}
}

func TestTextFromContentStream(t *testing.T) {
	// WHAT: the content-stream scanner handles Tj, TJ arrays, octal
	// escapes, and positioning separators.
	stream := []byte("BT\n/F1 12 Tf\n72 720 Td\n(First) Tj\n0 -14 Td\n[(Sec) (ond)] TJ\n(esc\\050aped\\051) Tj\nET")
	got := textFromContentStream(stream)
	for _, want := range []string{"First", "Second", "esc(aped)"} {
		if !strings.Contains(got, want) {
			t.Errorf("text %q missing %q", got, want)
		}
	}
}

func TestDecodePDFString(t *testing.T) {
	cases := map[string]string{
		`plain`:         "plain",
		`a\tb`:          "a\tb",
		`par\(en\)`:     "par(en)",
		`oct\040space`:  "oct space",
		`back\\slash`:   `back\slash`,
	}
	for in, want := range cases {
		if got := decodePDFString([]byte(in)); got != want {
			t.Errorf("decodePDFString(%q) = %q, want %q", in, got, want)
		}
	}
}

// buildTextPDF assembles a minimal valid PDF containing one page of text.
func buildTextPDF(t *testing.T, text string) []byte {
	t.Helper()
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"

	var b strings.Builder
	offsets := make([]int, 6)
	b.WriteString("%PDF-1.4\n")

	write := func(i int, s string) {
		offsets[i] = b.Len()
		b.WriteString(s)
	}
	write(1, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	write(2, "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	write(3, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	write(4, fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream))
	write(5, "5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	return []byte(b.String())
}
