package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mdforge/ingestor/ingest"
)

// buildWorkbook assembles an in-memory xlsx with the given sheets, each
// a row-major cell grid.
func buildWorkbook(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	wb := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			if err := wb.SetSheetName("Sheet1", name); err != nil {
				t.Fatal(err)
			}
			first = false
		} else {
			if _, err := wb.NewSheet(name); err != nil {
				t.Fatal(err)
			}
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := wb.SetSheetRow(name, cell, &row); err != nil {
				t.Fatal(err)
			}
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestXLSXExtract(t *testing.T) {
	// WHAT: a single-sheet workbook becomes a markdown table with a
	// header separator after the first row.
	data := buildWorkbook(t, map[string][][]string{
		"Budget": {
			{"Item", "Cost"},
			{"Server", "120"},
			{"Disk | RAID", "80"},
		},
	})

	res, err := NewXLSX().Extract(context.Background(), ingest.FromBytes("budget.xlsx", data))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, want := range []string{
		"## Budget",
		"| Item | Cost |",
		"| --- | --- |",
		"| Server | 120 |",
		"| Disk \\| RAID | 80 |",
	} {
		if !strings.Contains(res.Markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, res.Markdown)
		}
	}
	if res.Metadata["title"] != "Budget" {
		t.Errorf("title = %v", res.Metadata["title"])
	}
	if res.Metadata["sheet_count"] != 1 {
		t.Errorf("sheet_count = %v", res.Metadata["sheet_count"])
	}
}

func TestXLSXRowCap(t *testing.T) {
	// WHAT: sheets longer than MaxRows are clipped with a trailing note
	// and a warning. WHY: a million-row export must not balloon the
	// markdown output.
	rows := [][]string{{"n"}}
	for i := 0; i < 10; i++ {
		rows = append(rows, []string{fmt.Sprintf("%d", i)})
	}
	data := buildWorkbook(t, map[string][][]string{"Data": rows})

	x := NewXLSX()
	x.MaxRows = 4
	res, err := x.Extract(context.Background(), ingest.FromBytes("data.xlsx", data))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Markdown, "_(truncated at 4 rows)_") {
		t.Errorf("missing truncation note:\n%s", res.Markdown)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if strings.Contains(res.Markdown, "| 9 |") {
		t.Error("row past the cap rendered")
	}
}

func TestXLSXEmptyWorkbook(t *testing.T) {
	data := buildWorkbook(t, map[string][][]string{"Blank": {}})
	_, err := NewXLSX().Extract(context.Background(), ingest.FromBytes("blank.xlsx", data))
	if !errors.Is(err, ingest.ErrUnsupportedContent) {
		t.Errorf("empty workbook error = %v", err)
	}
}

func TestXLSXNotAWorkbook(t *testing.T) {
	_, err := NewXLSX().Extract(context.Background(), ingest.FromBytes("fake.xlsx", []byte("plain text")))
	if !errors.Is(err, ingest.ErrUnsupportedContent) {
		t.Errorf("garbage input error = %v", err)
	}
}
