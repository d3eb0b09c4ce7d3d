package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// XLSX extracts Excel workbooks: one markdown table per sheet, streamed
// through the excelize row reader.
type XLSX struct {
	// MaxRows caps rows rendered per sheet. 0 means no cap.
	MaxRows int
}

// NewXLSX creates the spreadsheet extractor.
func NewXLSX() *XLSX { return &XLSX{MaxRows: 10_000} }

func (x *XLSX) Supports(src *ingest.Source) bool { return !src.IsURL() }

func (x *XLSX) Extract(_ context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	rs, closeFn, err := sourceReadSeeker(src)
	if err != nil {
		return nil, ingest.Unreadable(err)
	}
	defer closeFn()

	wb, err := excelize.OpenReader(rs)
	if err != nil {
		return nil, ingest.Malformed(fmt.Errorf("open xlsx: %w", err))
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ingest.Malformed(fmt.Errorf("no sheets in workbook"))
	}

	result := &ingest.ExtractionResult{
		MediaType: mediatype.XLSX,
		SourceID:  src.Identifier(),
		Metadata:  map[string]any{"title": sheets[0], "sheet_count": len(sheets)},
	}

	var md strings.Builder
	for _, sheet := range sheets {
		table, truncated, err := x.sheetTable(wb, sheet)
		if err != nil {
			result.AddWarning("sheet %s unreadable: %v", sheet, err)
			continue
		}
		if table == "" {
			continue
		}
		if md.Len() > 0 {
			md.WriteString("\n\n")
		}
		fmt.Fprintf(&md, "## %s\n\n%s", sheet, table)
		if truncated {
			fmt.Fprintf(&md, "\n\n_(truncated at %d rows)_", x.MaxRows)
			result.AddWarning("sheet %s truncated at %d rows", sheet, x.MaxRows)
		}
	}

	if md.Len() == 0 {
		return nil, ingest.Malformed(fmt.Errorf("workbook has no cell content"))
	}

	result.Markdown = md.String()
	return result, nil
}

func (x *XLSX) sheetTable(wb *excelize.File, sheet string) (string, bool, error) {
	rows, err := wb.Rows(sheet)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	var md strings.Builder
	width := 0
	count := 0
	truncated := false

	for rows.Next() {
		if x.MaxRows > 0 && count >= x.MaxRows {
			truncated = true
			break
		}
		cells, err := rows.Columns()
		if err != nil {
			return "", false, err
		}
		if width == 0 {
			width = len(cells)
			if width == 0 {
				continue
			}
		}
		md.WriteString(markdownRow(cells, width))
		count++
		if count == 1 {
			md.WriteString(markdownSeparator(width))
		}
	}
	if count == 0 {
		return "", false, nil
	}
	return strings.TrimRight(md.String(), "\n"), truncated, nil
}

// markdownRow renders one table row padded or clipped to width cells.
func markdownRow(cells []string, width int) string {
	var sb strings.Builder
	sb.WriteByte('|')
	for i := 0; i < width; i++ {
		cell := ""
		if i < len(cells) {
			cell = strings.ReplaceAll(cells[i], "|", "\\|")
			cell = strings.ReplaceAll(cell, "\n", " ")
		}
		sb.WriteByte(' ')
		sb.WriteString(cell)
		sb.WriteString(" |")
	}
	sb.WriteByte('\n')
	return sb.String()
}

func markdownSeparator(width int) string {
	var sb strings.Builder
	sb.WriteByte('|')
	for i := 0; i < width; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteByte('\n')
	return sb.String()
}
