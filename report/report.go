// Package report renders OCR results as a spreadsheet.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	ResultsSheet = "OCR Results"
	SummarySheet = "Summary"
)

// Row is one OCR result as it appears in the workbook.
type Row struct {
	FileName  string
	Text      string
	Success   bool
	ErrorType string
	Error     string
}

var header = []any{"File", "Status", "Error Type", "Text"}

// Workbook builds an xlsx file with one row per result plus a summary
// sheet holding the totals.
func Workbook(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return nil, fmt.Errorf("naming results sheet: %w", err)
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	succeeded := 0
	for i, r := range rows {
		status, text := "failed", r.Error
		if r.Success {
			status, text = "ok", r.Text
			succeeded++
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{r.FileName, status, r.ErrorType, text}
		if err := f.SetSheetRow(ResultsSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetRowStyle(ResultsSheet, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(ResultsSheet, "A", "A", 30); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(ResultsSheet, "D", "D", 80); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("creating summary sheet: %w", err)
	}
	summary := [][]any{
		{"Total processed", len(rows)},
		{"Succeeded", succeeded},
		{"Failed", len(rows) - succeeded},
	}
	for i, values := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return nil, fmt.Errorf("writing summary: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
