package report

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWorkbook(t *testing.T) {
	rows := []Row{
		{FileName: "a.png", Text: "hello", Success: true},
		{FileName: "b.png", Success: false, ErrorType: "RATE_LIMIT_EXCEEDED", Error: "Rate limit exceeded. Please try again later."},
	}
	data, err := Workbook(rows)
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != ResultsSheet || sheets[1] != SummarySheet {
		t.Fatalf("sheets = %v", sheets)
	}

	got, err := f.GetRows(ResultsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3", len(got))
	}
	if got[0][0] != "File" || got[0][3] != "Text" {
		t.Errorf("header = %v", got[0])
	}
	if got[1][0] != "a.png" || got[1][1] != "ok" || got[1][3] != "hello" {
		t.Errorf("row 2 = %v", got[1])
	}
	if got[2][1] != "failed" || got[2][2] != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("row 3 = %v", got[2])
	}

	for cell, want := range map[string]string{"B1": "2", "B2": "1", "B3": "1"} {
		v, err := f.GetCellValue(SummarySheet, cell)
		if err != nil {
			t.Fatal(err)
		}
		if v != want {
			t.Errorf("summary %s = %q, want %q", cell, v, want)
		}
	}
}

func TestWorkbookEmpty(t *testing.T) {
	data, err := Workbook(nil)
	if err != nil {
		t.Fatalf("Workbook(nil): %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(ResultsSheet)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
