package pdfgen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Info is what Inspect reads back from a generated PDF.
type Info struct {
	Pages int
	Text  []string // plain text per page, 0-indexed
}

// Inspect parses data and extracts each page's plain text.
func Inspect(data []byte) (*Info, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	info := &Info{Pages: reader.NumPage()}
	for i := 1; i <= info.Pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			info.Text = append(info.Text, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting text from page %d: %w", i, err)
		}
		info.Text = append(info.Text, strings.TrimSpace(text))
	}
	return info, nil
}

// PageContains reports whether page i (0-indexed) contains s.
func (info *Info) PageContains(i int, s string) bool {
	if i < 0 || i >= len(info.Text) {
		return false
	}
	return strings.Contains(info.Text[i], s)
}
