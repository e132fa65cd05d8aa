package pdfgen

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// Document is a PDF under construction. It starts with one empty page, so
// the first rendered page never needs a page break.
type Document struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	layout Layout
	images int
}

// NewDocument returns a Document with its first page added.
func NewDocument(title string, created time.Time) *Document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(Margin, Margin, Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("ocrpdf", false)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	if !created.IsZero() {
		pdf.SetCreationDate(created)
	}
	pdf.AddPage()

	w, h := pdf.GetPageSize()
	return &Document{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		layout: ComputeLayout(w, h, Margin),
	}
}

// PageCount returns the number of pages added so far.
func (d *Document) PageCount() int {
	return d.pdf.PageCount()
}

// Bytes serialises the document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("serializing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) newPage() {
	d.pdf.AddPage()
}

// measure returns the width of s in the current font, after converting it
// to the core fonts' code page.
func (d *Document) measure(s string) float64 {
	return d.pdf.GetStringWidth(d.tr(s))
}

func (d *Document) text(x, y float64, s string) {
	d.pdf.Text(x, y, d.tr(s))
}

func (d *Document) placeholder(box Rect, caption string) {
	d.pdf.SetFillColor(230, 230, 230)
	d.pdf.SetDrawColor(200, 200, 200)
	d.pdf.Rect(box.X, box.Y, box.W, box.H, "FD")

	d.pdf.SetFont("Helvetica", "I", bodyFontSize)
	d.pdf.SetTextColor(110, 110, 110)
	d.pdf.SetXY(box.X, box.Y)
	d.pdf.CellFormat(box.W, box.H, d.tr(caption), "", 0, "CM", false, 0, "")
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *Document) divider(x, top, bottom float64) {
	d.pdf.SetDrawColor(180, 180, 180)
	d.pdf.SetLineWidth(0.3)
	d.pdf.Line(x, top, x, bottom)
}
