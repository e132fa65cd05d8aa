package pdfgen

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/ocrpdf/classify"
)

// Logger is the logging capability used by the assembler. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Result describes a generated document.
type Result struct {
	Data        []byte
	Pages       int
	ImageErrors []string
}

// Assembler builds one PDF from a list of pairs.
type Assembler struct {
	Title string
	Log   Logger
	Now   func() time.Time
}

// NewAssembler returns an Assembler that logs to log.
func NewAssembler(log Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{Title: "OCR Results", Log: log, Now: time.Now}
}

// Build renders pairs in order and returns the serialised PDF. See Assemble.
func Build(pairs []Pair) ([]byte, error) {
	res, err := NewAssembler(nil).Assemble(pairs)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Assemble renders one page per pair, in the given order; callers pass only
// successful OCR results. A pair whose image cannot be embedded still gets
// its page (with a placeholder) and adds an entry to ImageErrors; if there
// are any, a summary page is appended. Document-level failures are
// returned as *classify.Error with KindPDFGenerationError.
func (a *Assembler) Assemble(pairs []Pair) (*Result, error) {
	if len(pairs) == 0 {
		return nil, classify.NewError(classify.StagePDF, classify.KindPDFGenerationError, "no pairs", nil)
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	log := a.Log
	if log == nil {
		log = slog.Default()
	}

	doc := NewDocument(a.Title, now())
	var imageErrors []string
	for i, pair := range pairs {
		if err := RenderPage(doc, pair, i == 0); err != nil {
			msg := fmt.Sprintf("Failed to add image %s: %v", pair.FileName, err)
			imageErrors = append(imageErrors, msg)
			log.Warn("pdf image embed failed",
				"file", pair.FileName,
				"kind", classify.KindOf(err, classify.StagePDF),
				"error", err,
			)
		}
	}

	if len(imageErrors) > 0 {
		renderSummary(doc, len(pairs), imageErrors)
	}

	data, err := doc.Bytes()
	if err != nil {
		return nil, classify.NewError(classify.StagePDF, classify.KindPDFGenerationError, "serializing pdf", err)
	}

	res := &Result{Data: data, Pages: doc.PageCount(), ImageErrors: imageErrors}
	log.Info("pdf generated",
		"pairs", len(pairs),
		"pages", res.Pages,
		"image_errors", len(imageErrors),
		"bytes", len(data),
	)
	return res, nil
}

// renderSummary appends one page listing the image errors, one per line.
// Lines that would run off the page are collapsed into a final count.
func renderSummary(doc *Document, total int, errs []string) {
	doc.newPage()
	pdf := doc.pdf
	left := Margin
	width := PageWidth - 2*Margin
	bottom := PageHeight - Margin

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", titleFontSize+2)
	y := Margin + lineHeight
	doc.text(left, y, SummaryTitle)
	y += lineHeight + titleGap

	pdf.SetFont("Helvetica", "", bodyFontSize)
	for _, line := range []string{
		fmt.Sprintf("Total images: %d", total),
		fmt.Sprintf("Pages with images: %d", total-len(errs)),
		fmt.Sprintf("Pages with image errors: %d", len(errs)),
	} {
		doc.text(left, y, line)
		y += lineHeight
	}
	y += titleGap

	pdf.SetFont("Helvetica", "B", bodyFontSize)
	doc.text(left, y, "Errors:")
	y += lineHeight

	pdf.SetFont("Helvetica", "", bodyFontSize-1)
	for i, e := range errs {
		if y+2*lineHeight > bottom && i < len(errs)-1 {
			doc.text(left, y, fmt.Sprintf("... and %d more", len(errs)-i))
			return
		}
		doc.text(left, y, fitLine(doc.measure, e, width))
		y += lineHeight
	}
}
