package pdfgen

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/webp"
)

// Pair is one page's worth of input: an OCR result and, when it could be
// matched, the original image bytes.
type Pair struct {
	FileName string
	Text     string
	Image    []byte
}

// RenderPage draws pair onto doc. Unless isFirstPage, a new page is started
// first. A missing image is replaced by a placeholder and is not an error.
// An image that cannot be embedded is also replaced by a placeholder, and
// the embedding error is returned so the caller can report it; the page is
// complete either way.
func RenderPage(doc *Document, pair Pair, isFirstPage bool) error {
	if !isFirstPage {
		doc.newPage()
	}
	l := doc.layout

	var embedErr error
	if len(pair.Image) == 0 {
		doc.placeholder(l.Image, CaptionNoImage)
	} else if embedErr = doc.embedImage(pair.Image, l.Image); embedErr != nil {
		doc.placeholder(l.Image, CaptionImageFailed)
	}

	doc.divider(l.DividerX, l.Text.Y, l.Text.Y+l.Text.H)
	doc.drawText(pair.FileName, pair.Text, l.Text)

	return embedErr
}

// embedImage decodes data and places it fitted into box. Decoding happens
// up front so a corrupt image never leaves the fpdf builder in an error
// state.
func (d *Document) embedImage(data []byte, box Rect) error {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	payload, imageType := data, "JPG"
	if format != "jpeg" {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("re-encoding %s image: %w", format, err)
		}
		payload, imageType = buf.Bytes(), "PNG"
	}

	d.images++
	name := fmt.Sprintf("page-image-%d", d.images)
	opts := fpdf.ImageOptions{ImageType: imageType}
	info := d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(payload))
	if d.pdf.Err() {
		err := d.pdf.Error()
		d.pdf.ClearError()
		return fmt.Errorf("embedding image: %w", err)
	}
	if info == nil {
		return fmt.Errorf("embedding image: no image info")
	}

	b := img.Bounds()
	fit := Fit(float64(b.Dx()), float64(b.Dy()), box)
	d.pdf.ImageOptions(name, fit.X, fit.Y, fit.W, fit.H, false, opts, 0, "")
	if d.pdf.Err() {
		err := d.pdf.Error()
		d.pdf.ClearError()
		return fmt.Errorf("placing image: %w", err)
	}
	return nil
}

// drawText writes the title and the wrapped body into box, cutting the body
// at the bottom margin so one pair never spills onto a second page.
func (d *Document) drawText(title, body string, box Rect) {
	d.pdf.SetTextColor(0, 0, 0)

	d.pdf.SetFont("Helvetica", "B", titleFontSize)
	y := box.Y + lineHeight
	for _, line := range wrapText(d.measure, title, box.W) {
		d.text(box.X, y, line)
		y += lineHeight + 1
	}
	y += titleGap

	if strings.TrimSpace(body) == "" {
		body = FallbackNoText
	}
	d.pdf.SetFont("Helvetica", "", bodyFontSize)
	lines := wrapText(d.measure, body, box.W)

	bottom := box.Y + box.H
	for i, line := range lines {
		if y+lineHeight > bottom && i < len(lines)-1 {
			d.pdf.SetFont("Helvetica", "I", bodyFontSize)
			d.text(box.X, y, MarkerTruncated)
			return
		}
		d.text(box.X, y, line)
		y += lineHeight
	}
}
