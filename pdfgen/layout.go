// Package pdfgen composes OCR results into a paginated PDF: the image on
// the left, the extracted text on the right, one result per page.
package pdfgen

// Page geometry in millimetres (A4 portrait).
const (
	PageWidth  = 210.0
	PageHeight = 297.0
	Margin     = 15.0
)

// Fixed captions and fallbacks.
const (
	CaptionImageFailed = "[ Image could not be displayed ]"
	CaptionNoImage     = "[ No image data available ]"
	FallbackNoText     = "No text could be extracted from this image."
	MarkerTruncated    = "[ Text truncated ]"
	SummaryTitle       = "Processing Summary"
)

const (
	titleFontSize = 14.0
	bodyFontSize  = 11.0
	lineHeight    = 5.5
	titleGap      = 4.0
)

// Rect is an axis-aligned box with its origin at the top-left corner.
type Rect struct {
	X, Y, W, H float64
}

// Layout holds the derived regions of a content page.
type Layout struct {
	Image    Rect
	DividerX float64
	Text     Rect
}

// ComputeLayout derives the regions for a page of w×h with margin m:
// usable U = w-2m, V = h-2m; image 0.45U×0.8V at (m, m); divider at
// m+0.475U; text from m+0.5U, 0.5U wide.
func ComputeLayout(w, h, m float64) Layout {
	u := w - 2*m
	v := h - 2*m
	return Layout{
		Image:    Rect{X: m, Y: m, W: 0.45 * u, H: 0.8 * v},
		DividerX: m + 0.45*u + 0.025*u,
		Text:     Rect{X: m + 0.45*u + 0.05*u, Y: m, W: 0.5 * u, H: v},
	}
}

// Fit scales an srcW×srcH image into box, preserving aspect ratio and
// anchoring it at the box's top-left corner.
func Fit(srcW, srcH float64, box Rect) Rect {
	if srcW <= 0 || srcH <= 0 {
		return Rect{X: box.X, Y: box.Y}
	}
	scale := box.W / srcW
	if s := box.H / srcH; s < scale {
		scale = s
	}
	return Rect{X: box.X, Y: box.Y, W: srcW * scale, H: srcH * scale}
}
