package ocrpdf

import "errors"

var (
	// ErrNoImages is returned when a batch has no acceptable images.
	ErrNoImages = errors.New("ocrpdf: no images to process")

	// ErrNoResults is returned when there is no successful OCR result to
	// render.
	ErrNoResults = errors.New("ocrpdf: no successful OCR results")

	// ErrInvalidDataURL is returned for image URLs that are not base64 image
	// data URLs.
	ErrInvalidDataURL = errors.New("ocrpdf: invalid image data URL")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("ocrpdf: invalid configuration")
)
