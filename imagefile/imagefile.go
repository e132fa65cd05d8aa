// Package imagefile decides whether an uploaded file is a supported image by
// checking its extension and its leading bytes.
package imagefile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a sniffed image container format.
type Format string

const (
	FormatUnknown Format = ""
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatHEIC    Format = "heic"
)

// MIMEType returns the mime type sent to the OCR service for f.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatHEIC:
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

// Image is an accepted upload. It is read-only once built.
type Image struct {
	Name         string
	Data         []byte
	DeclaredMIME string
	Format       Format
}

// MIMEType prefers the sniffed format over whatever the client declared.
func (img Image) MIMEType() string {
	if img.Format != FormatUnknown {
		return img.Format.MIMEType()
	}
	if img.DeclaredMIME != "" {
		return img.DeclaredMIME
	}
	return FormatUnknown.MIMEType()
}

// Reason says why a file was rejected.
type Reason string

const (
	ReasonEmpty            Reason = "EmptyFile"
	ReasonInvalidExtension Reason = "InvalidExtension"
	ReasonInvalidSignature Reason = "InvalidSignature"
)

// Rejection is returned by Validate for files that are not accepted.
type Rejection struct {
	Name   string
	Reason Reason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("imagefile: %s rejected: %s", r.Name, r.Reason)
}

var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"heic": true,
	"heif": true,
}

// HasAllowedExtension reports whether name ends in a supported extension.
func HasAllowedExtension(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return allowedExtensions[ext]
}

// Validate classifies a candidate file. On rejection the error is a
// *Rejection.
func Validate(name string, data []byte, declaredMIME string) (Image, error) {
	if len(data) == 0 {
		return Image{}, &Rejection{Name: name, Reason: ReasonEmpty}
	}
	if !HasAllowedExtension(name) {
		return Image{}, &Rejection{Name: name, Reason: ReasonInvalidExtension}
	}
	f := Sniff(data)
	if f == FormatUnknown {
		return Image{}, &Rejection{Name: name, Reason: ReasonInvalidSignature}
	}
	return Image{
		Name:         name,
		Data:         data,
		DeclaredMIME: declaredMIME,
		Format:       f,
	}, nil
}

var (
	sigJPEG = []byte{0xFF, 0xD8, 0xFF}
	sigPNG  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	sigRIFF = []byte("RIFF")
	sigWEBP = []byte("WEBP")
	sigFTYP = []byte("ftyp")

	heifBrands = [][]byte{[]byte("heic"), []byte("heif"), []byte("mif1")}
)

// Sniff inspects the first 12 bytes of data.
func Sniff(data []byte) Format {
	if len(data) > 12 {
		data = data[:12]
	}
	switch {
	case bytes.HasPrefix(data, sigJPEG):
		return FormatJPEG
	case bytes.HasPrefix(data, sigPNG):
		return FormatPNG
	case len(data) >= 12 && bytes.Equal(data[0:4], sigRIFF) && bytes.Equal(data[8:12], sigWEBP):
		return FormatWebP
	case len(data) >= 12 && bytes.Equal(data[4:8], sigFTYP):
		for _, brand := range heifBrands {
			if bytes.Equal(data[8:12], brand) {
				return FormatHEIC
			}
		}
	}
	return FormatUnknown
}

// Tally counts rejections by reason.
type Tally struct {
	Empty            int `json:"rejectedEmpty"`
	InvalidExtension int `json:"rejectedExtension"`
	InvalidSignature int `json:"rejectedSignature"`
}

// Add records one rejection.
func (t *Tally) Add(r *Rejection) {
	switch r.Reason {
	case ReasonEmpty:
		t.Empty++
	case ReasonInvalidExtension:
		t.InvalidExtension++
	case ReasonInvalidSignature:
		t.InvalidSignature++
	}
}

// Total is the number of rejected files.
func (t Tally) Total() int {
	return t.Empty + t.InvalidExtension + t.InvalidSignature
}
