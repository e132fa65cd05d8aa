package imagefile

import (
	"errors"
	"testing"
)

var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01}
	pngHeader  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	webpHeader = []byte{'R', 'I', 'F', 'F', 0x24, 0x00, 0x00, 0x00, 'W', 'E', 'B', 'P', 'V', 'P', '8'}
	heicHeader = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c', 0x00}
	mif1Header = []byte{0x00, 0x00, 0x00, 0x1C, 'f', 't', 'y', 'p', 'm', 'i', 'f', '1'}
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"jpeg", jpegHeader, FormatJPEG},
		{"png", pngHeader, FormatPNG},
		{"webp", webpHeader, FormatWebP},
		{"heic", heicHeader, FormatHEIC},
		{"mif1", mif1Header, FormatHEIC},
		{"truncated jpeg", []byte{0xFF, 0xD8}, FormatUnknown},
		{"riff not webp", []byte("RIFF\x00\x00\x00\x00WAVE"), FormatUnknown},
		{"ftyp other brand", []byte("\x00\x00\x00\x18ftypmp42"), FormatUnknown},
		{"text", []byte("hello world, not an image"), FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		data       []byte
		wantReason Reason
		wantFormat Format
	}{
		{"empty", "a.jpg", nil, ReasonEmpty, ""},
		{"empty bad ext", "a.txt", []byte{}, ReasonEmpty, ""},
		{"bad ext with jpeg bytes", "a.gif", jpegHeader, ReasonInvalidExtension, ""},
		{"no ext", "README", pngHeader, ReasonInvalidExtension, ""},
		{"corrupt jpeg", "photo.jpg", []byte{0x00, 0xD8, 0xFF, 0xE0}, ReasonInvalidSignature, ""},
		{"upper case ext", "SCAN.JPEG", jpegHeader, "", FormatJPEG},
		{"png", "a.png", pngHeader, "", FormatPNG},
		{"mismatched ext still accepted", "a.png", jpegHeader, "", FormatJPEG},
		{"heif", "IMG_1.HEIF", heicHeader, "", FormatHEIC},
		{"webp", "x.webp", webpHeader, "", FormatWebP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Validate(tt.file, tt.data, "")
			if tt.wantReason != "" {
				var rej *Rejection
				if !errors.As(err, &rej) {
					t.Fatalf("Validate() error = %v, want *Rejection", err)
				}
				if rej.Reason != tt.wantReason {
					t.Errorf("reason = %s, want %s", rej.Reason, tt.wantReason)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if img.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", img.Format, tt.wantFormat)
			}
			if img.Name != tt.file {
				t.Errorf("name = %q, want %q", img.Name, tt.file)
			}
		})
	}
}

func TestImageMIMEType(t *testing.T) {
	img := Image{Format: FormatPNG, DeclaredMIME: "image/jpeg"}
	if got := img.MIMEType(); got != "image/png" {
		t.Errorf("MIMEType() = %q, want sniffed image/png", got)
	}
	img = Image{DeclaredMIME: "image/jpeg"}
	if got := img.MIMEType(); got != "image/jpeg" {
		t.Errorf("MIMEType() = %q, want declared image/jpeg", got)
	}
}

func TestTally(t *testing.T) {
	var tally Tally
	for _, r := range []Reason{ReasonInvalidExtension, ReasonInvalidSignature, ReasonInvalidExtension, ReasonEmpty} {
		tally.Add(&Rejection{Reason: r})
	}
	if tally.InvalidExtension != 2 || tally.InvalidSignature != 1 || tally.Empty != 1 {
		t.Errorf("tally = %+v", tally)
	}
	if tally.Total() != 4 {
		t.Errorf("Total() = %d, want 4", tally.Total())
	}
}
