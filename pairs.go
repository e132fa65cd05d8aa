package ocrpdf

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/brunobiangulo/ocrpdf/imagefile"
	"github.com/brunobiangulo/ocrpdf/ocr"
	"github.com/brunobiangulo/ocrpdf/pdfgen"
	"github.com/brunobiangulo/ocrpdf/report"
)

// PairsFromOutcomes joins successful outcomes to their image bytes by file
// name, keeping outcome order. Failed outcomes are dropped. An outcome with
// no matching image gets a pair without image data.
func PairsFromOutcomes(outcomes []ocr.Outcome, images []imagefile.Image) []pdfgen.Pair {
	byName := make(map[string][]byte, len(images))
	for _, img := range images {
		if _, dup := byName[img.Name]; !dup {
			byName[img.Name] = img.Data
		}
	}

	var pairs []pdfgen.Pair
	for _, o := range outcomes {
		if !o.Success {
			continue
		}
		pairs = append(pairs, pdfgen.Pair{FileName: o.FileName, Text: o.Text, Image: byName[o.FileName]})
	}
	return pairs
}

// RowsFromOutcomes converts outcomes to workbook rows.
func RowsFromOutcomes(outcomes []ocr.Outcome) []report.Row {
	rows := make([]report.Row, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, report.Row{
			FileName:  o.FileName,
			Text:      o.Text,
			Success:   o.Success,
			ErrorType: string(o.ErrorKind),
			Error:     o.ErrorMessage,
		})
	}
	return rows
}

// DecodeDataURL decodes a "data:image/<type>;base64,<payload>" URL and
// returns the bytes and mime type. Anything else, including remote URLs,
// is ErrInvalidDataURL.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", fmt.Errorf("%w: not base64", ErrInvalidDataURL)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("%w: media type %q", ErrInvalidDataURL, mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	return data, mimeType, nil
}
