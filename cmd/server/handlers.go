package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/brunobiangulo/ocrpdf"
	"github.com/brunobiangulo/ocrpdf/classify"
	"github.com/brunobiangulo/ocrpdf/imagefile"
	"github.com/brunobiangulo/ocrpdf/ocr"
	"github.com/brunobiangulo/ocrpdf/pdfgen"
	"github.com/brunobiangulo/ocrpdf/report"
)

// multipartMemory is how much of a multipart body is held in memory before
// parts spill to disk.
const multipartMemory = 32 << 20

type handler struct {
	svc       ocrpdf.Service
	maxUpload int64
	now       func() time.Time
}

func newHandler(svc ocrpdf.Service, maxUpload int64) *handler {
	return &handler{svc: svc, maxUpload: maxUpload, now: time.Now}
}

type ocrResult struct {
	FileName  string        `json:"fileName"`
	Text      *string       `json:"text,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorType classify.Kind `json:"errorType,omitempty"`
	Success   bool          `json:"success"`
}

type ocrSummary struct {
	ocr.Summary
	imagefile.Tally
}

type rejectedFile struct {
	FileName string           `json:"fileName"`
	Reason   imagefile.Reason `json:"reason"`
}

type ocrResponse struct {
	Results  []ocrResult    `json:"results"`
	Summary  ocrSummary     `json:"summary"`
	Rejected []rejectedFile `json:"rejected,omitempty"`
}

// POST /ocr
// Accepts multipart "files" parts and runs OCR over the valid images.
func (h *handler) handleOCR(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		writeError(w, http.StatusBadRequest, "invalid content type: expected multipart/form-data")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	var (
		images   []imagefile.Image
		tally    imagefile.Tally
		rejected []rejectedFile
	)
	for _, part := range parts {
		img, err := readUpload(part)
		if err != nil {
			var rej *imagefile.Rejection
			if !errors.As(err, &rej) {
				writeError(w, http.StatusInternalServerError, "failed to read upload")
				slog.Error("reading upload", "file", part.Filename, "error", err)
				return
			}
			tally.Add(rej)
			rejected = append(rejected, rejectedFile{FileName: rej.Name, Reason: rej.Reason})
			slog.Info("upload rejected", "file", rej.Name, "reason", rej.Reason)
			continue
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "no valid image files",
			"summary":  ocrSummary{Tally: tally},
			"rejected": rejected,
		})
		return
	}

	outcomes, err := h.svc.ProcessImages(r.Context(), images)
	if err != nil {
		if !ocr.IsInterrupted(err) || outcomes == nil {
			writeError(w, http.StatusInternalServerError, "OCR processing failed")
			slog.Error("ocr batch error", "error", err)
			return
		}
		slog.Warn("ocr batch interrupted", "processed", len(outcomes), "error", err)
	}
	if o, ok := ocr.FirstCritical(outcomes); ok {
		slog.Warn("ocr batch hit critical error", "file", o.FileName, "kind", o.ErrorKind)
	}

	resp := ocrResponse{
		Results:  make([]ocrResult, 0, len(outcomes)),
		Summary:  ocrSummary{Summary: ocr.Summarize(outcomes), Tally: tally},
		Rejected: rejected,
	}
	for _, o := range outcomes {
		res := ocrResult{FileName: o.FileName, Success: o.Success}
		if o.Success {
			text := o.Text
			res.Text = &text
		} else {
			res.Error = o.ErrorMessage
			res.ErrorType = o.ErrorKind
			slog.Warn("ocr image failed", "file", o.FileName, "kind", o.ErrorKind, "error", o.Err)
		}
		resp.Results = append(resp.Results, res)
	}
	writeJSON(w, http.StatusOK, resp)
}

func readUpload(part *multipart.FileHeader) (imagefile.Image, error) {
	f, err := part.Open()
	if err != nil {
		return imagefile.Image{}, fmt.Errorf("opening part: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return imagefile.Image{}, fmt.Errorf("reading part: %w", err)
	}
	return imagefile.Validate(filepath.Base(part.Filename), data, part.Header.Get("Content-Type"))
}

type generateRequest struct {
	OCRResults []generateEntry `json:"ocrResults"`
}

type generateEntry struct {
	FileName  string `json:"fileName"`
	Text      string `json:"text"`
	Success   bool   `json:"success"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

func (h *handler) decodeGenerate(w http.ResponseWriter, r *http.Request) (*generateRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected JSON with 'ocrResults'")
		return nil, false
	}
	return &req, true
}

// POST /pdf/generate
// Renders the successful OCR results as a PDF, image left, text right.
func (h *handler) handleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGenerate(w, r)
	if !ok {
		return
	}

	var pairs []pdfgen.Pair
	for _, e := range req.OCRResults {
		if !e.Success {
			continue
		}
		pair := pdfgen.Pair{FileName: e.FileName, Text: e.Text}
		if e.ImageURL != "" {
			data, _, err := ocrpdf.DecodeDataURL(e.ImageURL)
			if err != nil {
				slog.Info("image url ignored", "file", e.FileName, "error", err)
			} else {
				pair.Image = data
			}
		}
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		writeError(w, http.StatusBadRequest, "no successful OCR results to render")
		return
	}

	res, err := h.svc.GeneratePDF(r.Context(), pairs)
	if err != nil {
		kind := classify.KindOf(err, classify.StagePDF)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":     classify.UserMessage(classify.StagePDF, kind),
			"errorType": kind,
		})
		slog.Error("pdf generation error", "kind", kind, "error", err)
		return
	}

	name := fmt.Sprintf("ocr_results_%d.pdf", h.now().UnixMilli())
	writeAttachment(w, "application/pdf", name, res.Data)
}

// POST /xlsx/generate
// Renders every OCR result, failed ones included, as a workbook.
func (h *handler) handleGenerateXLSX(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGenerate(w, r)
	if !ok {
		return
	}
	if len(req.OCRResults) == 0 {
		writeError(w, http.StatusBadRequest, "no OCR results to export")
		return
	}

	rows := make([]report.Row, 0, len(req.OCRResults))
	for _, e := range req.OCRResults {
		rows = append(rows, report.Row{
			FileName:  e.FileName,
			Text:      e.Text,
			Success:   e.Success,
			ErrorType: e.ErrorType,
			Error:     e.Error,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	data, err := h.svc.GenerateWorkbook(ctx, rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "workbook generation failed")
		slog.Error("xlsx generation error", "error", err)
		return
	}

	name := fmt.Sprintf("ocr_results_%d.xlsx", h.now().UnixMilli())
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", name, data)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeAttachment(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("writing attachment", "file", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
