package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brunobiangulo/ocrpdf"
	"github.com/brunobiangulo/ocrpdf/llm"
	"github.com/brunobiangulo/ocrpdf/pdfgen"
)

type stubProvider struct {
	texts []string
	errs  []error
	calls int
}

func (s *stubProvider) ChatWithImages(ctx context.Context, req llm.VisionChatRequest) (*llm.ChatResponse, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	text := ""
	if i < len(s.texts) {
		text = s.texts[i]
	}
	return &llm.ChatResponse{Content: text}, nil
}

func newTestServer(t *testing.T, p llm.VisionProvider, mutate func(*ocrpdf.Config)) http.Handler {
	t.Helper()
	cfg := ocrpdf.DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.MinOrphanAgeSeconds = 0
	if mutate != nil {
		mutate(&cfg)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := ocrpdf.New(cfg, ocrpdf.WithProvider(p), ocrpdf.WithLogger(log))
	if err != nil {
		t.Fatalf("ocrpdf.New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return newServer(svc, cfg)
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 6, 6))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type upload struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/ocr", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeOCR(t *testing.T, rec *httptest.ResponseRecorder) ocrResponse {
	t.Helper()
	var resp ocrResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestOCRRejectsNonMultipart(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/ocr", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOCRNoFiles(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOCRSuccess(t *testing.T) {
	p := &stubProvider{texts: []string{"first", ""}}
	srv := newTestServer(t, p, nil)
	img := pngFile(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, upload{"a.png", img}, upload{"b.png", img}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeOCR(t, rec)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if r := resp.Results[0]; r.FileName != "a.png" || !r.Success || r.Text == nil || *r.Text != "first" {
		t.Errorf("results[0] = %+v", r)
	}
	// No text found is still a success with an empty text field.
	if r := resp.Results[1]; !r.Success || r.Text == nil || *r.Text != "" {
		t.Errorf("results[1] = %+v", r)
	}
	if s := resp.Summary; s.TotalProcessed != 2 || s.SuccessCount != 2 || s.FailureCount != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestOCRStopsAfterFailure(t *testing.T) {
	p := &stubProvider{
		texts: []string{"one"},
		errs:  []error{nil, &llm.APIError{StatusCode: 429, Message: "RESOURCE_EXHAUSTED: quota exceeded"}},
	}
	srv := newTestServer(t, p, nil)
	img := pngFile(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, upload{"ok1.png", img}, upload{"bad.png", img}, upload{"third.png", img}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	resp := decodeOCR(t, rec)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2 (third image not attempted)", len(resp.Results))
	}
	bad := resp.Results[1]
	if bad.Success || bad.ErrorType != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("results[1] = %+v", bad)
	}
	if strings.Contains(bad.Error, "RESOURCE_EXHAUSTED") {
		t.Errorf("raw provider message leaked to client: %q", bad.Error)
	}
	if resp.Summary.FailureCount != 1 || resp.Summary.SuccessCount != 1 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
}

func TestOCRCountsRejectedUploads(t *testing.T) {
	p := &stubProvider{texts: []string{"x"}}
	srv := newTestServer(t, p, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t,
		upload{"good.png", pngFile(t)},
		upload{"notes.txt", []byte("hello")},
		upload{"fake.png", []byte("this is not a png header")},
		upload{"empty.jpg", nil},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeOCR(t, rec)
	if len(resp.Results) != 1 || len(resp.Rejected) != 3 {
		t.Fatalf("results = %d rejected = %d", len(resp.Results), len(resp.Rejected))
	}
	s := resp.Summary
	if s.InvalidExtension != 1 || s.InvalidSignature != 1 || s.Empty != 1 {
		t.Errorf("rejection counts = %+v", s.Tally)
	}
}

func TestOCRAllRejected(t *testing.T) {
	p := &stubProvider{}
	srv := newTestServer(t, p, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, upload{"notes.txt", []byte("hello")}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times for rejected uploads", p.calls)
	}
}

func TestOCRRequestTooLarge(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, func(c *ocrpdf.Config) { c.MaxUploadBytes = 64 })

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, upload{"big.png", bytes.Repeat([]byte{0x89}, 4096)}))
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 413 or 400", rec.Code)
	}
}

func generateRequestBody(t *testing.T, entries ...generateEntry) io.Reader {
	t.Helper()
	data, err := json.Marshal(generateRequest{OCRResults: entries})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}

func TestGeneratePDF(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, nil)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngFile(t))

	body := generateRequestBody(t,
		generateEntry{FileName: "a.png", Text: "alpha", Success: true, ImageURL: dataURL},
		generateEntry{FileName: "skip.png", Success: false, Error: "failed"},
		generateEntry{FileName: "b.png", Text: "beta", Success: true},
	)
	req := httptest.NewRequest(http.MethodPost, "/pdf/generate", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="ocr_results_`) || !strings.HasSuffix(cd, `.pdf"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	info, err := pdfgen.Inspect(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Pages != 2 {
		t.Fatalf("pages = %d, want 2", info.Pages)
	}
	if !info.PageContains(1, pdfgen.CaptionNoImage) {
		t.Errorf("page 2 should show the no-image placeholder: %q", info.Text[1])
	}
}

func TestGeneratePDFMalformedImageURL(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, nil)
	body := generateRequestBody(t, generateEntry{FileName: "a.png", Text: "alpha", Success: true, ImageURL: "https://example.com/a.png"})
	req := httptest.NewRequest(http.MethodPost, "/pdf/generate", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	info, err := pdfgen.Inspect(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !info.PageContains(0, pdfgen.CaptionNoImage) {
		t.Errorf("missing no-image placeholder: %q", info.Text[0])
	}
}

func TestGeneratePDFNoResults(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, nil)
	for name, body := range map[string]io.Reader{
		"empty":        generateRequestBody(t),
		"no success":   generateRequestBody(t, generateEntry{FileName: "a.png", Success: false}),
		"invalid json": strings.NewReader("{"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pdf/generate", body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGenerateXLSX(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, nil)
	body := generateRequestBody(t,
		generateEntry{FileName: "a.png", Text: "alpha", Success: true},
		generateEntry{FileName: "b.png", Success: false, ErrorType: "PROCESSING_ERROR", Error: "failed"},
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/xlsx/generate", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasSuffix(cd, `.xlsx"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("body is not an xlsx archive")
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, func(c *ocrpdf.Config) { c.APIKey = "secret" })

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pdf/generate", strings.NewReader("{}")))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/pdf/generate", generateRequestBody(t))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("authenticated status = %d, want 400 for empty results", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, func(c *ocrpdf.Config) { c.CORSOrigins = "https://app.example, https://other.example" })

	req := httptest.NewRequest(http.MethodOptions, "/ocr", nil)
	req.Header.Set("Origin", "https://other.example")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://other.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unknown origin = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
