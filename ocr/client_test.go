package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brunobiangulo/ocrpdf/classify"
	"github.com/brunobiangulo/ocrpdf/llm"
)

type fakeProvider struct {
	resp *llm.ChatResponse
	err  error
	last llm.VisionChatRequest
}

func (f *fakeProvider) ChatWithImages(ctx context.Context, req llm.VisionChatRequest) (*llm.ChatResponse, error) {
	f.last = req
	return f.resp, f.err
}

func TestExtractText(t *testing.T) {
	p := &fakeProvider{resp: &llm.ChatResponse{Content: "  Invoice #42\nTotal: 10  "}}
	c := NewClient(p, "", quietLogger())

	text, err := c.ExtractText(context.Background(), []byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "  Invoice #42\nTotal: 10  " {
		t.Errorf("text altered: %q", text)
	}

	parts := p.last.Messages[0].Content
	if len(parts) != 2 || parts[0].Text != DefaultPrompt {
		t.Fatalf("request parts = %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image url = %q", parts[1].ImageURL.URL)
	}
}

func TestExtractTextCustomPrompt(t *testing.T) {
	p := &fakeProvider{resp: &llm.ChatResponse{}}
	c := NewClient(p, "read it", quietLogger())
	text, err := c.ExtractText(context.Background(), []byte("x"), "image/png")
	if err != nil || text != "" {
		t.Fatalf("ExtractText() = %q, %v", text, err)
	}
	if p.last.Messages[0].Content[0].Text != "read it" {
		t.Errorf("prompt = %q", p.last.Messages[0].Content[0].Text)
	}
}

func TestExtractTextClassifiesFailure(t *testing.T) {
	tests := []struct {
		raw  error
		want classify.Kind
	}{
		{&llm.APIError{StatusCode: 400, Message: "INVALID_ARGUMENT: API key not valid"}, classify.KindInvalidAPIKey},
		{&llm.APIError{StatusCode: 429, Message: "RESOURCE_EXHAUSTED: check quota"}, classify.KindRateLimitExceeded},
		{errors.New("unsupported image format"), classify.KindUnsupportedImageFormat},
		{errors.New("connection refused"), classify.KindProcessingError},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			c := NewClient(&fakeProvider{err: tt.raw}, "", quietLogger())
			_, err := c.ExtractText(context.Background(), []byte("x"), "image/png")

			var ce *classify.Error
			if !errors.As(err, &ce) {
				t.Fatalf("error = %v, want *classify.Error", err)
			}
			if ce.Kind != tt.want || ce.Stage != classify.StageOCR {
				t.Errorf("kind = %s stage = %s, want %s", ce.Kind, ce.Stage, tt.want)
			}
			if !errors.Is(err, tt.raw) {
				t.Error("raw error not wrapped")
			}
		})
	}
}
