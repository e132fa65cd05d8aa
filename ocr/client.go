// Package ocr extracts text from images through a vision model and drives
// batches of images through that extraction one at a time.
package ocr

import (
	"context"
	"log/slog"

	"github.com/brunobiangulo/ocrpdf/classify"
	"github.com/brunobiangulo/ocrpdf/llm"
)

// DefaultPrompt is the fixed instruction sent with every image.
const DefaultPrompt = `Extract all text visible in this image.
- Return only the extracted text, with no commentary or formatting.
- Preserve line breaks and reading order.
- If the image contains no text, return an empty response.`

// Logger is the logging capability used by this package. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Client wraps a single OCR call for one image.
type Client struct {
	provider   llm.VisionProvider
	prompt     string
	classifier classify.Classifier
	log        Logger
}

// NewClient returns a Client. An empty prompt means DefaultPrompt.
func NewClient(provider llm.VisionProvider, prompt string, log Logger) *Client {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		provider:   provider,
		prompt:     prompt,
		classifier: classify.Default,
		log:        log,
	}
}

// ExtractText sends one image and returns the text as the model produced
// it. An empty string is a successful "no text found". Failures are
// returned as *classify.Error carrying an OCR-stage kind.
func (c *Client) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	resp, err := c.provider.ChatWithImages(ctx, llm.VisionChatRequest{
		Messages: []llm.VisionMessage{
			{
				Role: "user",
				Content: []llm.ContentPart{
					{Type: "text", Text: c.prompt},
					{Type: "image_url", ImageURL: &llm.ImageURL{URL: llm.ImageDataURL(mimeType, data)}},
				},
			},
		},
	})
	if err != nil {
		kind := c.classifier.Classify(err, classify.StageOCR).Kind
		c.log.Warn("ocr request failed", "kind", kind, "mime_type", mimeType, "error", err)
		return "", classify.NewError(classify.StageOCR, kind, err.Error(), err)
	}

	c.log.Debug("ocr request succeeded",
		"model", resp.Model,
		"chars", len(resp.Content),
		"total_tokens", resp.TotalTokens,
	)
	return resp.Content, nil
}
