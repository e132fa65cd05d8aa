package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// VisionProvider sends prompts that include images to a multimodal model.
type VisionProvider interface {
	// ChatWithImages sends a chat request that includes images.
	ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error)
}

// VisionChatRequest is a chat request with image content.
type VisionChatRequest struct {
	Model       string          `json:"model"`
	Messages    []VisionMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// VisionMessage represents a chat message that may contain images.
type VisionMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is either text or an image in a vision message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL contains a base64 data URL or remote URL reference to an image.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider"` // gemini, openai, openrouter, ollama, custom
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`

	// Timeout bounds each HTTP attempt. Zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout"`

	// MaxRetries is the number of extra attempts for network errors and
	// 502/503/504 responses. Negative disables retries.
	MaxRetries int `json:"max_retries"`
}

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// NewProvider creates a vision provider from configuration.
func NewProvider(cfg Config) (VisionProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "openrouter":
		return NewOpenRouter(cfg), nil
	case "ollama":
		return NewOllama(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// ImageDataURL encodes data as a base64 data URL.
func ImageDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// splitDataURL returns the mime type and base64 payload of a data URL.
func splitDataURL(u string) (mimeType, payload string, ok bool) {
	rest, found := strings.CutPrefix(u, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mimeType, found = strings.CutSuffix(meta, ";base64")
	if !found {
		return "", "", false
	}
	return mimeType, payload, true
}
