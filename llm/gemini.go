package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// geminiProvider talks to the native Gemini generateContent endpoint, which
// accepts images as inline_data parts.
//
// Supported vision models:
//
//	gemini-2.5-flash       (default) fast, cost-effective
//	gemini-2.5-pro         highest capability
//	gemini-2.0-flash       previous gen fast
//
// API key: set via config or GEMINI_API_KEY env var.
type geminiProvider struct {
	cfg       Config
	transport httpTransport
}

// NewGemini creates a provider for Google Gemini.
func NewGemini(cfg Config) VisionProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return &geminiProvider{cfg: cfg, transport: newHTTPTransport(cfg)}
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func (p *geminiProvider) ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error) {
	body := geminiRequest{}
	for _, m := range req.Messages {
		c := geminiContent{Role: geminiRole(m.Role)}
		for _, part := range m.Content {
			switch part.Type {
			case "text":
				c.Parts = append(c.Parts, geminiPart{Text: part.Text})
			case "image_url":
				if part.ImageURL == nil {
					continue
				}
				mimeType, payload, ok := splitDataURL(part.ImageURL.URL)
				if !ok {
					return nil, fmt.Errorf("gemini: image must be a base64 data URL")
				}
				c.Parts = append(c.Parts, geminiPart{InlineData: &geminiInlineData{MimeType: mimeType, Data: payload}})
			}
		}
		body.Contents = append(body.Contents, c)
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/models/" + model + ":generateContent"

	headers := map[string]string{}
	if p.cfg.APIKey != "" {
		headers["x-goog-api-key"] = p.cfg.APIKey
	}

	respBody, err := p.transport.doPost(ctx, url, headers, body)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding gemini response: %w", err)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("gemini blocked the request: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("no candidates in response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return &ChatResponse{
		Content:          text.String(),
		Model:            resp.ModelVersion,
		FinishReason:     resp.Candidates[0].FinishReason,
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      resp.UsageMetadata.TotalTokenCount,
	}, nil
}

func geminiRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}
