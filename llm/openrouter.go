package llm

import "context"

// openRouterProvider implements VisionProvider for OpenRouter.
// OpenRouter uses the OpenAI-compatible API format.
type openRouterProvider struct {
	base openAICompatClient
}

// NewOpenRouter creates a provider for OpenRouter.
func NewOpenRouter(cfg Config) VisionProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api"
	}
	return &openRouterProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openRouterProvider) ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error) {
	return p.base.chatWithImages(ctx, req)
}
