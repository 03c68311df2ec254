package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/BriefCast/config"
)

// NewChatModel builds the provider client for one profile. Timeouts and
// retries are applied by Throttled, not by the client.
func NewChatModel(ctx context.Context, p config.LLMProfile) (model.ToolCallingChatModel, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("llm profile %s: missing API key for provider %s", p.Name, p.Provider)
	}
	switch p.Provider {
	case "deepseek":
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek model for %s: %w", p.Name, err)
		}
		return cm, nil
	case "openai", "":
		temperature := p.Temperature
		cfg := &openai.ChatModelConfig{
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			Temperature: &temperature,
		}
		if p.MaxTokens > 0 {
			maxTokens := p.MaxTokens
			cfg.MaxTokens = &maxTokens
		}
		cm, err := openai.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create openai model for %s: %w", p.Name, err)
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("llm profile %s: unsupported provider %q", p.Name, p.Provider)
	}
}
