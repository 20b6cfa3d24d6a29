package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dotcommander/architect/internal/config"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com/v1"
	defaultOpenAIURL    = "https://api.openai.com/v1"
)

// New builds the Completer selected by cfg.Provider. Every client shares the
// configured rate limit.
func New(ctx context.Context, cfg config.AIConfig, limits config.Limits, logger *slog.Logger) (Completer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rl := limits.RateLimit

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model,
			WithGeminiGeneration(cfg.MaxOutputTokens, cfg.Temperature),
			WithGeminiRateLimit(rl.RequestsPerMinute, rl.BurstSize),
			WithGeminiTimeout(time.Duration(cfg.Timeout)*time.Second),
			WithGeminiLogger(logger.With("component", "gemini_client")),
		)

	case config.ProviderOpenAI, config.ProviderAnthropic, "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultAnthropicURL
			if cfg.Provider == config.ProviderOpenAI {
				baseURL = defaultOpenAIURL
			}
		}

		opts := []Option{
			WithAPIConfig(baseURL, cfg.Model),
			WithGeneration(cfg.MaxOutputTokens, cfg.Temperature),
			WithRateLimit(rl.RequestsPerMinute, rl.BurstSize),
			WithLogger(logger.With("component", "ai_client")),
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(time.Duration(cfg.Timeout)*time.Second))
		}
		if cfg.Provider == config.ProviderOpenAI {
			opts = append(opts, WithOpenAI())
		}
		return NewClient(cfg.APIKey, opts...)

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
