package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"github.com/dotcommander/architect/internal/core"
)

// GeminiClient is a thin wrapper around the official genai client that
// satisfies Completer.
type GeminiClient struct {
	cli             *genai.Client
	model           string
	maxOutputTokens int32
	temperature     float32
	timeout         time.Duration
	limiter         *rate.Limiter
	logger          *slog.Logger
}

type GeminiOption func(*GeminiClient)

func WithGeminiGeneration(maxOutputTokens int, temperature float64) GeminiOption {
	return func(g *GeminiClient) {
		g.maxOutputTokens = int32(maxOutputTokens)
		g.temperature = float32(temperature)
	}
}

func WithGeminiRateLimit(requestsPerMinute int, burst int) GeminiOption {
	return func(g *GeminiClient) {
		g.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

// WithGeminiTimeout bounds each GenerateContent call, matching the HTTP
// client timeout of the other providers.
func WithGeminiTimeout(timeout time.Duration) GeminiOption {
	return func(g *GeminiClient) {
		g.timeout = timeout
	}
}

func WithGeminiLogger(logger *slog.Logger) GeminiOption {
	return func(g *GeminiClient) {
		g.logger = logger
	}
}

func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, core.ErrNoAPIKey
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ServiceError{Message: "creating genai client", Err: err}
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	g := &GeminiClient{
		cli:             cli,
		model:           model,
		maxOutputTokens: 8192,
		temperature:     0.7,
		limiter:         rate.NewLimiter(rate.Limit(1), 1),
		logger:          slog.Default().With("component", "gemini_client"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GeminiClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	requestID := uuid.NewString()
	operation := OperationFrom(ctx)
	start := time.Now()

	if err := g.limiter.Wait(ctx); err != nil {
		return "", &ServiceError{Message: "rate limit wait failed", Err: err}
	}

	ctx, cancel := g.callContext(ctx)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxOutputTokens,
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(userMessage, genai.RoleUser)},
		cfg,
	)
	if err != nil {
		g.logger.Error("Gemini request failed",
			"request_id", requestID,
			"operation", operation,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &ServiceError{Status: apiErr.Code, StatusText: apiErr.Status, Message: apiErr.Message, Err: err}
		}
		return "", &ServiceError{Message: "request failed", Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		g.logger.Error("no candidates in Gemini response",
			"request_id", requestID,
			"operation", operation)
		return "", newMalformedError(nil)
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	g.logger.Info("Gemini request completed",
		"request_id", requestID,
		"operation", operation,
		"model", g.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(text))
	return text, nil
}

func (g *GeminiClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}
