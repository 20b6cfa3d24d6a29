package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dotcommander/architect/internal/core"
)

const (
	apiAnthropic = "anthropic"
	apiOpenAI    = "openai"

	anthropicVersion = "2023-06-01"
	maxLoggedBody    = 512
)

// Client talks to an Anthropic- or OpenAI-style HTTP API. It is immutable
// after construction and safe for concurrent use.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	temperature     float64
	httpClient      *http.Client
	limiter         *rate.Limiter
	apiType         string
	logger          *slog.Logger
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		// Preserve existing transport if any
		transport := c.httpClient.Transport
		c.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithAPIConfig(baseURL, model string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
		c.model = model
		// Detect API type based on base URL
		if strings.Contains(baseURL, "openai") {
			c.apiType = apiOpenAI
		} else {
			c.apiType = apiAnthropic
		}
	}
}

// WithOpenAI forces the OpenAI chat-completions wire format regardless of the
// base URL, for compatible gateways.
func WithOpenAI() Option {
	return func(c *Client) {
		c.apiType = apiOpenAI
	}
}

func WithGeneration(maxOutputTokens int, temperature float64) Option {
	return func(c *Client) {
		c.maxOutputTokens = maxOutputTokens
		c.temperature = temperature
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a client for apiKey. A missing key fails here rather than
// on every call.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, core.ErrNoAPIKey
	}

	// Configure transport with connection pooling
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		apiKey:          apiKey,
		baseURL:         "https://api.anthropic.com/v1",
		model:           "claude-3-5-sonnet-20241022",
		maxOutputTokens: 8192,
		temperature:     0.7,
		httpClient: &http.Client{
			Timeout:   5 * time.Minute,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1), // Default: 60 req/min
		apiType: apiAnthropic,
		logger:  slog.Default().With("component", "ai_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("AI client initialized",
		"api_type", c.apiType,
		"base_url", c.baseURL,
		"model", c.model,
		"max_output_tokens", c.maxOutputTokens,
		"rate_limit", fmt.Sprintf("%v req/s", c.limiter.Limit()))

	return c, nil
}

// Complete sends one system instruction and one user message and returns the
// first text block of the reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	requestID := uuid.NewString()
	operation := OperationFrom(ctx)
	startTime := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Error("rate limit wait failed",
			"request_id", requestID,
			"operation", operation,
			"error", err)
		return "", &ServiceError{Message: "rate limit wait failed", Err: err}
	}

	c.logger.Debug("sending AI request",
		"request_id", requestID,
		"operation", operation,
		"api_type", c.apiType,
		"model", c.model,
		"system_prompt_length", len(systemPrompt),
		"user_message_length", len(userMessage),
		"wait_duration_ms", time.Since(startTime).Milliseconds())

	var (
		response string
		err      error
	)
	if c.apiType == apiOpenAI {
		response, err = c.doOpenAIRequest(ctx, requestID, systemPrompt, userMessage)
	} else {
		response, err = c.doAnthropicRequest(ctx, requestID, systemPrompt, userMessage)
	}

	if err != nil {
		c.logger.Error("AI request failed",
			"request_id", requestID,
			"operation", operation,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"error", err)
		return "", err
	}

	c.logger.Info("AI request completed",
		"request_id", requestID,
		"operation", operation,
		"duration_ms", time.Since(startTime).Milliseconds(),
		"response_length", len(response))

	return response, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *Client) doAnthropicRequest(ctx context.Context, requestID, systemPrompt, userMessage string) (string, error) {
	body := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxOutputTokens,
		Temperature: c.temperature,
		System:      systemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: userMessage}},
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	respBody, err := c.post(ctx, requestID, "/messages", body, headers)
	if err != nil {
		return "", err
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		c.logger.Error("failed to parse Anthropic response",
			"request_id", requestID,
			"error", err)
		return "", newMalformedError(err)
	}

	if len(response.Content) == 0 || response.Content[0].Text == nil {
		c.logger.Error("no text content in Anthropic response",
			"request_id", requestID,
			"response_body", truncate(string(respBody)))
		return "", newMalformedError(nil)
	}

	c.logger.Debug("Anthropic usage",
		"request_id", requestID,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"total_tokens", response.Usage.InputTokens+response.Usage.OutputTokens)

	return *response.Content[0].Text, nil
}

type openAIRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) doOpenAIRequest(ctx context.Context, requestID, systemPrompt, userMessage string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	body := openAIRequest{
		Model:       c.model,
		MaxTokens:   c.maxOutputTokens,
		Temperature: c.temperature,
		Messages:    messages,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}

	respBody, err := c.post(ctx, requestID, "/chat/completions", body, headers)
	if err != nil {
		return "", err
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		c.logger.Error("failed to parse OpenAI response",
			"request_id", requestID,
			"error", err)
		return "", newMalformedError(err)
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == nil {
		c.logger.Error("no choices in OpenAI response",
			"request_id", requestID,
			"response_body", truncate(string(respBody)))
		return "", newMalformedError(nil)
	}

	c.logger.Debug("OpenAI usage",
		"request_id", requestID,
		"prompt_tokens", response.Usage.PromptTokens,
		"completion_tokens", response.Usage.CompletionTokens,
		"total_tokens", response.Usage.TotalTokens)

	return *response.Choices[0].Message.Content, nil
}

// post sends body as JSON and returns the raw response body of a 2xx reply.
func (c *Client) post(ctx context.Context, requestID, endpoint string, body any, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	httpStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed",
			"request_id", requestID,
			"endpoint", endpoint,
			"duration_ms", time.Since(httpStart).Milliseconds(),
			"error", err)
		return nil, &ServiceError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode), Message: "reading response", Err: err}
	}

	c.logger.Debug("HTTP response received",
		"request_id", requestID,
		"endpoint", endpoint,
		"status_code", resp.StatusCode,
		"body_size", len(respBody),
		"duration_ms", time.Since(httpStart).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("API error",
			"request_id", requestID,
			"status_code", resp.StatusCode,
			"response_body", truncate(string(respBody)))
		return nil, &ServiceError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Message:    truncate(strings.TrimSpace(string(respBody))),
		}
	}

	return respBody, nil
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "..."
}
