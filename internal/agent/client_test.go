package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/architect/internal/config"
	"github.com/dotcommander/architect/internal/core"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithAPIConfig(srv.URL, "test-model"),
		WithHTTPClient(srv.Client()),
		WithRateLimit(6000, 100),
		WithLogger(quietLogger),
	}
	c, err := NewClient("sk-test-key", append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		_, err := NewClient(key)
		assert.ErrorIs(t, err, core.ErrNoAPIKey)
	}
}

func TestAnthropicRequest(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"hello there"}],"usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithGeneration(1024, 0.2))
	text, err := c.Complete(context.Background(), "be brief", "say hi")
	require.NoError(t, err)

	assert.Equal(t, "hello there", text)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, []chatMessage{{Role: "user", Content: "say hi"}}, got.Messages)
}

func TestOpenAIRequest(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"from openai"}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithOpenAI())
	text, err := c.Complete(context.Background(), "system text", "user text")
	require.NoError(t, err)

	assert.Equal(t, "from openai", text)
	assert.Equal(t, []chatMessage{
		{Role: "system", Content: "system text"},
		{Role: "user", Content: "user text"},
	}, got.Messages)
}

func TestEmptyTextIsNotMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":""}]}`)
	}))
	defer srv.Close()

	text, err := newTestClient(t, srv).Complete(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestServiceErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		openAI        bool
		wantStatus    int
		wantMalformed bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantStatus: 429},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantStatus: 500},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "bad key", openAI: true, wantStatus: 401},
		{name: "anthropic missing content", status: http.StatusOK, body: `{"content":[]}`, wantMalformed: true},
		{name: "anthropic null text", status: http.StatusOK, body: `{"content":[{"type":"tool_use"}]}`, wantMalformed: true},
		{name: "openai missing choices", status: http.StatusOK, body: `{"choices":[]}`, openAI: true, wantMalformed: true},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantMalformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			var opts []Option
			if tt.openAI {
				opts = append(opts, WithOpenAI())
			}
			_, err := newTestClient(t, srv, opts...).Complete(context.Background(), "s", "u")
			require.Error(t, err)

			var se *ServiceError
			require.True(t, errors.As(err, &se), "want *ServiceError, got %T", err)
			assert.Equal(t, tt.wantStatus, se.Status)
			assert.Equal(t, tt.wantMalformed, se.IsMalformed())
			if tt.wantStatus != 0 {
				assert.Contains(t, se.Error(), tt.body)
			}
		})
	}
}

func TestNoRetryOnFailure(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, 1, hits)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Complete(context.Background(), "s", "u")
	assert.True(t, IsServiceError(err))
}

func TestCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("request should not be sent")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv).Complete(ctx, "s", "u")
	assert.True(t, IsServiceError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOperationLabel(t *testing.T) {
	assert.Equal(t, "unknown", OperationFrom(context.Background()))
	assert.Equal(t, "vision", OperationFrom(WithOperation(context.Background(), "vision")))
}

func TestFactory(t *testing.T) {
	limits := config.DefaultLimits()

	c, err := New(context.Background(), config.AIConfig{
		Provider: config.ProviderOpenAI,
		APIKey:   "sk-factory-key",
		Model:    "gpt-4o",
		Timeout:  30,
	}, limits, quietLogger)
	require.NoError(t, err)
	client, ok := c.(*Client)
	require.True(t, ok)
	assert.Equal(t, apiOpenAI, client.apiType)
	assert.Equal(t, defaultOpenAIURL, client.baseURL)

	c, err = New(context.Background(), config.AIConfig{
		Provider: config.ProviderAnthropic,
		APIKey:   "sk-factory-key",
		Model:    "claude",
	}, limits, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicURL, c.(*Client).baseURL)

	c, err = New(context.Background(), config.AIConfig{
		Provider: config.ProviderGemini,
		APIKey:   "gemini-factory-key",
		Timeout:  45,
	}, limits, quietLogger)
	require.NoError(t, err)
	gemini, ok := c.(*GeminiClient)
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, gemini.timeout)

	_, err = New(context.Background(), config.AIConfig{Provider: config.ProviderAnthropic}, limits, nil)
	assert.ErrorIs(t, err, core.ErrNoAPIKey)

	_, err = New(context.Background(), config.AIConfig{Provider: "cohere", APIKey: "k"}, limits, nil)
	assert.Error(t, err)
}

func TestGeminiCallContext(t *testing.T) {
	g, err := NewGeminiClient(context.Background(), "gemini-test-key", "", WithGeminiTimeout(time.Minute))
	require.NoError(t, err)

	ctx, cancel := g.callContext(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	g.timeout = 0
	ctx, cancel = g.callContext(context.Background())
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}

func TestMockClient(t *testing.T) {
	m := NewMockClient("first")
	m.EnqueueError(errors.New("second fails"))
	m.Responder = func(system, user string) (string, error) { return "echo " + user, nil }

	ctx := context.Background()
	got, err := m.Complete(ctx, "s", "a")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	_, err = m.Complete(ctx, "s", "b")
	assert.EqualError(t, err, "second fails")

	got, err = m.Complete(ctx, "s", "c")
	require.NoError(t, err)
	assert.Equal(t, "echo c", got)

	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, "b", m.Calls()[1].UserMessage)

	empty := NewMockClient()
	_, err = empty.Complete(ctx, "", "")
	assert.ErrorIs(t, err, ErrNoMockReply)
}
