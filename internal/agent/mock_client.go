package agent

import (
	"context"
	"errors"
	"sync"
)

// ErrNoMockReply is returned when a MockClient has nothing queued and no
// responder.
var ErrNoMockReply = errors.New("mock: no reply queued")

// MockCall records one Complete invocation.
type MockCall struct {
	SystemPrompt string
	UserMessage  string
}

type mockReply struct {
	text string
	err  error
}

// MockClient provides fake AI responses for testing. Queued replies are
// served first, in order; after that Responder, if set, answers.
type MockClient struct {
	mu        sync.Mutex
	queue     []mockReply
	calls     []MockCall
	Responder func(systemPrompt, userMessage string) (string, error)
}

// NewMockClient creates a mock AI client for testing
func NewMockClient(replies ...string) *MockClient {
	m := &MockClient{}
	for _, r := range replies {
		m.Enqueue(r)
	}
	return m
}

// Enqueue adds a successful reply.
func (m *MockClient) Enqueue(text string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{text: text})
	return m
}

// EnqueueError adds a failing reply.
func (m *MockClient) EnqueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{err: err})
	return m
}

// Complete returns the next queued reply
func (m *MockClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{SystemPrompt: systemPrompt, UserMessage: userMessage})
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return next.text, next.err
	}
	responder := m.Responder
	m.mu.Unlock()

	if responder != nil {
		return responder(systemPrompt, userMessage)
	}
	return "", ErrNoMockReply
}

// Calls returns a copy of every recorded call.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of Complete invocations so far.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
