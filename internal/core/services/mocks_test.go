package services

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
)

// mockEmbedder implements driven.EmbeddingService. Texts mentioning a
// known keyword map onto that keyword's direction; everything else points
// along the diagonal.
type mockEmbedder struct {
	mu       sync.Mutex
	model    string
	dims     int
	calls    int
	embedded map[string]int
	err      error
	failures int
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{model: "mock-embed", dims: 2, embedded: make(map[string]int)}
}

var keywordAngles = map[string]float64{
	"pricing": 0,
	"support": math.Pi / 2,
	"crash":   math.Pi,
}

func mockVector(text string) []float64 {
	lower := strings.ToLower(text)
	for kw, angle := range keywordAngles {
		if strings.Contains(lower, kw) {
			return []float64{3 * math.Cos(angle), 3 * math.Sin(angle)}
		}
	}
	return []float64{1, 1}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, &domain.ProviderError{Provider: "mock", StatusCode: 503, Message: "unavailable"}
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		m.embedded[t]++
		out[i] = mockVector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int           { return m.dims }
func (m *mockEmbedder) ModelName() string         { return m.model }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error              { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbedder) timesEmbedded(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedded[text]
}

// mockLLM implements driven.LLMService with a scripted reply.
type mockLLM struct {
	mu       sync.Mutex
	reply    func(messages []driven.ChatMessage) (string, error)
	calls    int
	lastOpts driven.ChatOptions
	lastMsgs []driven.ChatMessage
}

func replyWith(s string) *mockLLM {
	return &mockLLM{reply: func([]driven.ChatMessage) (string, error) { return s, nil }}
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastOpts = opts
	m.lastMsgs = messages
	m.mu.Unlock()
	return m.reply(messages)
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error               { return nil }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockReviewSource implements driven.ReviewSource.
type mockReviewSource struct {
	mu      sync.Mutex
	reviews []domain.RawReview
	err     error
	calls   int
	queries []driven.ReviewQuery
}

func (m *mockReviewSource) Name() string { return "mock" }

func (m *mockReviewSource) Fetch(_ context.Context, q driven.ReviewQuery) ([]domain.RawReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	return m.reviews, nil
}

// noRetry is a retrier with a single attempt.
func noRetry() *Retrier {
	return NewRetrier(domain.RetrySettings{Attempts: 1})
}

// fastRetry retries twice without sleeping.
func fastRetry() *Retrier {
	return NewRetrier(domain.RetrySettings{Attempts: 2})
}

func intPtr(v int) *int { return &v }
