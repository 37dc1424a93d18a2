package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/domain"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func newTestClassifier(url string) *OpenAIClassifier {
	return NewOpenAIClassifier(config.ClassifierConfig{
		OpenAIAPIKey: "test-key",
		Model:        "gpt-test",
		BaseURL:      url + "/v1",
		MaxTokens:    100,
	}, zap.NewNop())
}

func TestOpenAIClassifierParsesAnalysis(t *testing.T) {
	srv := chatServer(t, `{"sentiment":"negative","sentimentScore":1.7,"priority":"high","category":"Billing","language":"EN","summary":"Customer was double charged."}`)
	defer srv.Close()

	result, err := newTestClassifier(srv.URL).Analyze(context.Background(), "Charged twice", "Please refund.")
	require.NoError(t, err)

	require.NotNil(t, result.Sentiment)
	assert.Equal(t, domain.SentimentNegative, *result.Sentiment)
	assert.Equal(t, 1.0, *result.SentimentScore)
	assert.Equal(t, domain.TicketPriorityHigh, *result.Priority)
	assert.Equal(t, "billing", *result.Category)
	assert.Equal(t, "en", *result.Language)
	assert.Equal(t, "Customer was double charged.", *result.Summary)
}

func TestOpenAIClassifierDropsUnknownEnums(t *testing.T) {
	srv := chatServer(t, `{"sentiment":"furious","priority":"P0","category":"technical"}`)
	defer srv.Close()

	result, err := newTestClassifier(srv.URL).Analyze(context.Background(), "s", "b")
	require.NoError(t, err)

	assert.Nil(t, result.Sentiment)
	assert.Nil(t, result.Priority)
	assert.Equal(t, "technical", *result.Category)
}

func TestOpenAIClassifierRejectsGarbage(t *testing.T) {
	srv := chatServer(t, "I think this is about billing")
	defer srv.Close()

	_, err := newTestClassifier(srv.URL).Analyze(context.Background(), "s", "b")
	assert.Error(t, err)
}

func TestOpenAIClassifierRejectsEmptyAnalysis(t *testing.T) {
	srv := chatServer(t, `{}`)
	defer srv.Close()

	_, err := newTestClassifier(srv.URL).Analyze(context.Background(), "s", "b")
	assert.ErrorIs(t, err, ErrEmptyAnalysis)
}

func TestOpenAIClassifierSurfacesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClassifier(srv.URL).Analyze(context.Background(), "s", "b")
	assert.Error(t, err)
}

func TestNormalizeTruncatesSummary(t *testing.T) {
	result := Analysis{Summary: strings.Repeat("a", 600)}.Normalize()

	require.NotNil(t, result.Summary)
	assert.Len(t, *result.Summary, maxSummaryLength)
	assert.True(t, strings.HasSuffix(*result.Summary, "..."))
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()

	result, err := c.Analyze(context.Background(), "Site is down", "Our checkout is broken, this is unacceptable")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, *result.Priority)
	assert.Equal(t, domain.SentimentNegative, *result.Sentiment)
	assert.Equal(t, "technical", *result.Category)

	result, err = c.Analyze(context.Background(), "Invoice question", "Thanks for the great service, where is my invoice?")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityLow, *result.Priority)
	assert.Equal(t, domain.SentimentPositive, *result.Sentiment)
	assert.Equal(t, "billing", *result.Category)
	assert.Equal(t, "Invoice question", *result.Summary)
}
