package classifier

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// Classifier derives enrichment attributes from a ticket's text.
type Classifier interface {
	Analyze(ctx context.Context, subject, body string) (domain.EnrichmentResult, error)
}

// ErrEmptyAnalysis is returned when the model answered with nothing usable.
var ErrEmptyAnalysis = errors.New("classifier returned no usable fields")

const maxSummaryLength = 500

// Analysis is the JSON object the model is asked to return.
type Analysis struct {
	Sentiment      string   `json:"sentiment"`
	SentimentScore *float64 `json:"sentimentScore"`
	Priority       string   `json:"priority"`
	Category       string   `json:"category"`
	Language       string   `json:"language"`
	Summary        string   `json:"summary"`
}

// Normalize turns a raw analysis into a result, dropping values outside the allowed sets.
func (a Analysis) Normalize() domain.EnrichmentResult {
	var result domain.EnrichmentResult

	if s := domain.Sentiment(strings.ToUpper(strings.TrimSpace(a.Sentiment))); s.Valid() {
		result.Sentiment = &s
	}
	if a.SentimentScore != nil {
		score := *a.SentimentScore
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		result.SentimentScore = &score
	}
	if p := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(a.Priority))); p.Valid() {
		result.Priority = &p
	}
	if c := strings.ToLower(strings.TrimSpace(a.Category)); c != "" {
		result.Category = &c
	}
	if l := strings.ToLower(strings.TrimSpace(a.Language)); l != "" {
		result.Language = &l
	}
	if s := truncate(strings.TrimSpace(a.Summary), maxSummaryLength); s != "" {
		result.Summary = &s
	}
	return result
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
