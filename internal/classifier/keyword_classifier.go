package classifier

import (
	"context"
	"strings"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// KeywordClassifier is a deterministic local classifier used when no model is configured.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"billing", []string{"invoice", "billing", "charge", "refund", "payment", "subscription", "price"}},
	{"technical", []string{"error", "bug", "crash", "broken", "not working", "exception", "timeout"}},
	{"account", []string{"password", "login", "sign in", "account", "2fa", "locked"}},
	{"shipping", []string{"delivery", "shipping", "package", "tracking", "shipment"}},
}

var (
	urgentWords   = []string{"urgent", "asap", "immediately", "outage", "down", "emergency", "critical"}
	highWords     = []string{"cannot", "can't", "unable", "blocked", "failed", "broken"}
	negativeWords = []string{"angry", "terrible", "awful", "worst", "unacceptable", "frustrated", "disappointed", "broken", "refund"}
	positiveWords = []string{"thanks", "thank you", "great", "love", "appreciate", "awesome", "happy"}
)

// Analyze classifies by keyword matching.
func (c *KeywordClassifier) Analyze(_ context.Context, subject, body string) (domain.EnrichmentResult, error) {
	text := strings.ToLower(subject + "\n" + body)

	analysis := Analysis{
		Category: "general",
		Priority: string(domain.TicketPriorityLow),
		Summary:  strings.TrimSpace(subject),
	}
	for _, entry := range categoryKeywords {
		if containsAny(text, entry.keywords) {
			analysis.Category = entry.category
			break
		}
	}

	negative := countMatches(text, negativeWords)
	positive := countMatches(text, positiveWords)
	score := 0.5 + 0.15*float64(positive-negative)
	analysis.SentimentScore = &score
	switch {
	case negative > positive:
		analysis.Sentiment = string(domain.SentimentNegative)
	case positive > negative:
		analysis.Sentiment = string(domain.SentimentPositive)
	default:
		analysis.Sentiment = string(domain.SentimentNeutral)
	}

	switch {
	case containsAny(text, urgentWords):
		analysis.Priority = string(domain.TicketPriorityUrgent)
	case containsAny(text, highWords):
		analysis.Priority = string(domain.TicketPriorityHigh)
	case negative > 0:
		analysis.Priority = string(domain.TicketPriorityMedium)
	}

	return analysis.Normalize(), nil
}

func containsAny(text string, words []string) bool {
	return countMatches(text, words) > 0
}

func countMatches(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
