package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/domain"
)

const systemPrompt = `You triage customer support tickets. Reply with a single JSON object:
{
    "sentiment": "POSITIVE" | "NEUTRAL" | "NEGATIVE",
    "sentimentScore": number between 0 and 1 (1 = most positive),
    "priority": "LOW" | "MEDIUM" | "HIGH" | "URGENT",
    "category": short lowercase label such as "billing", "technical", "account", "shipping",
    "language": ISO 639-1 code of the customer's language,
    "summary": one or two sentences describing the request
}`

// OpenAIClassifier asks a chat model for a structured ticket analysis.
type OpenAIClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewOpenAIClassifier builds a classifier from configuration.
func NewOpenAIClassifier(cfg config.ClassifierConfig, logger *zap.Logger) *OpenAIClassifier {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClassifier{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}
}

// Analyze classifies one ticket. The caller bounds the call through ctx.
func (c *OpenAIClassifier) Analyze(ctx context.Context, subject, body string) (domain.EnrichmentResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Subject: %s\n\n%s", subject, body)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.EnrichmentResult{}, errors.New("chat completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var analysis Analysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		c.logger.Debug("unparseable classifier response", zap.String("response", content))
		return domain.EnrichmentResult{}, fmt.Errorf("parse classifier response: %w", err)
	}

	result := analysis.Normalize()
	if result.Empty() {
		return domain.EnrichmentResult{}, ErrEmptyAnalysis
	}
	return result, nil
}
