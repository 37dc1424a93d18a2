package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/classifier"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/repository"
)

const enrichmentWriteTimeout = 5 * time.Second

// Enricher dispatches background enrichment for a persisted ticket.
type Enricher interface {
	Dispatch(ticket domain.Ticket)
}

// EnrichmentService runs the classifier for new tickets, detached from the request that created them.
type EnrichmentService struct {
	tickets    repository.TicketRepository
	classifier classifier.Classifier
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	timeout    time.Duration

	inflight sync.WaitGroup
}

// EnrichmentDependencies bundles collaborators for enrichment.
type EnrichmentDependencies struct {
	TicketRepo repository.TicketRepository
	Classifier classifier.Classifier
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Timeout    time.Duration
}

// NewEnrichmentService constructs the service.
func NewEnrichmentService(deps EnrichmentDependencies) *EnrichmentService {
	return &EnrichmentService{
		tickets:    deps.TicketRepo,
		classifier: deps.Classifier,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     nopIfNil(deps.Logger),
		timeout:    deps.Timeout,
	}
}

// Dispatch starts enrichment in its own goroutine and returns immediately.
func (s *EnrichmentService) Dispatch(ticket domain.Ticket) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.metrics.RecordEnrichment(observability.EnrichmentPanic)
				s.logger.Error("enrichment panicked",
					zap.String("ticket_id", ticket.ID),
					zap.String("organization_id", ticket.OrganizationID),
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
		}()

		s.Enrich(context.Background(), ticket)
	}()
}

// Enrich classifies ticket and merges the result into the stored row. Only the classifier
// call is bounded by the configured timeout. Failures are logged and reported only through
// the returned outcome.
func (s *EnrichmentService) Enrich(ctx context.Context, ticket domain.Ticket) string {
	logger := s.logger.With(
		zap.String("ticket_id", ticket.ID),
		zap.String("organization_id", ticket.OrganizationID))

	result, err := s.analyze(ctx, ticket)
	if err != nil {
		logger.Warn("ticket enrichment failed", zap.Error(err))
		s.metrics.RecordEnrichment(observability.EnrichmentFailed)
		return observability.EnrichmentFailed
	}
	if result.Empty() {
		s.metrics.RecordEnrichment(observability.EnrichmentSkipped)
		return observability.EnrichmentSkipped
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enrichmentWriteTimeout)
	defer cancel()
	stored, err := s.tickets.ApplyEnrichment(writeCtx, ticket.OrganizationID, ticket.ID, result)
	if err != nil {
		logger.Warn("applying enrichment failed", zap.Error(err))
		s.metrics.RecordEnrichment(observability.EnrichmentFailed)
		return observability.EnrichmentFailed
	}
	if stored == nil {
		logger.Debug("ticket gone before enrichment completed")
		s.metrics.RecordEnrichment(observability.EnrichmentSkipped)
		return observability.EnrichmentSkipped
	}

	s.metrics.RecordEnrichment(observability.EnrichmentApplied)
	publishEvent(writeCtx, s.dispatcher, logger, events.Event{
		Type:           events.EventTicketEnriched,
		OrganizationID: stored.OrganizationID,
		TicketID:       stored.ID,
		Payload: events.TicketEnrichedPayload{
			Sentiment: stored.Sentiment,
			Priority:  stored.Priority,
			Category:  stored.Category,
			Language:  stored.Language,
		},
	})
	logger.Debug("ticket enriched")
	return observability.EnrichmentApplied
}

func (s *EnrichmentService) analyze(ctx context.Context, ticket domain.Ticket) (domain.EnrichmentResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.classifier.Analyze(ctx, ticket.Subject, ticket.Body)
}

// Wait blocks until in-flight enrichments finish or ctx ends. It is only used to drain on shutdown.
func (s *EnrichmentService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
