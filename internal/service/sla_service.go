package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

const (
	slaAlertTTL       = 24 * time.Hour
	maxPolicyMinutes  = 60 * 24 * 365
	slaAlertKeyPrefix = "sla-alert"
)

// Locker grants a key to one caller until it expires or is released.
type Locker interface {
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// SlaService serves SLA state and policies and runs the breach sweep.
type SlaService struct {
	tickets    repository.TicketRepository
	policies   repository.SlaPolicyRepository
	dispatcher events.Dispatcher
	locker     Locker
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// SlaDependencies bundles collaborators for the SLA service.
type SlaDependencies struct {
	TicketRepo repository.TicketRepository
	PolicyRepo repository.SlaPolicyRepository
	Dispatcher events.Dispatcher
	Locker     Locker
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewSlaService constructs the service.
func NewSlaService(deps SlaDependencies) *SlaService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &SlaService{
		tickets:    deps.TicketRepo,
		policies:   deps.PolicyRepo,
		dispatcher: deps.Dispatcher,
		locker:     deps.Locker,
		metrics:    deps.Metrics,
		logger:     nopIfNil(deps.Logger),
		now:        now,
	}
}

func (s *SlaService) policyTable(ctx context.Context, organizationID string) (PolicyTable, error) {
	stored, err := s.policies.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("load sla policies: %w", err)
	}
	return ResolvePolicies(stored), nil
}

// ListStatuses computes SLA state for every monitored ticket of the organization.
func (s *SlaService) ListStatuses(ctx context.Context, organizationID string) ([]domain.SlaStatus, error) {
	table, err := s.policyTable(ctx, organizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	tickets, err := s.tickets.ListMonitored(ctx, organizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now()
	out := make([]domain.SlaStatus, 0, len(tickets))
	for i := range tickets {
		if status, ok := ComputeSlaStatus(&tickets[i], table.MaxMinutesFor(&tickets[i]), now); ok {
			out = append(out, status)
		}
	}
	return out, nil
}

// StatusForTicket computes SLA state for one ticket. It returns nil for resolved or closed tickets.
func (s *SlaService) StatusForTicket(ctx context.Context, organizationID, ticketID string) (*domain.SlaStatus, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, organizationID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	table, err := s.policyTable(ctx, organizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	status, ok := ComputeSlaStatus(ticket, table.MaxMinutesFor(ticket), s.now())
	if !ok {
		return nil, nil
	}
	return &status, nil
}

// ListPolicies returns the effective policy for each priority.
func (s *SlaService) ListPolicies(ctx context.Context, organizationID string) ([]EffectivePolicy, error) {
	table, err := s.policyTable(ctx, organizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return table.List(), nil
}

// UpsertPolicy stores an organization's target for one priority. Nil minutes disables the SLA.
func (s *SlaService) UpsertPolicy(ctx context.Context, principal *domain.Principal, priority domain.TicketPriority, maxMinutes *int) (*EffectivePolicy, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	if !principal.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins manage SLA policies", nil)
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	if maxMinutes != nil && (*maxMinutes <= 0 || *maxMinutes > maxPolicyMinutes) {
		return nil, apperrors.NewValidationError("maxResponseMinutes out of range",
			map[string]any{"min": 1, "max": maxPolicyMinutes})
	}

	policy := &domain.SlaPolicy{
		OrganizationID:     principal.OrganizationID,
		Priority:           priority,
		MaxResponseMinutes: maxMinutes,
	}
	if err := s.policies.Upsert(ctx, policy); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &EffectivePolicy{Priority: priority, MaxResponseMinutes: maxMinutes, Source: PolicySourceCustom}, nil
}

// SweepOrganization emits one sla_breached event per breached ticket and severity, at most
// once per alert window. A failed delivery releases the dedupe key. It returns the number
// of alerts emitted.
func (s *SlaService) SweepOrganization(ctx context.Context, organizationID string) (int, error) {
	statuses, err := s.ListStatuses(ctx, organizationID)
	if err != nil {
		return 0, err
	}

	emitted := 0
	for _, status := range statuses {
		if status.Severity != domain.SeverityBreached && status.Severity != domain.SeverityCritical {
			continue
		}
		key := fmt.Sprintf("%s:%s:%s", slaAlertKeyPrefix, status.TicketID, status.Severity)
		if s.locker != nil {
			won, err := s.locker.AcquireOnce(ctx, key, slaAlertTTL)
			if err != nil {
				s.logger.Warn("sla alert dedupe failed", zap.String("ticket_id", status.TicketID), zap.Error(err))
				continue
			}
			if !won {
				continue
			}
		}

		err := publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:           events.EventSLABreached,
			OrganizationID: organizationID,
			TicketID:       status.TicketID,
			Payload: events.SLABreachedPayload{
				Priority:         status.Priority,
				Severity:         status.Severity,
				MaxMinutes:       *status.MaxMinutes,
				MinutesElapsed:   status.MinutesElapsed,
				MinutesRemaining: *status.MinutesRemaining,
			},
		})
		if err != nil {
			// Let the next sweep retry the alert.
			if s.locker != nil {
				if relErr := s.locker.Release(ctx, key); relErr != nil {
					s.logger.Warn("sla alert release failed", zap.String("ticket_id", status.TicketID), zap.Error(relErr))
				}
			}
			continue
		}
		s.metrics.RecordSLAAlert(string(status.Severity))
		emitted++
	}
	return emitted, nil
}
