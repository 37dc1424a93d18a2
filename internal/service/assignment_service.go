package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

// Assignment triggers.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

const defaultAssignmentBatch = 100

// AssignmentResult is the outcome of one scheduling pass.
type AssignmentResult struct {
	AssignedCount int                 `json:"assignedCount"`
	Assignments   []domain.Assignment `json:"assignments"`
}

// AssignmentService runs scheduling passes over an organization's unassigned tickets.
type AssignmentService struct {
	tickets    repository.TicketRepository
	agents     repository.AgentRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	batchSize  int
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	AgentRepo  repository.AgentRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	BatchSize  int
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultAssignmentBatch
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		agents:     deps.AgentRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     nopIfNil(deps.Logger),
		batchSize:  batch,
	}
}

// RunAssignmentBatch assigns the organization's unassigned open work round-robin across its
// eligible agents. All assignments of the pass are written in one transaction.
func (s *AssignmentService) RunAssignmentBatch(ctx context.Context, organizationID, trigger string) (*AssignmentResult, error) {
	tickets, err := s.tickets.ListUnassigned(ctx, organizationID, s.batchSize)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(tickets) == 0 {
		return &AssignmentResult{Assignments: []domain.Assignment{}}, nil
	}

	agents, err := s.agents.ListEligibleWithLoad(ctx, organizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	plan, err := AssignRoundRobin(organizationID, tickets, agents)
	if err != nil {
		if errors.Is(err, ErrNoEligibleAgents) {
			return nil, apperrors.NewNoEligibleAgents(organizationID)
		}
		return nil, apperrors.MapError(err)
	}

	applied, err := s.tickets.ApplyAssignments(ctx, organizationID, plan)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if applied == nil {
		applied = []domain.Assignment{}
	}
	if skipped := len(plan) - len(applied); skipped > 0 {
		s.logger.Info("assignments skipped by concurrent changes",
			zap.String("organization_id", organizationID),
			zap.Int("skipped", skipped))
	}

	s.metrics.RecordAssignments(trigger, len(applied))
	if len(applied) > 0 {
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:           events.EventTicketsAssigned,
			OrganizationID: organizationID,
			Payload: events.TicketsAssignedPayload{
				Trigger:     trigger,
				Assignments: applied,
			},
		})
	}
	s.logger.Info("assignment batch completed",
		zap.String("organization_id", organizationID),
		zap.String("trigger", trigger),
		zap.Int("assigned", len(applied)))

	return &AssignmentResult{AssignedCount: len(applied), Assignments: applied}, nil
}
