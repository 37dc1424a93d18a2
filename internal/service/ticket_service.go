package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TicketService coordinates ticket workflows: creation, listing, agent changes and bulk actions.
type TicketService struct {
	tickets    repository.TicketRepository
	enricher   Enricher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Enricher   Enricher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject       string
	Body          string
	Channel       domain.TicketChannel
	Priority      *domain.TicketPriority
	Category      *string
	CustomerName  *string
	CustomerEmail *string
}

// TicketQuery describes listing filters, sort and page.
type TicketQuery struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Sentiments   []domain.Sentiment
	Channels     []domain.TicketChannel
	AssignedToID *string
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	SortBy       string
	SortOrder    string
	Page         int
	PageSize     int
}

// TicketPage is one page of a listing.
type TicketPage struct {
	Items      []domain.Ticket
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// TicketPatchInput lists agent-driven changes. Unassign clears the assignee.
type TicketPatchInput struct {
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	Category     *string
	AssignedToID *string
	Unassign     bool
}

// BulkInput is a bulk request before validation.
type BulkInput struct {
	TicketIDs []string
	Action    domain.BulkAction
	Value     *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		enricher:   deps.Enricher,
		dispatcher: deps.Dispatcher,
		logger:     nopIfNil(deps.Logger),
	}
}

// CreateTicket persists a ticket and returns it right away; enrichment runs in the background.
func (s *TicketService) CreateTicket(ctx context.Context, principal *domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Body)
	switch {
	case subject == "":
		return nil, apperrors.NewValidationError("subject is required", nil)
	case utf8.RuneCountInString(subject) > domain.MaxSubjectLength:
		return nil, apperrors.NewValidationError("subject too long", map[string]any{"max": domain.MaxSubjectLength})
	case body == "":
		return nil, apperrors.NewValidationError("body is required", nil)
	case utf8.RuneCountInString(body) > domain.MaxBodyLength:
		return nil, apperrors.NewValidationError("body too long", map[string]any{"max": domain.MaxBodyLength})
	case !input.Channel.Valid():
		return nil, apperrors.NewValidationError("invalid channel", map[string]any{"channel": input.Channel})
	case input.Priority != nil && !input.Priority.Valid():
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
	}

	ticket := &domain.Ticket{
		OrganizationID: principal.OrganizationID,
		Subject:        subject,
		Body:           body,
		Channel:        input.Channel,
		Status:         domain.TicketStatusOpen,
		Priority:       input.Priority,
		Category:       trimmedOrNil(input.Category),
		CustomerName:   trimmedOrNil(input.CustomerName),
		CustomerEmail:  trimmedOrNil(input.CustomerEmail),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishTicketEvent(ctx, events.EventTicketCreated, principal, ticket)
	if s.enricher != nil {
		s.enricher.Dispatch(*ticket)
	}
	return ticket, nil
}

// ListTickets returns one page of the organization's tickets.
func (s *TicketService) ListTickets(ctx context.Context, organizationID string, query TicketQuery) (*TicketPage, error) {
	filter, page, pageSize, err := buildListFilter(organizationID, query)
	if err != nil {
		return nil, err
	}

	total, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	items := []domain.Ticket{}
	if filter.Offset < total {
		items, err = s.tickets.List(ctx, filter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	return &TicketPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// buildListFilter validates query and turns it into a tenant-scoped repository filter.
func buildListFilter(organizationID string, query TicketQuery) (repository.TicketFilter, int, int, error) {
	var filter repository.TicketFilter

	page := query.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return filter, 0, 0, apperrors.NewValidationError("page must be at least 1", nil)
	}
	pageSize := query.PageSize
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 0:
		return filter, 0, 0, apperrors.NewValidationError("pageSize must be positive", nil)
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}

	sortBy := repository.SortByCreatedAt
	if query.SortBy != "" {
		sortBy = repository.TicketSortKey(query.SortBy)
		if !repository.ValidSortKey(sortBy) {
			return filter, 0, 0, apperrors.NewValidationError("unsupported sort key",
				map[string]any{"sortBy": query.SortBy, "allowed": []string{"createdAt", "updatedAt", "priority", "subject"}})
		}
	}
	sortDesc := true
	switch strings.ToLower(query.SortOrder) {
	case "", "desc":
	case "asc":
		sortDesc = false
	default:
		return filter, 0, 0, apperrors.NewValidationError("sortOrder must be asc or desc", nil)
	}

	for _, st := range query.Statuses {
		if !st.Valid() {
			return filter, 0, 0, apperrors.NewValidationError("invalid status filter", map[string]any{"status": st})
		}
	}
	for _, p := range query.Priorities {
		if !p.Valid() {
			return filter, 0, 0, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": p})
		}
	}
	for _, se := range query.Sentiments {
		if !se.Valid() {
			return filter, 0, 0, apperrors.NewValidationError("invalid sentiment filter", map[string]any{"sentiment": se})
		}
	}
	for _, c := range query.Channels {
		if !c.Valid() {
			return filter, 0, 0, apperrors.NewValidationError("invalid channel filter", map[string]any{"channel": c})
		}
	}
	if query.AssignedToID != nil {
		if _, err := uuid.Parse(*query.AssignedToID); err != nil {
			return filter, 0, 0, apperrors.NewValidationError("invalid assignedToId", nil)
		}
	}
	if query.CreatedFrom != nil && query.CreatedTo != nil && query.CreatedFrom.After(*query.CreatedTo) {
		return filter, 0, 0, apperrors.NewValidationError("createdFrom must not be after createdTo", nil)
	}

	filter = repository.TicketFilter{
		OrganizationID: organizationID,
		Statuses:       query.Statuses,
		Priorities:     query.Priorities,
		Sentiments:     query.Sentiments,
		Channels:       query.Channels,
		AssignedToID:   query.AssignedToID,
		SearchTerm:     query.SearchTerm,
		CreatedFrom:    query.CreatedFrom,
		CreatedTo:      query.CreatedTo,
		SortBy:         sortBy,
		SortDesc:       sortDesc,
		Limit:          pageSize,
		Offset:         (page - 1) * pageSize,
	}
	return filter, page, pageSize, nil
}

// GetTicket fetches one ticket of the organization.
func (s *TicketService) GetTicket(ctx context.Context, organizationID, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ticketNotFound(ticketID)
	}
	ticket, err := s.tickets.GetByID(ctx, organizationID, ticketID)
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	return ticket, nil
}

// PatchTicket applies agent changes to one ticket. Status changes follow the agent-driven
// lifecycle; entering RESOLVED or CLOSED stamps resolved-at once.
func (s *TicketService) PatchTicket(ctx context.Context, principal *domain.Principal, ticketID string, input TicketPatchInput) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ticketNotFound(ticketID)
	}
	switch {
	case input.Status == nil && input.Priority == nil && input.Category == nil && input.AssignedToID == nil && !input.Unassign:
		return nil, apperrors.NewValidationError("no changes supplied", nil)
	case input.Status != nil && !input.Status.Valid():
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
	case input.Priority != nil && !input.Priority.Valid():
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
	case input.AssignedToID != nil && input.Unassign:
		return nil, apperrors.NewValidationError("assignedToId conflicts with unassign", nil)
	}
	if input.AssignedToID != nil {
		if _, err := uuid.Parse(*input.AssignedToID); err != nil {
			return nil, apperrors.NewValidationError("invalid assignedToId", nil)
		}
	}

	ticket, err := s.tickets.Patch(ctx, principal.OrganizationID, ticketID, repository.TicketPatch{
		Status:       input.Status,
		Priority:     input.Priority,
		Category:     trimmedOrNil(input.Category),
		AssignedToID: input.AssignedToID,
		Unassign:     input.Unassign,
	})
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	s.publishTicketEvent(ctx, events.EventTicketUpdated, principal, ticket)
	return ticket, nil
}

// RecordFirstResponse stamps first-response-at once; later calls leave it unchanged.
func (s *TicketService) RecordFirstResponse(ctx context.Context, principal *domain.Principal, ticketID string) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ticketNotFound(ticketID)
	}
	ticket, err := s.tickets.RecordFirstResponse(ctx, principal.OrganizationID, ticketID)
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	s.publishTicketEvent(ctx, events.EventTicketUpdated, principal, ticket)
	return ticket, nil
}

// BulkApply applies one action to every listed ticket in a single mutation. If any id is not
// a ticket of the caller's organization nothing is changed.
func (s *TicketService) BulkApply(ctx context.Context, principal *domain.Principal, input BulkInput) (int, error) {
	if principal == nil {
		return 0, apperrors.NewUnauthorized("caller required")
	}
	ids, mutation, err := validateBulk(input)
	if err != nil {
		return 0, err
	}

	updated, err := s.tickets.BulkUpdate(ctx, principal.OrganizationID, ids, mutation)
	if err != nil {
		var mismatch *repository.TenantMismatchError
		switch {
		case errors.As(err, &mismatch):
			return 0, apperrors.NewForbidden("tickets outside organization",
				map[string]any{"requested": mismatch.Requested, "matched": mismatch.Matched})
		case errors.Is(err, repository.ErrAgentNotEligible):
			return 0, apperrors.NewValidationError("assignee is not an active agent of this organization",
				map[string]any{"agent_id": mutation.AgentID})
		}
		return 0, apperrors.MapError(err)
	}

	value := ""
	if input.Value != nil {
		value = *input.Value
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:           events.EventTicketsBulkUpdated,
		OrganizationID: principal.OrganizationID,
		ActorID:        &principal.UserID,
		Payload: events.TicketsBulkUpdatedPayload{
			TicketIDs:    ids,
			Action:       mutation.Action,
			Value:        value,
			UpdatedCount: updated,
		},
	})
	return updated, nil
}

// validateBulk checks a bulk request before the store is touched and de-duplicates ids.
func validateBulk(input BulkInput) ([]string, repository.BulkMutation, error) {
	mutation := repository.BulkMutation{Action: input.Action}

	seen := make(map[string]struct{}, len(input.TicketIDs))
	ids := make([]string, 0, len(input.TicketIDs))
	for _, id := range input.TicketIDs {
		if _, err := uuid.Parse(id); err != nil {
			return nil, mutation, apperrors.NewValidationError("invalid ticket id", map[string]any{"ticket_id": id})
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 || len(ids) > domain.MaxBulkTickets {
		return nil, mutation, apperrors.NewValidationError("ticketIds must contain 1 to 100 ids",
			map[string]any{"count": len(ids)})
	}

	value := ""
	if input.Value != nil {
		value = strings.TrimSpace(*input.Value)
	}
	switch input.Action {
	case domain.BulkSetStatus:
		mutation.Status = domain.TicketStatus(value)
		if !mutation.Status.Valid() {
			return nil, mutation, apperrors.NewValidationError("invalid status value", map[string]any{"value": value})
		}
	case domain.BulkSetPriority:
		mutation.Priority = domain.TicketPriority(value)
		if !mutation.Priority.Valid() {
			return nil, mutation, apperrors.NewValidationError("invalid priority value", map[string]any{"value": value})
		}
	case domain.BulkAssign:
		if _, err := uuid.Parse(value); err != nil {
			return nil, mutation, apperrors.NewValidationError("assign requires an agent id", map[string]any{"value": value})
		}
		mutation.AgentID = value
	case domain.BulkUnassign:
	default:
		return nil, mutation, apperrors.NewValidationError("unknown action",
			map[string]any{"action": input.Action, "allowed": []domain.BulkAction{
				domain.BulkSetStatus, domain.BulkSetPriority, domain.BulkAssign, domain.BulkUnassign}})
	}
	return ids, mutation, nil
}

func (s *TicketService) publishTicketEvent(ctx context.Context, eventType events.EventType, principal *domain.Principal, ticket *domain.Ticket) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:           eventType,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		ActorID:        &principal.UserID,
		Payload: events.TicketChangedPayload{
			Status:       ticket.Status,
			Priority:     ticket.Priority,
			Category:     ticket.Category,
			AssignedToID: ticket.AssignedToID,
		},
	})
}

func mapTicketError(err error, ticketID string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ticketNotFound(ticketID)
	case errors.Is(err, repository.ErrAgentNotEligible):
		return apperrors.NewValidationError("assignee is not an active agent of this organization", nil)
	}
	return apperrors.MapError(err)
}

func ticketNotFound(ticketID string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
