package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/service"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

// TicketService is the ticket workflow the handler drives.
type TicketService interface {
	CreateTicket(ctx context.Context, principal *domain.Principal, input service.TicketCreateInput) (*domain.Ticket, error)
	ListTickets(ctx context.Context, organizationID string, query service.TicketQuery) (*service.TicketPage, error)
	GetTicket(ctx context.Context, organizationID, ticketID string) (*domain.Ticket, error)
	PatchTicket(ctx context.Context, principal *domain.Principal, ticketID string, input service.TicketPatchInput) (*domain.Ticket, error)
	RecordFirstResponse(ctx context.Context, principal *domain.Principal, ticketID string) (*domain.Ticket, error)
	BulkApply(ctx context.Context, principal *domain.Principal, input service.BulkInput) (int, error)
}

// TicketsHandler serves the tenant-scoped ticket endpoints.
type TicketsHandler struct {
	service TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	input := service.TicketCreateInput{
		Subject:       req.Subject,
		Body:          req.Body,
		Channel:       domain.TicketChannel(req.Channel),
		Category:      req.Category,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	}
	if req.Priority != nil {
		p := domain.TicketPriority(*req.Priority)
		input.Priority = &p
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), principal, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), principal.OrganizationID, query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(page.Items, page.Total, page.Page, page.PageSize, page.TotalPages)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), principal.OrganizationID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// PatchTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) PatchTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PatchTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	input := service.TicketPatchInput{Category: req.Category}
	if req.Status != nil {
		st := domain.TicketStatus(*req.Status)
		input.Status = &st
	}
	if req.Priority != nil {
		p := domain.TicketPriority(*req.Priority)
		input.Priority = &p
	}
	if req.AssignedToID.Set {
		if req.AssignedToID.Value == nil {
			input.Unassign = true
		} else {
			input.AssignedToID = req.AssignedToID.Value
		}
	}
	ticket, err := h.service.PatchTicket(c.UserContext(), principal, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// RecordFirstResponse POST /api/tickets/:id/first-response.
func (h *TicketsHandler) RecordFirstResponse(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.RecordFirstResponse(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// BulkAction POST /api/tickets/bulk.
func (h *TicketsHandler) BulkAction(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.BulkActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	updated, err := h.service.BulkApply(c.UserContext(), principal, service.BulkInput{
		TicketIDs: req.TicketIDs,
		Action:    domain.BulkAction(req.Action),
		Value:     req.Value,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BulkActionResponse{UpdatedCount: updated}})
}

func requirePrincipal(c *fiber.Ctx) (*domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketQuery, error) {
	var query service.TicketQuery
	for _, part := range splitList(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitList(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(part))
	}
	for _, part := range splitList(c.Query("sentiment")) {
		query.Sentiments = append(query.Sentiments, domain.Sentiment(part))
	}
	for _, part := range splitList(c.Query("channel")) {
		query.Channels = append(query.Channels, domain.TicketChannel(part))
	}
	if assignee := strings.TrimSpace(c.Query("assignedToId")); assignee != "" {
		query.AssignedToID = &assignee
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query.SearchTerm = &search
	}

	var err error
	if query.CreatedFrom, err = parseTime("createdFrom", c.Query("createdFrom")); err != nil {
		return query, err
	}
	if query.CreatedTo, err = parseTime("createdTo", c.Query("createdTo")); err != nil {
		return query, err
	}
	if query.Page, err = parseInt("page", c.Query("page")); err != nil {
		return query, err
	}
	if query.PageSize, err = parseInt("pageSize", c.Query("pageSize")); err != nil {
		return query, err
	}
	query.SortBy = strings.TrimSpace(c.Query("sortBy"))
	query.SortOrder = strings.TrimSpace(c.Query("sortOrder"))
	return query, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func parseTime(field, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid timestamp", map[string]any{field: "RFC3339"})
	}
	return &t, nil
}

// parseInt returns 0 for an absent value so the service applies its default.
func parseInt(field, val string) (int, error) {
	if val == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid integer", map[string]any{field: val})
	}
	return parsed, nil
}
