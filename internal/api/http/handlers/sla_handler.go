package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/service"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

// SlaService computes SLA state and manages per-priority targets.
type SlaService interface {
	ListStatuses(ctx context.Context, organizationID string) ([]domain.SlaStatus, error)
	StatusForTicket(ctx context.Context, organizationID, ticketID string) (*domain.SlaStatus, error)
	ListPolicies(ctx context.Context, organizationID string) ([]service.EffectivePolicy, error)
	UpsertPolicy(ctx context.Context, principal *domain.Principal, priority domain.TicketPriority, maxMinutes *int) (*service.EffectivePolicy, error)
}

// SlaHandler serves SLA status and policy endpoints.
type SlaHandler struct {
	service SlaService
}

// NewSlaHandler constructs handler.
func NewSlaHandler(slaService SlaService) *SlaHandler {
	return &SlaHandler{service: slaService}
}

// ListStatuses GET /api/sla.
func (h *SlaHandler) ListStatuses(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	statuses, err := h.service.ListStatuses(c.UserContext(), principal.OrganizationID)
	if err != nil {
		return err
	}
	items := make([]dto.SlaStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		items = append(items, dto.NewSlaStatusResponse(s))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetStatus GET /api/sla/:ticketId. Resolved and closed tickets yield null data.
func (h *SlaHandler) GetStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	status, err := h.service.StatusForTicket(c.UserContext(), principal.OrganizationID, c.Params("ticketId"))
	if err != nil {
		return err
	}
	if status == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.NewSlaStatusResponse(*status)})
}

// ListPolicies GET /api/sla/policies.
func (h *SlaHandler) ListPolicies(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	policies, err := h.service.ListPolicies(c.UserContext(), principal.OrganizationID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policies})
}

// UpsertPolicy PUT /api/sla/policies/:priority.
func (h *SlaHandler) UpsertPolicy(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	priority := domain.TicketPriority(strings.ToUpper(c.Params("priority")))
	if !priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": c.Params("priority")})
	}
	var req dto.UpsertSlaPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !req.MaxResponseMinutes.Set {
		return apperrors.NewValidationError("maxResponseMinutes is required", map[string]any{"maxResponseMinutes": "required"})
	}
	policy, err := h.service.UpsertPolicy(c.UserContext(), principal, priority, req.MaxResponseMinutes.Value)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policy})
}
