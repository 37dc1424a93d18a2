package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/service"
)

// AssignmentRunner runs one scheduling pass for an organization.
type AssignmentRunner interface {
	RunAssignmentBatch(ctx context.Context, organizationID, trigger string) (*service.AssignmentResult, error)
}

// AssignmentsHandler exposes the on-demand assignment trigger.
type AssignmentsHandler struct {
	runner AssignmentRunner
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(runner AssignmentRunner) *AssignmentsHandler {
	return &AssignmentsHandler{runner: runner}
}

// Run POST /api/assignments/run.
func (h *AssignmentsHandler) Run(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	result, err := h.runner.RunAssignmentBatch(c.UserContext(), principal.OrganizationID, service.TriggerManual)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
