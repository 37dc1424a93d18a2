package dto

import "github.com/spec-kit/ticket-engine/internal/domain"

// SlaStatusResponse is the derived SLA state of one ticket.
type SlaStatusResponse struct {
	TicketID         string                `json:"ticketId"`
	Priority         domain.TicketPriority `json:"priority"`
	MaxMinutes       *int                  `json:"maxMinutes"`
	MinutesElapsed   int                   `json:"minutesElapsed"`
	MinutesRemaining *int                  `json:"minutesRemaining"`
	IsBreached       bool                  `json:"isBreached"`
	Responded        bool                  `json:"responded"`
	BreachSeverity   domain.BreachSeverity `json:"breachSeverity"`
}

// UpsertSlaPolicyRequest payload. A null maxResponseMinutes disables the SLA for the priority.
type UpsertSlaPolicyRequest struct {
	MaxResponseMinutes Optional[int] `json:"maxResponseMinutes"`
}

// NewSlaStatusResponse maps a computed status.
func NewSlaStatusResponse(s domain.SlaStatus) SlaStatusResponse {
	return SlaStatusResponse{
		TicketID:         s.TicketID,
		Priority:         s.Priority,
		MaxMinutes:       s.MaxMinutes,
		MinutesElapsed:   s.MinutesElapsed,
		MinutesRemaining: s.MinutesRemaining,
		IsBreached:       s.IsBreached,
		Responded:        s.Responded,
		BreachSeverity:   s.Severity,
	}
}
