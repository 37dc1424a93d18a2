package events

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketEnriched     EventType = "ticket_enriched"
	EventTicketUpdated      EventType = "ticket_updated"
	EventTicketsBulkUpdated EventType = "tickets_bulk_updated"
	EventTicketsAssigned    EventType = "tickets_assigned"
	EventSLABreached        EventType = "sla_breached"
)

// AllTypes lists every event type, for subscribers that forward everything.
var AllTypes = []EventType{
	EventTicketCreated,
	EventTicketEnriched,
	EventTicketUpdated,
	EventTicketsBulkUpdated,
	EventTicketsAssigned,
	EventSLABreached,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OrganizationID string    `json:"organization_id"`
	TicketID       string    `json:"ticket_id,omitempty"`
	ActorID        *string   `json:"actor_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload"`
}

// TicketChangedPayload snapshots the routing fields after a create or update.
type TicketChangedPayload struct {
	Status       domain.TicketStatus    `json:"status"`
	Priority     *domain.TicketPriority `json:"priority,omitempty"`
	Category     *string                `json:"category,omitempty"`
	AssignedToID *string                `json:"assigned_to_id,omitempty"`
}

// TicketEnrichedPayload carries the enrichment fields as stored after the update.
type TicketEnrichedPayload struct {
	Sentiment *domain.Sentiment      `json:"sentiment,omitempty"`
	Priority  *domain.TicketPriority `json:"priority,omitempty"`
	Category  *string                `json:"category,omitempty"`
	Language  *string                `json:"language,omitempty"`
}

// TicketsBulkUpdatedPayload describes one bulk mutation.
type TicketsBulkUpdatedPayload struct {
	TicketIDs    []string          `json:"ticket_ids"`
	Action       domain.BulkAction `json:"action"`
	Value        string            `json:"value,omitempty"`
	UpdatedCount int               `json:"updated_count"`
}

// TicketsAssignedPayload describes one scheduling pass.
type TicketsAssignedPayload struct {
	Trigger     string              `json:"trigger"`
	Assignments []domain.Assignment `json:"assignments"`
}

// SLABreachedPayload describes a ticket past its response window.
type SLABreachedPayload struct {
	Priority         domain.TicketPriority `json:"priority"`
	Severity         domain.BreachSeverity `json:"severity"`
	MaxMinutes       int                   `json:"max_minutes"`
	MinutesElapsed   int                   `json:"minutes_elapsed"`
	MinutesRemaining int                   `json:"minutes_remaining"`
}
