package service

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// PolicySource tells where an effective SLA policy came from.
type PolicySource string

const (
	PolicySourceCustom  PolicySource = "custom"
	PolicySourceDefault PolicySource = "default"
)

// EffectivePolicy is the response target that applies to one priority of an organization.
type EffectivePolicy struct {
	Priority           domain.TicketPriority `json:"priority"`
	MaxResponseMinutes *int                  `json:"maxResponseMinutes"`
	Source             PolicySource          `json:"source"`
}

// PolicyTable resolves priorities to response targets for one organization.
type PolicyTable map[domain.TicketPriority]EffectivePolicy

// ResolvePolicies overlays an organization's stored rows on the default table.
// A stored row with no minutes removes the SLA for that priority.
func ResolvePolicies(stored []domain.SlaPolicy) PolicyTable {
	table := make(PolicyTable, len(domain.Priorities))
	for _, p := range domain.Priorities {
		minutes := domain.DefaultMaxResponseMinutes[p]
		table[p] = EffectivePolicy{Priority: p, MaxResponseMinutes: &minutes, Source: PolicySourceDefault}
	}
	for _, row := range stored {
		if !row.Priority.Valid() {
			continue
		}
		table[row.Priority] = EffectivePolicy{
			Priority:           row.Priority,
			MaxResponseMinutes: row.MaxResponseMinutes,
			Source:             PolicySourceCustom,
		}
	}
	return table
}

// EffectivePriority is the priority a ticket is measured against; unset counts as MEDIUM.
func EffectivePriority(ticket *domain.Ticket) domain.TicketPriority {
	if ticket.Priority == nil || !ticket.Priority.Valid() {
		return domain.TicketPriorityMedium
	}
	return *ticket.Priority
}

// MaxMinutesFor returns the response target for ticket, or nil when it has none.
func (t PolicyTable) MaxMinutesFor(ticket *domain.Ticket) *int {
	return t[EffectivePriority(ticket)].MaxResponseMinutes
}

// List returns the table ordered from LOW to URGENT.
func (t PolicyTable) List() []EffectivePolicy {
	out := make([]EffectivePolicy, 0, len(domain.Priorities))
	for _, p := range domain.Priorities {
		out = append(out, t[p])
	}
	return out
}

// ComputeSlaStatus derives a ticket's SLA state at now. It reports false for tickets
// that are not monitored (RESOLVED or CLOSED).
func ComputeSlaStatus(ticket *domain.Ticket, maxMinutes *int, now time.Time) (domain.SlaStatus, bool) {
	if !ticket.Status.Monitored() {
		return domain.SlaStatus{}, false
	}

	elapsed := now.Sub(ticket.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	status := domain.SlaStatus{
		TicketID:       ticket.ID,
		Priority:       EffectivePriority(ticket),
		MaxMinutes:     maxMinutes,
		MinutesElapsed: int(elapsed / time.Minute),
		Responded:      ticket.FirstResponseAt != nil,
		Severity:       domain.SeverityNone,
	}
	if maxMinutes == nil || status.Responded {
		return status, true
	}

	remaining := *maxMinutes - status.MinutesElapsed
	status.MinutesRemaining = &remaining
	status.IsBreached = remaining <= 0
	status.Severity = BreachSeverity(remaining, *maxMinutes)
	return status, true
}

// BreachSeverity classifies minutes remaining against a window of maxMinutes.
func BreachSeverity(remaining, maxMinutes int) domain.BreachSeverity {
	switch {
	case remaining <= -maxMinutes:
		return domain.SeverityCritical
	case remaining <= 0:
		return domain.SeverityBreached
	case 4*remaining <= maxMinutes:
		return domain.SeverityWarning
	default:
		return domain.SeverityNone
	}
}
