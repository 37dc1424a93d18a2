package domain

import "time"

// DefaultMaxResponseMinutes applies when an organization has no policy row for a priority.
var DefaultMaxResponseMinutes = map[TicketPriority]int{
	TicketPriorityLow:    1440,
	TicketPriorityMedium: 480,
	TicketPriorityHigh:   120,
	TicketPriorityUrgent: 30,
}

// SlaPolicy is an organization's response target for one priority.
// A nil MaxResponseMinutes means the priority explicitly has no SLA.
type SlaPolicy struct {
	ID                 string
	OrganizationID     string
	Priority           TicketPriority
	MaxResponseMinutes *int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BreachSeverity classifies how far a ticket is into its response window.
type BreachSeverity string

const (
	SeverityNone     BreachSeverity = "none"
	SeverityWarning  BreachSeverity = "warning"
	SeverityBreached BreachSeverity = "breached"
	SeverityCritical BreachSeverity = "critical"
)

// SlaStatus is derived on every read; it is never stored.
type SlaStatus struct {
	TicketID         string
	Priority         TicketPriority
	MaxMinutes       *int
	MinutesElapsed   int
	MinutesRemaining *int
	IsBreached       bool
	Responded        bool
	Severity         BreachSeverity
}
