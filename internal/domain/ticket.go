package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Monitored reports whether SLA is tracked in this status.
func (s TicketStatus) Monitored() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// Terminal reports whether entering s stamps resolved_at.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities; 0 means unknown or unset.
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityLow:
		return 1
	case TicketPriorityMedium:
		return 2
	case TicketPriorityHigh:
		return 3
	case TicketPriorityUrgent:
		return 4
	}
	return 0
}

// TicketChannel is the inbound channel a ticket arrived through.
type TicketChannel string

const (
	ChannelEmail     TicketChannel = "EMAIL"
	ChannelChat      TicketChannel = "CHAT"
	ChannelWeb       TicketChannel = "WEB"
	ChannelMessaging TicketChannel = "MESSAGING"
)

// Valid reports whether c is a known channel.
func (c TicketChannel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelWeb, ChannelMessaging:
		return true
	}
	return false
}

// Sentiment is the classifier's reading of the customer's tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

// Valid reports whether s is a known sentiment.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

const (
	MaxSubjectLength = 200
	MaxBodyLength    = 10000
)

// Ticket is the aggregate for customer inquiries.
type Ticket struct {
	ID              string
	OrganizationID  string
	Subject         string
	Body            string
	Channel         TicketChannel
	Status          TicketStatus
	Priority        *TicketPriority
	Category        *string
	Sentiment       *Sentiment
	SentimentScore  *float64
	Language        *string
	AISummary       *string
	CustomerName    *string
	CustomerEmail   *string
	AssignedToID    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
	FirstResponseAt *time.Time
}

// PriorityRank ranks the ticket's priority, unset sorting below LOW.
func (t *Ticket) PriorityRank() int {
	if t.Priority == nil {
		return 0
	}
	return t.Priority.Rank()
}
