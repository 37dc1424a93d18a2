package dto

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject       string  `json:"subject" validate:"required,max=200"`
	Body          string  `json:"body" validate:"required,max=10000"`
	Channel       string  `json:"channel" validate:"required,oneof=EMAIL CHAT WEB MESSAGING"`
	Priority      *string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Category      *string `json:"category" validate:"omitempty,max=100"`
	CustomerName  *string `json:"customerName" validate:"omitempty,max=200"`
	CustomerEmail *string `json:"customerEmail" validate:"omitempty,email,max=320"`
}

// PatchTicketRequest payload. An explicit null assignedToId unassigns the ticket.
type PatchTicketRequest struct {
	Status       *string          `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
	Priority     *string          `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Category     *string          `json:"category" validate:"omitempty,max=100"`
	AssignedToID Optional[string] `json:"assignedToId"`
}

// BulkActionRequest payload.
type BulkActionRequest struct {
	TicketIDs []string `json:"ticketIds" validate:"required,min=1,dive,uuid"`
	Action    string   `json:"action" validate:"required,oneof=setStatus setPriority assign unassign"`
	Value     *string  `json:"value"`
}

// BulkActionResponse reports how many tickets changed.
type BulkActionResponse struct {
	UpdatedCount int `json:"updatedCount"`
}

// TicketResponse is the public shape of a ticket.
type TicketResponse struct {
	ID              string                 `json:"id"`
	OrganizationID  string                 `json:"organizationId"`
	Subject         string                 `json:"subject"`
	Body            string                 `json:"body"`
	Channel         domain.TicketChannel   `json:"channel"`
	Status          domain.TicketStatus    `json:"status"`
	Priority        *domain.TicketPriority `json:"priority"`
	Category        *string                `json:"category"`
	Sentiment       *domain.Sentiment      `json:"sentiment"`
	SentimentScore  *float64               `json:"sentimentScore"`
	Language        *string                `json:"language"`
	AISummary       *string                `json:"aiSummary"`
	CustomerName    *string                `json:"customerName"`
	CustomerEmail   *string                `json:"customerEmail"`
	AssignedToID    *string                `json:"assignedToId"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	ResolvedAt      *time.Time             `json:"resolvedAt"`
	FirstResponseAt *time.Time             `json:"firstResponseAt"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Items      []TicketResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		OrganizationID:  t.OrganizationID,
		Subject:         t.Subject,
		Body:            t.Body,
		Channel:         t.Channel,
		Status:          t.Status,
		Priority:        t.Priority,
		Category:        t.Category,
		Sentiment:       t.Sentiment,
		SentimentScore:  t.SentimentScore,
		Language:        t.Language,
		AISummary:       t.AISummary,
		CustomerName:    t.CustomerName,
		CustomerEmail:   t.CustomerEmail,
		AssignedToID:    t.AssignedToID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ResolvedAt:      t.ResolvedAt,
		FirstResponseAt: t.FirstResponseAt,
	}
}

// NewTicketListResponse maps a page of tickets.
func NewTicketListResponse(items []domain.Ticket, total, page, pageSize, totalPages int) TicketListResponse {
	out := make([]TicketResponse, 0, len(items))
	for i := range items {
		out = append(out, NewTicketResponse(&items[i]))
	}
	return TicketListResponse{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
