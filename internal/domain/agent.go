package domain

import "time"

// UserRole enumerates operator roles within an organization.
type UserRole string

const (
	RoleAgent UserRole = "AGENT"
	RoleAdmin UserRole = "ADMIN"
)

// Agent is a user who can work tickets.
type Agent struct {
	ID             string
	OrganizationID string
	Name           string
	Email          string
	Role           UserRole
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Eligible reports whether the agent may receive tickets of organizationID.
func (a *Agent) Eligible(organizationID string) bool {
	return a.Active && a.OrganizationID == organizationID &&
		(a.Role == RoleAgent || a.Role == RoleAdmin)
}

// AgentLoad pairs an agent with its open/in-progress ticket count.
type AgentLoad struct {
	Agent
	OpenTickets int
}

// Assignment is one ticket-to-agent decision of a scheduling pass.
type Assignment struct {
	TicketID string `json:"ticketId"`
	AgentID  string `json:"agentId"`
}
