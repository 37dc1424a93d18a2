package service

import (
	"errors"
	"sort"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// ErrNoEligibleAgents is returned when a scheduling pass has nobody to assign to.
var ErrNoEligibleAgents = errors.New("no eligible agents")

// AssignRoundRobin plans one scheduling pass. Tickets are served most urgent first, then
// oldest first; ticket i goes to the i-th agent (mod N) of the list ordered by load at the
// start of the pass. Load is not re-measured during the pass.
func AssignRoundRobin(organizationID string, tickets []domain.Ticket, agents []domain.AgentLoad) ([]domain.Assignment, error) {
	eligible := make([]domain.AgentLoad, 0, len(agents))
	for _, a := range agents {
		if a.Eligible(organizationID) {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleAgents
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].OpenTickets != eligible[j].OpenTickets {
			return eligible[i].OpenTickets < eligible[j].OpenTickets
		}
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	queue := make([]*domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if tickets[i].OrganizationID == organizationID && tickets[i].AssignedToID == nil {
			queue = append(queue, &tickets[i])
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		ri, rj := queue[i].PriorityRank(), queue[j].PriorityRank()
		if ri != rj {
			return ri > rj
		}
		return queue[i].CreatedAt.Before(queue[j].CreatedAt)
	})

	plan := make([]domain.Assignment, len(queue))
	for i, ticket := range queue {
		plan[i] = domain.Assignment{TicketID: ticket.ID, AgentID: eligible[i%len(eligible)].ID}
	}
	return plan, nil
}
