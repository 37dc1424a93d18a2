package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

func newAssignmentFixture(agents ...domain.AgentLoad) (*AssignmentService, *fakeTicketRepo, *recordingDispatcher) {
	tickets := newFakeTicketRepo()
	for _, a := range agents {
		tickets.eligible[a.ID] = a.OrganizationID
	}
	dispatcher := &recordingDispatcher{}
	svc := NewAssignmentService(AssignmentDependencies{
		TicketRepo: tickets,
		AgentRepo:  &fakeAgentRepo{agents: agents},
		Dispatcher: dispatcher,
		Metrics:    observability.NewMetrics(),
	})
	return svc, tickets, dispatcher
}

func TestRunAssignmentBatchAssignsAndStartsWork(t *testing.T) {
	svc, tickets, dispatcher := newAssignmentFixture(agent("a", 0, t0), agent("b", 1, t0))
	first := tickets.seed(openTicket("", ptr(domain.TicketPriorityHigh), t0))
	second := tickets.seed(openTicket("", ptr(domain.TicketPriorityLow), t0))
	resolved := tickets.seed(openTicket("", nil, t0))
	tickets.tickets[resolved.ID].Status = domain.TicketStatusResolved

	result, err := svc.RunAssignmentBatch(context.Background(), orgA, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 2, result.AssignedCount)
	assert.Equal(t, "a", *tickets.get(first.ID).AssignedToID)
	assert.Equal(t, "b", *tickets.get(second.ID).AssignedToID)
	assert.Equal(t, domain.TicketStatusInProgress, tickets.get(first.ID).Status)
	assert.Nil(t, tickets.get(resolved.ID).AssignedToID)

	published := dispatcher.ofType(events.EventTicketsAssigned)
	require.Len(t, published, 1)
	assert.Equal(t, orgA, published[0].OrganizationID)
}

func TestRunAssignmentBatchWithNothingToDo(t *testing.T) {
	svc, _, dispatcher := newAssignmentFixture(agent("a", 0, t0))

	result, err := svc.RunAssignmentBatch(context.Background(), orgA, TriggerScheduled)
	require.NoError(t, err)

	assert.Zero(t, result.AssignedCount)
	assert.NotNil(t, result.Assignments)
	assert.Empty(t, dispatcher.ofType(events.EventTicketsAssigned))
}

func TestRunAssignmentBatchWithoutAgents(t *testing.T) {
	inactive := agent("gone", 0, t0)
	inactive.Active = false
	svc, tickets, _ := newAssignmentFixture(inactive)
	ticket := tickets.seed(openTicket("", nil, t0))

	_, err := svc.RunAssignmentBatch(context.Background(), orgA, TriggerManual)

	assert.True(t, apperrors.HasCode(err, "NO_ELIGIBLE_AGENTS"))
	assert.Nil(t, tickets.get(ticket.ID).AssignedToID)
	assert.Equal(t, domain.TicketStatusOpen, tickets.get(ticket.ID).Status)
}

func TestRunAssignmentBatchStaysInsideOrganization(t *testing.T) {
	foreign := agent("foreign", 0, t0)
	foreign.OrganizationID = "org-b"
	svc, tickets, _ := newAssignmentFixture(agent("home", 3, t0), foreign)
	other := tickets.seed(domain.Ticket{OrganizationID: "org-b", Status: domain.TicketStatusOpen, CreatedAt: t0})
	mine := tickets.seed(openTicket("", nil, t0.Add(time.Minute)))

	result, err := svc.RunAssignmentBatch(context.Background(), orgA, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, []domain.Assignment{{TicketID: mine.ID, AgentID: "home"}}, result.Assignments)
	assert.Nil(t, tickets.get(other.ID).AssignedToID)
}
