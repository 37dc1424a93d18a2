package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func urgentTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:        "t-1",
		Status:    domain.TicketStatusOpen,
		Priority:  ptr(domain.TicketPriorityUrgent),
		CreatedAt: t0,
	}
}

func TestComputeSlaStatusUrgentScenario(t *testing.T) {
	thirty := 30

	cases := []struct {
		after     time.Duration
		severity  domain.BreachSeverity
		remaining int
		breached  bool
	}{
		{10 * time.Minute, domain.SeverityNone, 20, false},
		{23 * time.Minute, domain.SeverityWarning, 7, false},
		{30 * time.Minute, domain.SeverityBreached, 0, true},
		{31 * time.Minute, domain.SeverityBreached, -1, true},
		{60 * time.Minute, domain.SeverityCritical, -30, true},
		{61 * time.Minute, domain.SeverityCritical, -31, true},
	}
	for _, tc := range cases {
		status, ok := ComputeSlaStatus(urgentTicket(), &thirty, t0.Add(tc.after))
		require.True(t, ok)
		assert.Equal(t, tc.severity, status.Severity, "after %s", tc.after)
		require.NotNil(t, status.MinutesRemaining)
		assert.Equal(t, tc.remaining, *status.MinutesRemaining)
		assert.Equal(t, tc.breached, status.IsBreached)
	}
}

func TestComputeSlaStatusFloorsElapsedMinutes(t *testing.T) {
	thirty := 30
	status, _ := ComputeSlaStatus(urgentTicket(), &thirty, t0.Add(22*time.Minute+59*time.Second))
	assert.Equal(t, 22, status.MinutesElapsed)
	assert.Equal(t, 8, *status.MinutesRemaining)
	assert.Equal(t, domain.SeverityNone, status.Severity)

	status, _ = ComputeSlaStatus(urgentTicket(), &thirty, t0.Add(23*time.Minute+59*time.Second))
	assert.Equal(t, 23, status.MinutesElapsed)
	assert.Equal(t, 7, *status.MinutesRemaining)
	assert.Equal(t, domain.SeverityWarning, status.Severity)
}

func TestComputeSlaStatusRespondedIsAlwaysNone(t *testing.T) {
	thirty := 30
	ticket := urgentTicket()
	ticket.FirstResponseAt = ptr(t0.Add(time.Minute))

	status, ok := ComputeSlaStatus(ticket, &thirty, t0.Add(72*time.Hour))

	require.True(t, ok)
	assert.True(t, status.Responded)
	assert.Equal(t, domain.SeverityNone, status.Severity)
	assert.Nil(t, status.MinutesRemaining)
	assert.False(t, status.IsBreached)
}

func TestComputeSlaStatusWithoutPolicy(t *testing.T) {
	status, ok := ComputeSlaStatus(urgentTicket(), nil, t0.Add(72*time.Hour))

	require.True(t, ok)
	assert.Equal(t, domain.SeverityNone, status.Severity)
	assert.Nil(t, status.MinutesRemaining)
}

func TestComputeSlaStatusSkipsClosedTickets(t *testing.T) {
	thirty := 30
	for _, st := range []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusClosed} {
		ticket := urgentTicket()
		ticket.Status = st
		_, ok := ComputeSlaStatus(ticket, &thirty, t0.Add(time.Hour))
		assert.False(t, ok)
	}
}

func TestComputeSlaStatusClampsClockSkew(t *testing.T) {
	thirty := 30
	status, _ := ComputeSlaStatus(urgentTicket(), &thirty, t0.Add(-5*time.Minute))

	assert.Equal(t, 0, status.MinutesElapsed)
	assert.Equal(t, 30, *status.MinutesRemaining)
}

func TestBreachSeverityBoundaries(t *testing.T) {
	assert.Equal(t, domain.SeverityNone, BreachSeverity(121, 480))
	assert.Equal(t, domain.SeverityWarning, BreachSeverity(120, 480))
	assert.Equal(t, domain.SeverityWarning, BreachSeverity(1, 480))
	assert.Equal(t, domain.SeverityBreached, BreachSeverity(0, 480))
	assert.Equal(t, domain.SeverityBreached, BreachSeverity(-479, 480))
	assert.Equal(t, domain.SeverityCritical, BreachSeverity(-480, 480))
	// 25% of 30 is 7.5: 7 warns, 8 does not.
	assert.Equal(t, domain.SeverityWarning, BreachSeverity(7, 30))
	assert.Equal(t, domain.SeverityNone, BreachSeverity(8, 30))
}

func TestResolvePolicies(t *testing.T) {
	sixty := 60
	table := ResolvePolicies([]domain.SlaPolicy{
		{Priority: domain.TicketPriorityHigh, MaxResponseMinutes: &sixty},
		{Priority: domain.TicketPriorityLow, MaxResponseMinutes: nil},
	})

	assert.Equal(t, 60, *table[domain.TicketPriorityHigh].MaxResponseMinutes)
	assert.Equal(t, PolicySourceCustom, table[domain.TicketPriorityHigh].Source)
	assert.Nil(t, table[domain.TicketPriorityLow].MaxResponseMinutes)
	assert.Equal(t, 30, *table[domain.TicketPriorityUrgent].MaxResponseMinutes)
	assert.Equal(t, PolicySourceDefault, table[domain.TicketPriorityUrgent].Source)

	list := table.List()
	require.Len(t, list, 4)
	assert.Equal(t, domain.TicketPriorityLow, list[0].Priority)
	assert.Equal(t, domain.TicketPriorityUrgent, list[3].Priority)
}

func TestUnsetPriorityUsesMediumPolicy(t *testing.T) {
	table := ResolvePolicies(nil)
	ticket := &domain.Ticket{Status: domain.TicketStatusOpen}

	assert.Equal(t, domain.TicketPriorityMedium, EffectivePriority(ticket))
	assert.Equal(t, 480, *table.MaxMinutesFor(ticket))
}
