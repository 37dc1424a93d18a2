package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/repository"
)

// fakeTicketRepo is an in-memory ticket store with the same tenant rules as the SQL one.
type fakeTicketRepo struct {
	mu         sync.Mutex
	tickets    map[string]*domain.Ticket
	order      []string
	eligible   map[string]string // agent id -> organization id
	lastFilter repository.TicketFilter
	bulkCalls  int
	err        error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}, eligible: map[string]string{}}
}

func (f *fakeTicketRepo) seed(t domain.Ticket) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TicketStatusOpen
	}
	f.tickets[t.ID] = &t
	f.order = append(f.order, t.ID)
	return &t
}

func (f *fakeTicketRepo) get(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.tickets[id]
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if f.err != nil {
		return f.err
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	f.seed(*ticket)
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, organizationID, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok || t.OrganizationID != organizationID {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTicketRepo) scoped(organizationID string) []domain.Ticket {
	var out []domain.Ticket
	for _, id := range f.order {
		if t := f.tickets[id]; t.OrganizationID == organizationID {
			out = append(out, *t)
		}
	}
	return out
}

func (f *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	all := f.scoped(filter.OrganizationID)
	if filter.Offset >= len(all) {
		return []domain.Ticket{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

func (f *fakeTicketRepo) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return len(f.scoped(filter.OrganizationID)), nil
}

func (f *fakeTicketRepo) Patch(_ context.Context, organizationID, id string, patch repository.TicketPatch) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok || t.OrganizationID != organizationID {
		return nil, pgx.ErrNoRows
	}
	if patch.AssignedToID != nil && f.eligible[*patch.AssignedToID] != organizationID {
		return nil, repository.ErrAgentNotEligible
	}
	if patch.Status != nil {
		t.Status = *patch.Status
		if t.Status.Terminal() && t.ResolvedAt == nil {
			now := time.Now()
			t.ResolvedAt = &now
		}
	}
	if patch.Priority != nil {
		t.Priority = patch.Priority
	}
	if patch.Category != nil {
		t.Category = patch.Category
	}
	if patch.AssignedToID != nil {
		t.AssignedToID = patch.AssignedToID
	} else if patch.Unassign {
		t.AssignedToID = nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTicketRepo) RecordFirstResponse(_ context.Context, organizationID, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok || t.OrganizationID != organizationID {
		return nil, pgx.ErrNoRows
	}
	if t.FirstResponseAt == nil {
		now := time.Now()
		t.FirstResponseAt = &now
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTicketRepo) ApplyEnrichment(ctx context.Context, organizationID, id string, result domain.EnrichmentResult) (*domain.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok || t.OrganizationID != organizationID {
		return nil, nil
	}
	if result.Sentiment != nil {
		t.Sentiment = result.Sentiment
	}
	if result.SentimentScore != nil {
		t.SentimentScore = result.SentimentScore
	}
	if t.Priority == nil {
		t.Priority = result.Priority
	}
	if t.Category == nil {
		t.Category = result.Category
	}
	if result.Language != nil {
		t.Language = result.Language
	}
	if result.Summary != nil {
		t.AISummary = result.Summary
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTicketRepo) BulkUpdate(_ context.Context, organizationID string, ids []string, mutation repository.BulkMutation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	matched := 0
	for _, id := range ids {
		if t, ok := f.tickets[id]; ok && t.OrganizationID == organizationID {
			matched++
		}
	}
	if matched < len(ids) {
		return 0, &repository.TenantMismatchError{Requested: len(ids), Matched: matched}
	}
	if mutation.Action == domain.BulkAssign && f.eligible[mutation.AgentID] != organizationID {
		return 0, repository.ErrAgentNotEligible
	}
	for _, id := range ids {
		t := f.tickets[id]
		switch mutation.Action {
		case domain.BulkSetStatus:
			t.Status = mutation.Status
			if t.Status.Terminal() && t.ResolvedAt == nil {
				now := time.Now()
				t.ResolvedAt = &now
			}
		case domain.BulkSetPriority:
			p := mutation.Priority
			t.Priority = &p
		case domain.BulkAssign:
			agent := mutation.AgentID
			t.AssignedToID = &agent
		case domain.BulkUnassign:
			t.AssignedToID = nil
		}
	}
	return len(ids), nil
}

func (f *fakeTicketRepo) ListUnassigned(_ context.Context, organizationID string, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.scoped(organizationID) {
		if t.AssignedToID == nil && t.Status.Monitored() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityRank() > out[j].PriorityRank() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTicketRepo) ApplyAssignments(_ context.Context, organizationID string, assignments []domain.Assignment) ([]domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var applied []domain.Assignment
	for _, a := range assignments {
		t, ok := f.tickets[a.TicketID]
		if !ok || t.OrganizationID != organizationID || t.AssignedToID != nil {
			continue
		}
		if f.eligible[a.AgentID] != organizationID {
			continue
		}
		agent := a.AgentID
		t.AssignedToID = &agent
		t.Status = domain.TicketStatusInProgress
		applied = append(applied, a)
	}
	return applied, nil
}

func (f *fakeTicketRepo) ListMonitored(_ context.Context, organizationID string) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.scoped(organizationID) {
		if t.Status.Monitored() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListActiveOrganizations(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var orgs []string
	for _, id := range f.order {
		t := f.tickets[id]
		if t.Status.Monitored() && !seen[t.OrganizationID] {
			seen[t.OrganizationID] = true
			orgs = append(orgs, t.OrganizationID)
		}
	}
	return orgs, nil
}

type fakeAgentRepo struct {
	agents []domain.AgentLoad
}

func (f *fakeAgentRepo) GetByID(_ context.Context, organizationID, id string) (*domain.Agent, error) {
	for _, a := range f.agents {
		if a.ID == id && a.OrganizationID == organizationID {
			agent := a.Agent
			return &agent, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAgentRepo) ListEligibleWithLoad(_ context.Context, organizationID string) ([]domain.AgentLoad, error) {
	var out []domain.AgentLoad
	for _, a := range f.agents {
		if a.Eligible(organizationID) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakePolicyRepo struct {
	rows []domain.SlaPolicy
}

func (f *fakePolicyRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.SlaPolicy, error) {
	var out []domain.SlaPolicy
	for _, r := range f.rows {
		if r.OrganizationID == organizationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakePolicyRepo) Upsert(_ context.Context, policy *domain.SlaPolicy) error {
	for i, r := range f.rows {
		if r.OrganizationID == policy.OrganizationID && r.Priority == policy.Priority {
			f.rows[i].MaxResponseMinutes = policy.MaxResponseMinutes
			return nil
		}
	}
	policy.ID = uuid.NewString()
	f.rows = append(f.rows, *policy)
	return nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.err
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memoryLocker struct {
	held map[string]bool
}

func (l *memoryLocker) AcquireOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memoryLocker) Release(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

var errClassifierDown = errors.New("classifier unavailable")

type stubClassifier struct {
	result  domain.EnrichmentResult
	err     error
	panics  bool
	release chan struct{}

	// answerAtDeadline returns result only once the call's context has expired.
	answerAtDeadline bool
}

func (c *stubClassifier) Analyze(ctx context.Context, _, _ string) (domain.EnrichmentResult, error) {
	if c.answerAtDeadline {
		<-ctx.Done()
		return c.result, nil
	}
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return domain.EnrichmentResult{}, ctx.Err()
		}
	}
	if c.panics {
		panic("classifier exploded")
	}
	return c.result, c.err
}

func ptr[T any](v T) *T {
	return &v
}
