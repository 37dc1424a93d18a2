package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// TicketSortKey is an allow-listed sort column for ticket listings.
type TicketSortKey string

const (
	SortByCreatedAt TicketSortKey = "createdAt"
	SortByUpdatedAt TicketSortKey = "updatedAt"
	SortByPriority  TicketSortKey = "priority"
	SortBySubject   TicketSortKey = "subject"
)

var sortColumns = map[TicketSortKey]string{
	SortByCreatedAt: "created_at",
	SortByUpdatedAt: "updated_at",
	SortByPriority:  priorityRankSQL,
	SortBySubject:   "subject",
}

// ValidSortKey reports whether key is on the allow-list.
func ValidSortKey(key TicketSortKey) bool {
	_, ok := sortColumns[key]
	return ok
}

const priorityRankSQL = `CASE priority WHEN 'URGENT' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END`

// TicketFilter captures listing parameters. OrganizationID is mandatory.
type TicketFilter struct {
	OrganizationID string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	Sentiments     []domain.Sentiment
	Channels       []domain.TicketChannel
	AssignedToID   *string
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	SortBy         TicketSortKey
	SortDesc       bool
	Limit          int
	Offset         int
}

// TicketPatch lists agent-driven field changes; nil fields are left untouched.
type TicketPatch struct {
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	Category     *string
	AssignedToID *string
	Unassign     bool
}

// BulkMutation is one validated bulk action with its value.
type BulkMutation struct {
	Action   domain.BulkAction
	Status   domain.TicketStatus
	Priority domain.TicketPriority
	AgentID  string
}

// TicketRepository is the tenant-scoped ticket store.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, organizationID, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	Patch(ctx context.Context, organizationID, id string, patch TicketPatch) (*domain.Ticket, error)
	RecordFirstResponse(ctx context.Context, organizationID, id string) (*domain.Ticket, error)
	ApplyEnrichment(ctx context.Context, organizationID, id string, result domain.EnrichmentResult) (*domain.Ticket, error)
	BulkUpdate(ctx context.Context, organizationID string, ids []string, mutation BulkMutation) (int, error)
	ListUnassigned(ctx context.Context, organizationID string, limit int) ([]domain.Ticket, error)
	ApplyAssignments(ctx context.Context, organizationID string, assignments []domain.Assignment) ([]domain.Assignment, error)
	ListMonitored(ctx context.Context, organizationID string) ([]domain.Ticket, error)
	ListActiveOrganizations(ctx context.Context) ([]string, error)
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, organization_id, subject, body, channel, status, priority, category,
               sentiment, sentiment_score, language, ai_summary, customer_name, customer_email,
               assigned_to_id, created_at, updated_at, resolved_at, first_response_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (organization_id, subject, body, channel, status, priority, category, customer_name, customer_email)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.OrganizationID,
		ticket.Subject,
		ticket.Body,
		ticket.Channel,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.CustomerName,
		ticket.CustomerEmail,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, organizationID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND organization_id=$2`
	return scanTicket(r.db.QueryRow(ctx, query, id, organizationID))
}

// buildTicketQuery renders the WHERE clause and arguments for filter.
func buildTicketQuery(filter TicketFilter) *predicates {
	p := tenantPredicates("organization_id", filter.OrganizationID)

	if len(filter.Statuses) > 0 {
		p.add("status = ANY(%s)", stringsOf(filter.Statuses))
	}
	if len(filter.Priorities) > 0 {
		p.add("priority = ANY(%s)", stringsOf(filter.Priorities))
	}
	if len(filter.Sentiments) > 0 {
		p.add("sentiment = ANY(%s)", stringsOf(filter.Sentiments))
	}
	if len(filter.Channels) > 0 {
		p.add("channel = ANY(%s)", stringsOf(filter.Channels))
	}
	if filter.AssignedToID != nil {
		p.add("assigned_to_id = %s", *filter.AssignedToID)
	}
	if filter.CreatedFrom != nil {
		p.add("created_at >= %s", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		p.add("created_at <= %s", *filter.CreatedTo)
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + escapeLike(strings.TrimSpace(*filter.SearchTerm)) + "%"
		p.add("(subject ILIKE %s OR customer_name ILIKE %s OR customer_email ILIKE %s OR ai_summary ILIKE %s)", search)
	}
	return p
}

func orderClause(filter TicketFilter) string {
	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = sortColumns[SortByCreatedAt]
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id ASC", column, direction)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	p := buildTicketQuery(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s %s LIMIT %d OFFSET %d`,
		ticketColumns, p.where(), orderClause(filter), limit, offset)

	rows, err := r.db.Query(ctx, query, p.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	p := buildTicketQuery(filter)
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+p.where(), p.args...).Scan(&total)
	return total, err
}

func (r *ticketRepository) Patch(ctx context.Context, organizationID, id string, patch TicketPatch) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if patch.AssignedToID != nil {
			if err := ensureEligibleAgent(ctx, tx, organizationID, *patch.AssignedToID); err != nil {
				return err
			}
		}

		sets := []string{"updated_at = NOW()"}
		args := []any{id, organizationID}
		set := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}
		if patch.Status != nil {
			set("status", *patch.Status)
			if patch.Status.Terminal() {
				sets = append(sets, "resolved_at = COALESCE(resolved_at, NOW())")
			}
		}
		if patch.Priority != nil {
			set("priority", *patch.Priority)
		}
		if patch.Category != nil {
			set("category", *patch.Category)
		}
		if patch.AssignedToID != nil {
			set("assigned_to_id", *patch.AssignedToID)
		} else if patch.Unassign {
			sets = append(sets, "assigned_to_id = NULL")
		}

		query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$1 AND organization_id=$2 RETURNING %s`,
			strings.Join(sets, ", "), ticketColumns)
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) RecordFirstResponse(ctx context.Context, organizationID, id string) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET first_response_at = COALESCE(first_response_at, NOW()), updated_at = NOW()
        WHERE id=$1 AND organization_id=$2
        RETURNING ` + ticketColumns
	return scanTicket(r.db.QueryRow(ctx, query, id, organizationID))
}

// ApplyEnrichment merges classifier output into the ticket. Priority and category keep
// any value an agent already set. It returns the stored row, or nil when the ticket no longer exists.
func (r *ticketRepository) ApplyEnrichment(ctx context.Context, organizationID, id string, result domain.EnrichmentResult) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET
            sentiment = COALESCE($3, sentiment),
            sentiment_score = COALESCE($4, sentiment_score),
            priority = COALESCE(priority, $5),
            category = COALESCE(category, $6),
            language = COALESCE($7, language),
            ai_summary = COALESCE($8, ai_summary),
            updated_at = NOW()
        WHERE id=$1 AND organization_id=$2
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.db.QueryRow(ctx, query,
		id,
		organizationID,
		result.Sentiment,
		result.SentimentScore,
		result.Priority,
		result.Category,
		result.Language,
		result.Summary,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// BulkUpdate applies mutation to every id in one statement, inside a transaction that first
// locks the rows and rejects the whole batch if any id is outside the organization.
func (r *ticketRepository) BulkUpdate(ctx context.Context, organizationID string, ids []string, mutation BulkMutation) (int, error) {
	var updated int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id FROM tickets WHERE organization_id=$1 AND id = ANY($2) FOR UPDATE`,
			organizationID, ids)
		if err != nil {
			return err
		}
		matched, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		if len(matched) < len(ids) {
			return &TenantMismatchError{Requested: len(ids), Matched: len(matched)}
		}

		if mutation.Action == domain.BulkAssign {
			if err := ensureEligibleAgent(ctx, tx, organizationID, mutation.AgentID); err != nil {
				return err
			}
		}

		sets, args := bulkSetClause(mutation, organizationID, ids)
		cmd, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE tickets SET %s WHERE organization_id=$1 AND id = ANY($2)`, sets),
			args...)
		if err != nil {
			return err
		}
		updated = int(cmd.RowsAffected())
		return nil
	})
	return updated, err
}

func bulkSetClause(mutation BulkMutation, organizationID string, ids []string) (string, []any) {
	args := []any{organizationID, ids}
	sets := []string{"updated_at = NOW()"}
	switch mutation.Action {
	case domain.BulkSetStatus:
		args = append(args, mutation.Status)
		sets = append(sets, "status = $3")
		if mutation.Status.Terminal() {
			sets = append(sets, "resolved_at = COALESCE(resolved_at, NOW())")
		}
	case domain.BulkSetPriority:
		args = append(args, mutation.Priority)
		sets = append(sets, "priority = $3")
	case domain.BulkAssign:
		args = append(args, mutation.AgentID)
		sets = append(sets, "assigned_to_id = $3")
	case domain.BulkUnassign:
		sets = append(sets, "assigned_to_id = NULL")
	}
	return strings.Join(sets, ", "), args
}

func ensureEligibleAgent(ctx context.Context, tx pgx.Tx, organizationID, agentID string) error {
	var exists bool
	err := tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM users
            WHERE id=$1 AND organization_id=$2 AND active_flag AND role IN ('AGENT','ADMIN'))`,
		agentID, organizationID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAgentNotEligible
	}
	return nil
}

func (r *ticketRepository) ListUnassigned(ctx context.Context, organizationID string, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE organization_id=$1 AND assigned_to_id IS NULL AND status IN ('OPEN','IN_PROGRESS')
        ORDER BY %s DESC, created_at ASC
        LIMIT %d`, ticketColumns, priorityRankSQL, limit)
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ApplyAssignments writes a whole scheduling pass in one statement. Tickets that were
// assigned concurrently, or whose agent stopped being eligible, are left out of the result.
func (r *ticketRepository) ApplyAssignments(ctx context.Context, organizationID string, assignments []domain.Assignment) ([]domain.Assignment, error) {
	if len(assignments) == 0 {
		return nil, nil
	}
	ticketIDs := make([]string, len(assignments))
	agentIDs := make([]string, len(assignments))
	for i, a := range assignments {
		ticketIDs[i] = a.TicketID
		agentIDs[i] = a.AgentID
	}

	const query = `
        UPDATE tickets AS t
        SET assigned_to_id = a.agent_id, status = 'IN_PROGRESS', updated_at = NOW()
        FROM unnest($2::uuid[], $3::uuid[]) AS a(ticket_id, agent_id)
        WHERE t.id = a.ticket_id
          AND t.organization_id = $1
          AND t.assigned_to_id IS NULL
          AND EXISTS (
              SELECT 1 FROM users u
              WHERE u.id = a.agent_id AND u.organization_id = $1 AND u.active_flag AND u.role IN ('AGENT','ADMIN'))
        RETURNING t.id, t.assigned_to_id`

	var applied []domain.Assignment
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, organizationID, ticketIDs, agentIDs)
		if err != nil {
			return err
		}
		applied, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Assignment, error) {
			var a domain.Assignment
			err := row.Scan(&a.TicketID, &a.AgentID)
			return a, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (r *ticketRepository) ListMonitored(ctx context.Context, organizationID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE organization_id=$1 AND status IN ('OPEN','IN_PROGRESS')
        ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListActiveOrganizations(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
        SELECT DISTINCT organization_id FROM tickets
        WHERE status IN ('OPEN','IN_PROGRESS')`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OrganizationID,
		&ticket.Subject,
		&ticket.Body,
		&ticket.Channel,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.Sentiment,
		&ticket.SentimentScore,
		&ticket.Language,
		&ticket.AISummary,
		&ticket.CustomerName,
		&ticket.CustomerEmail,
		&ticket.AssignedToID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.FirstResponseAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
