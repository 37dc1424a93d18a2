package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// AgentRepository reads the operators of an organization.
type AgentRepository interface {
	GetByID(ctx context.Context, organizationID, id string) (*domain.Agent, error)
	ListEligibleWithLoad(ctx context.Context, organizationID string) ([]domain.AgentLoad, error)
}

type agentRepository struct {
	db DB
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(db DB) AgentRepository {
	return &agentRepository{db: db}
}

func (r *agentRepository) GetByID(ctx context.Context, organizationID, id string) (*domain.Agent, error) {
	const query = `
        SELECT id, organization_id, name, email, role, active_flag, created_at, updated_at
        FROM users WHERE id=$1 AND organization_id=$2`

	var agent domain.Agent
	if err := r.db.QueryRow(ctx, query, id, organizationID).Scan(
		&agent.ID,
		&agent.OrganizationID,
		&agent.Name,
		&agent.Email,
		&agent.Role,
		&agent.Active,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListEligibleWithLoad returns active agents with their open/in-progress ticket counts,
// least loaded first.
func (r *agentRepository) ListEligibleWithLoad(ctx context.Context, organizationID string) ([]domain.AgentLoad, error) {
	const query = `
        SELECT u.id, u.organization_id, u.name, u.email, u.role, u.active_flag, u.created_at, u.updated_at,
               COUNT(t.id) AS open_tickets
        FROM users u
        LEFT JOIN tickets t
               ON t.assigned_to_id = u.id
              AND t.organization_id = u.organization_id
              AND t.status IN ('OPEN','IN_PROGRESS')
        WHERE u.organization_id=$1 AND u.active_flag AND u.role IN ('AGENT','ADMIN')
        GROUP BY u.id
        ORDER BY open_tickets ASC, u.created_at ASC, u.id ASC`

	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AgentLoad, error) {
		var load domain.AgentLoad
		err := row.Scan(
			&load.ID,
			&load.OrganizationID,
			&load.Name,
			&load.Email,
			&load.Role,
			&load.Active,
			&load.CreatedAt,
			&load.UpdatedAt,
			&load.OpenTickets,
		)
		return load, err
	})
}
