package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// SlaPolicyRepository stores per-organization response targets.
type SlaPolicyRepository interface {
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.SlaPolicy, error)
	Upsert(ctx context.Context, policy *domain.SlaPolicy) error
}

type slaPolicyRepository struct {
	db DB
}

// NewSlaPolicyRepository builds repository.
func NewSlaPolicyRepository(db DB) SlaPolicyRepository {
	return &slaPolicyRepository{db: db}
}

func (r *slaPolicyRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.SlaPolicy, error) {
	const query = `
        SELECT id, organization_id, priority, max_response_minutes, created_at, updated_at
        FROM sla_policies WHERE organization_id=$1`
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SlaPolicy, error) {
		var policy domain.SlaPolicy
		err := row.Scan(
			&policy.ID,
			&policy.OrganizationID,
			&policy.Priority,
			&policy.MaxResponseMinutes,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		)
		return policy, err
	})
}

// Upsert keeps at most one row per (organization, priority).
func (r *slaPolicyRepository) Upsert(ctx context.Context, policy *domain.SlaPolicy) error {
	const query = `
        INSERT INTO sla_policies (organization_id, priority, max_response_minutes)
        VALUES ($1,$2,$3)
        ON CONFLICT (organization_id, priority)
        DO UPDATE SET max_response_minutes = EXCLUDED.max_response_minutes, updated_at = NOW()
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		policy.OrganizationID,
		policy.Priority,
		policy.MaxResponseMinutes,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
}
