package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the part of pgxpool.Pool (and pgx.Tx) the repositories rely on.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ErrAgentNotEligible is returned when an assignee is inactive, has the wrong role,
// or belongs to another organization.
var ErrAgentNotEligible = errors.New("agent not eligible for assignment")

// TenantMismatchError reports a bulk request naming tickets outside the caller's organization.
type TenantMismatchError struct {
	Requested int
	Matched   int
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("%d of %d tickets not found in organization", e.Requested-e.Matched, e.Requested)
}

// predicates accumulates AND-combined SQL conditions with positional arguments.
// It always starts from the tenant predicate.
type predicates struct {
	clauses []string
	args    []any
}

func tenantPredicates(column, organizationID string) *predicates {
	p := &predicates{}
	p.add(column+" = %s", organizationID)
	return p
}

// add appends a clause; each %s in format receives the placeholder of arg.
func (p *predicates) add(format string, arg any) {
	p.args = append(p.args, arg)
	placeholder := fmt.Sprintf("$%d", len(p.args))
	p.clauses = append(p.clauses, strings.ReplaceAll(format, "%s", placeholder))
}

func (p *predicates) addRaw(clause string) {
	p.clauses = append(p.clauses, clause)
}

func (p *predicates) where() string {
	return strings.Join(p.clauses, " AND ")
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// escapeLike makes user input literal inside a LIKE/ILIKE pattern.
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
