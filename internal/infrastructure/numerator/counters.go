// Package numerator provides the PostgreSQL counter store behind invoice
// numbering. Every primitive is a single atomic statement: the counter row
// is created on first use and its value never decreases.
package numerator

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	corenumerator "invoicenum/internal/core/numerator"
	"invoicenum/internal/infrastructure/storage/postgres"
)

// Querier is the subset of pgx used here.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	incrementSQL = `
		INSERT INTO invoice_counters (tenant_id, reset_period, period_key, last_value, updated_at)
		VALUES ($1, $2, $3, 1, now())
		ON CONFLICT (tenant_id, reset_period, period_key)
		DO UPDATE SET last_value = invoice_counters.last_value + 1, updated_at = now()
		RETURNING last_value`

	raiseToSQL = `
		INSERT INTO invoice_counters (tenant_id, reset_period, period_key, last_value, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (tenant_id, reset_period, period_key)
		DO UPDATE SET last_value = GREATEST(invoice_counters.last_value, EXCLUDED.last_value), updated_at = now()
		RETURNING last_value`

	currentSQL = `
		SELECT COALESCE(MAX(last_value), 0)
		FROM invoice_counters
		WHERE tenant_id = $1 AND reset_period = $2 AND period_key = $3`

	listSQL = `
		SELECT tenant_id, reset_period, period_key, last_value, updated_at
		FROM invoice_counters
		WHERE tenant_id = $1
		ORDER BY reset_period ASC, period_key DESC`
)

// Repository implements corenumerator.CounterRepository.
type Repository struct {
	querier func(ctx context.Context) Querier
}

var _ corenumerator.CounterRepository = (*Repository)(nil)

// New creates a counter repository that joins the transaction carried by ctx.
func New(txm *postgres.TxManager) *Repository {
	return &Repository{querier: func(ctx context.Context) Querier { return txm.GetQuerier(ctx) }}
}

// NewWithQuerier creates a repository over a fixed querier.
func NewWithQuerier(q Querier) *Repository {
	return &Repository{querier: func(context.Context) Querier { return q }}
}

func (r *Repository) scalar(ctx context.Context, op, sql string, args ...any) (int64, error) {
	var v int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("%s counter: %w", op, err)
	}
	return v, nil
}

// Current returns the stored value or 0 when the counter has not been used.
func (r *Repository) Current(ctx context.Context, scope corenumerator.Scope) (int64, error) {
	return r.scalar(ctx, "read", currentSQL, scope.TenantID, scope.ResetPeriod, scope.PeriodKey)
}

// RaiseTo sets the counter to max(stored, floor).
func (r *Repository) RaiseTo(ctx context.Context, scope corenumerator.Scope, floor int64) (int64, error) {
	return r.scalar(ctx, "raise", raiseToSQL, scope.TenantID, scope.ResetPeriod, scope.PeriodKey, floor)
}

// Increment bumps the counter, creating it at 1 on first use. The row lock
// taken by the upsert serializes concurrent callers until commit.
func (r *Repository) Increment(ctx context.Context, scope corenumerator.Scope) (int64, error) {
	return r.scalar(ctx, "increment", incrementSQL, scope.TenantID, scope.ResetPeriod, scope.PeriodKey)
}

// ListByTenant returns a tenant's counters.
func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]corenumerator.Counter, error) {
	var out []corenumerator.Counter
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, listSQL, tenantID); err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	return out, nil
}
