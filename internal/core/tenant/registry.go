package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry resolves the sellers whose invoices are numbered.
type Registry interface {
	// GetByID returns ErrTenantNotFound for unknown or malformed ids.
	GetByID(ctx context.Context, tenantID string) (*Tenant, error)

	// ListActive returns tenants that may issue numbers, ordered by slug.
	// The reconciliation worker scans exactly these.
	ListActive(ctx context.Context) ([]*Tenant, error)

	// ListAll returns every tenant ordered by slug.
	ListAll(ctx context.Context) ([]*Tenant, error)

	// Create stores t and fills ID and timestamps. A reused slug yields ErrTenantExists.
	Create(ctx context.Context, t *Tenant) error

	// UpdateStatusByID suspends, reactivates or deletes a tenant.
	UpdateStatusByID(ctx context.Context, tenantID string, status Status) error
}

var tenantColumns = []string{"id", "slug", "display_name", "status", "created_at", "updated_at"}

func tenantQuery() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func selectTenants() squirrel.SelectBuilder {
	return tenantQuery().Select(tenantColumns...).From("tenants")
}

func listTenantsQuery(activeOnly bool) squirrel.SelectBuilder {
	q := selectTenants()
	if activeOnly {
		q = q.Where(squirrel.Eq{"status": StatusActive})
	}
	return q.OrderBy("slug")
}

func insertTenantQuery(t *Tenant) squirrel.InsertBuilder {
	return tenantQuery().Insert("tenants").
		Columns("slug", "display_name", "status").
		Values(t.Slug, t.DisplayName, t.Status).
		Suffix("RETURNING id, created_at, updated_at")
}

func updateStatusQuery(tenantID string, status Status) squirrel.UpdateBuilder {
	return tenantQuery().Update("tenants").
		Set("status", status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": tenantID})
}

// PostgresRegistry implements Registry over the tenants table. It reads the
// pool directly: tenant lookups never join a numbering transaction.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) GetByID(ctx context.Context, tenantID string) (*Tenant, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, ErrTenantNotFound
	}
	sql, args, err := selectTenants().Where(squirrel.Eq{"id": tenantID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tenant query: %w", err)
	}

	var t Tenant
	if err := pgxscan.Get(ctx, r.pool, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant %s: %w", tenantID, err)
	}
	return &t, nil
}

func (r *PostgresRegistry) list(ctx context.Context, activeOnly bool) ([]*Tenant, error) {
	sql, args, err := listTenantsQuery(activeOnly).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tenant list query: %w", err)
	}
	var tenants []*Tenant
	if err := pgxscan.Select(ctx, r.pool, &tenants, sql, args...); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (r *PostgresRegistry) ListActive(ctx context.Context) ([]*Tenant, error) {
	return r.list(ctx, true)
}

func (r *PostgresRegistry) ListAll(ctx context.Context) ([]*Tenant, error) {
	return r.list(ctx, false)
}

func (r *PostgresRegistry) Create(ctx context.Context, t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is nil")
	}
	if t.Status == "" {
		t.Status = StatusActive
	}

	sql, args, err := insertTenantQuery(t).ToSql()
	if err != nil {
		return fmt.Errorf("build tenant insert: %w", err)
	}
	err = r.pool.QueryRow(ctx, sql, args...).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrTenantExists, t.Slug)
	}
	if err != nil {
		return fmt.Errorf("create tenant %s: %w", t.Slug, err)
	}
	return nil
}

func (r *PostgresRegistry) UpdateStatusByID(ctx context.Context, tenantID string, status Status) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return ErrTenantNotFound
	}
	sql, args, err := updateStatusQuery(tenantID, status).ToSql()
	if err != nil {
		return fmt.Errorf("build tenant status update: %w", err)
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update tenant %s status: %w", tenantID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

var _ Registry = (*PostgresRegistry)(nil)
