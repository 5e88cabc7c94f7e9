// Package numbering_repo provides PostgreSQL implementations of the numbering
// repositories. All tenants share one database; every query filters by
// tenant_id.
package numbering_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/storage/postgres"
)

const schemesTable = "numbering_schemes"

// Constraint names from the schemes migration.
const (
	constraintSchemeVersion = "uq_numbering_schemes_version"
	constraintOneActive     = "uq_numbering_schemes_one_active"
)

var schemeColumns = postgres.ExtractDBColumns[numbering.NumberingScheme]()

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// SchemeRepo implements numbering.SchemeRepository.
type SchemeRepo struct {
	txm *postgres.TxManager
}

// NewSchemeRepo creates a scheme repository.
func NewSchemeRepo(txm *postgres.TxManager) *SchemeRepo {
	return &SchemeRepo{txm: txm}
}

func selectSchemes(tenantID string) squirrel.SelectBuilder {
	return builder().Select(schemeColumns...).From(schemesTable).Where(squirrel.Eq{"tenant_id": tenantID})
}

// effectiveQuery ranks ACTIVE first, then later effective_from, then higher version.
func effectiveQuery(tenantID string, date time.Time) squirrel.SelectBuilder {
	return selectSchemes(tenantID).
		Where(squirrel.LtOrEq{"effective_from": date}).
		Where(squirrel.Eq{"status": []numbering.SchemeStatus{numbering.StatusActive, numbering.StatusArchived}}).
		OrderBy(
			"CASE WHEN status = 'ACTIVE' THEN 0 ELSE 1 END",
			"effective_from DESC",
			"version DESC",
		).
		Limit(1)
}

func (r *SchemeRepo) getOne(ctx context.Context, q squirrel.Sqlizer) (*numbering.NumberingScheme, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var s numbering.NumberingScheme
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SchemeRepo) FindEffective(ctx context.Context, tenantID string, date time.Time) (*numbering.NumberingScheme, error) {
	return r.getOne(ctx, effectiveQuery(tenantID, date))
}

func (r *SchemeRepo) FindActiveForUpdate(ctx context.Context, tenantID string, effectiveFrom time.Time) (*numbering.NumberingScheme, error) {
	return r.getOne(ctx, selectSchemes(tenantID).
		Where(squirrel.Eq{"effective_from": effectiveFrom, "status": numbering.StatusActive}).
		Suffix("FOR UPDATE"))
}

func (r *SchemeRepo) ArchiveActive(ctx context.Context, tenantID string, at time.Time) ([]id.ID, error) {
	sql, args, err := builder().Update(schemesTable).
		Set("status", numbering.StatusArchived).
		Set("archived_at", at).
		Where(squirrel.Eq{"tenant_id": tenantID, "status": numbering.StatusActive}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *SchemeRepo) MaxVersion(ctx context.Context, tenantID string, effectiveFrom time.Time) (int, error) {
	sql, args, err := builder().Select("COALESCE(MAX(version), 0)").From(schemesTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "effective_from": effectiveFrom}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var v int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// Insert maps unique violations on either scheme constraint to
// numbering.ErrSchemeCollision.
func (r *SchemeRepo) Insert(ctx context.Context, s *numbering.NumberingScheme) error {
	sql, args, err := builder().Insert(schemesTable).SetMap(postgres.StructToMap(s)).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return classifySchemeError(err)
	}
	return nil
}

func classifySchemeError(err error) error {
	if constraint, ok := postgres.UniqueViolation(err); ok {
		switch constraint {
		case constraintSchemeVersion, constraintOneActive:
			return fmt.Errorf("%w: %s", numbering.ErrSchemeCollision, constraint)
		}
	}
	return err
}

func (r *SchemeRepo) GetByID(ctx context.Context, tenantID string, schemeID id.ID, forUpdate bool) (*numbering.NumberingScheme, error) {
	q := selectSchemes(tenantID).Where(squirrel.Eq{"id": schemeID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	s, err := r.getOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperror.NewNotFound(numbering.EntityType, schemeID.String())
	}
	return s, nil
}

func (r *SchemeRepo) UpdateStatus(ctx context.Context, s *numbering.NumberingScheme) error {
	sql, args, err := builder().Update(schemesTable).
		Set("status", s.Status).
		Set("archived_at", s.ArchivedAt).
		Where(squirrel.Eq{"tenant_id": s.TenantID, "id": s.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return classifySchemeError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(numbering.EntityType, s.ID.String())
	}
	return nil
}

func listQuery(tenantID string, activeOnly bool) squirrel.SelectBuilder {
	q := selectSchemes(tenantID).OrderBy("effective_from DESC", "version DESC")
	if activeOnly {
		q = q.Where(squirrel.Eq{"status": numbering.StatusActive})
	}
	return q
}

func (r *SchemeRepo) List(ctx context.Context, tenantID string, activeOnly bool) ([]*numbering.NumberingScheme, error) {
	sql, args, err := listQuery(tenantID, activeOnly).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []*numbering.NumberingScheme
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, err
	}
	return out, nil
}

var _ numbering.SchemeRepository = (*SchemeRepo)(nil)
