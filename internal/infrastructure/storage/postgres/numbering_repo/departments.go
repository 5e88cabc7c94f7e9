package numbering_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/storage/postgres"
)

const (
	departmentsTable         = "departments"
	constraintDepartmentCode = "uq_departments_code"
)

var departmentColumns = postgres.ExtractDBColumns[numerator.Department]()

// DepartmentRepo implements numbering.DepartmentDirectory.
type DepartmentRepo struct {
	txm *postgres.TxManager
}

// NewDepartmentRepo creates a department directory.
func NewDepartmentRepo(txm *postgres.TxManager) *DepartmentRepo {
	return &DepartmentRepo{txm: txm}
}

func (r *DepartmentRepo) FindByCode(ctx context.Context, tenantID, code string) (*numerator.Department, error) {
	sql, args, err := builder().Select(departmentColumns...).From(departmentsTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "code": code}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var d numerator.Department
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DepartmentRepo) Create(ctx context.Context, d *numerator.Department) error {
	sql, args, err := builder().Insert(departmentsTable).SetMap(postgres.StructToMap(d)).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if c, ok := postgres.UniqueViolation(err); ok && c == constraintDepartmentCode {
			return fmt.Errorf("%w: %s", numbering.ErrDuplicateDepartment, d.Code)
		}
		return err
	}
	return nil
}

func (r *DepartmentRepo) List(ctx context.Context, tenantID string) ([]*numerator.Department, error) {
	sql, args, err := builder().Select(departmentColumns...).From(departmentsTable).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []*numerator.Department
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, err
	}
	return out, nil
}

var _ numbering.DepartmentDirectory = (*DepartmentRepo)(nil)
