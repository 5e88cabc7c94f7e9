package numbering

import (
	"context"
	"errors"
	"fmt"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/numerator"
)

// Departments manages the department directory used by {DEPT} tokens.
type Departments struct {
	dir DepartmentDirectory
}

// NewDepartments creates the department service.
func NewDepartments(dir DepartmentDirectory) *Departments {
	return &Departments{dir: dir}
}

// Create registers a department for a tenant.
func (d *Departments) Create(ctx context.Context, tenantID, code, name string) (*numerator.Department, error) {
	dep, err := numerator.NewDepartment(tenantID, code, name)
	if err != nil {
		return nil, err
	}
	if err := d.dir.Create(ctx, dep); err != nil {
		if errors.Is(err, ErrDuplicateDepartment) {
			return nil, apperror.NewConflict("department code already exists").WithDetail("code", dep.Code)
		}
		return nil, fmt.Errorf("create department: %w", err)
	}
	return dep, nil
}

// List returns a tenant's departments ordered by code.
func (d *Departments) List(ctx context.Context, tenantID string) ([]*numerator.Department, error) {
	return d.dir.List(ctx, tenantID)
}

// Lookup resolves an optional department code for generation. An empty code
// means "no department"; unknown or inactive codes are rejected.
func (d *Departments) Lookup(ctx context.Context, tenantID, code string) (*numerator.Department, error) {
	code = numerator.NormalizeDepartmentCode(code)
	if code == "" {
		return nil, nil
	}
	dep, err := d.dir.FindByCode(ctx, tenantID, code)
	if err != nil {
		return nil, fmt.Errorf("find department: %w", err)
	}
	if dep == nil {
		return nil, apperror.NewValidation("unknown department").WithDetail("departmentCode", code)
	}
	if !dep.Active {
		return nil, apperror.NewValidation("department is inactive").WithDetail("departmentCode", code)
	}
	return dep, nil
}
