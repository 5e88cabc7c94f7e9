package memory

import (
	"context"
	"slices"
	"strings"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
)

// DepartmentRepo implements numbering.DepartmentDirectory.
type DepartmentRepo struct{ s *Store }

func (r *DepartmentRepo) FindByCode(ctx context.Context, tenantID, code string) (*numerator.Department, error) {
	var found *numerator.Department
	err := r.s.do(ctx, func() error {
		for _, d := range r.s.st.departments {
			if d.TenantID == tenantID && d.Code == code {
				found = &d
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *DepartmentRepo) Create(ctx context.Context, d *numerator.Department) error {
	return r.s.do(ctx, func() error {
		for _, existing := range r.s.st.departments {
			if existing.TenantID == d.TenantID && existing.Code == d.Code {
				return numbering.ErrDuplicateDepartment
			}
		}
		r.s.st.departments[d.ID] = *d
		return nil
	})
}

func (r *DepartmentRepo) List(ctx context.Context, tenantID string) ([]*numerator.Department, error) {
	var out []*numerator.Department
	err := r.s.do(ctx, func() error {
		for _, d := range r.s.st.departments {
			if d.TenantID == tenantID {
				out = append(out, &d)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *numerator.Department) int { return strings.Compare(a.Code, b.Code) })
	return out, err
}

var _ numbering.DepartmentDirectory = (*DepartmentRepo)(nil)
