package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"invoicenum/internal/core/id"
	"invoicenum/internal/core/tenant"
)

// TenantRegistry implements tenant.Registry.
type TenantRegistry struct{ s *Store }

func (r *TenantRegistry) GetByID(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	var found *tenant.Tenant
	err := r.s.do(ctx, func() error {
		t, ok := r.s.st.tenants[tenantID]
		if !ok {
			return tenant.ErrTenantNotFound
		}
		found = &t
		return nil
	})
	return found, err
}

func (r *TenantRegistry) list(ctx context.Context, activeOnly bool) ([]*tenant.Tenant, error) {
	var out []*tenant.Tenant
	err := r.s.do(ctx, func() error {
		for _, t := range r.s.st.tenants {
			if activeOnly && !t.IsActive() {
				continue
			}
			out = append(out, &t)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *tenant.Tenant) int { return strings.Compare(a.Slug, b.Slug) })
	return out, err
}

func (r *TenantRegistry) ListActive(ctx context.Context) ([]*tenant.Tenant, error) {
	return r.list(ctx, true)
}

func (r *TenantRegistry) ListAll(ctx context.Context) ([]*tenant.Tenant, error) {
	return r.list(ctx, false)
}

// Create assigns an id when the caller did not.
func (r *TenantRegistry) Create(ctx context.Context, t *tenant.Tenant) error {
	return r.s.do(ctx, func() error {
		for _, existing := range r.s.st.tenants {
			if existing.Slug == t.Slug {
				return fmt.Errorf("%w: %s", tenant.ErrTenantExists, t.Slug)
			}
		}
		if t.ID == "" {
			t.ID = id.New().String()
		}
		if t.Status == "" {
			t.Status = tenant.StatusActive
		}
		now := r.s.now().UTC()
		t.CreatedAt, t.UpdatedAt = now, now
		r.s.st.tenants[t.ID] = *t
		return nil
	})
}

func (r *TenantRegistry) UpdateStatusByID(ctx context.Context, tenantID string, status tenant.Status) error {
	return r.s.do(ctx, func() error {
		t, ok := r.s.st.tenants[tenantID]
		if !ok {
			return tenant.ErrTenantNotFound
		}
		t.Status = status
		t.UpdatedAt = r.s.now().UTC()
		r.s.st.tenants[tenantID] = t
		return nil
	})
}

var _ tenant.Registry = (*TenantRegistry)(nil)
