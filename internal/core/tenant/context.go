package tenant

import (
	"context"
)

type tenantKey struct{}

// WithTenant stores the resolved tenant in context.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

// GetTenant retrieves tenant from context.
func GetTenant(ctx context.Context) *Tenant {
	t, _ := ctx.Value(tenantKey{}).(*Tenant)
	return t
}

// GetTenantID returns tenant ID or empty string.
func GetTenantID(ctx context.Context) string {
	if t := GetTenant(ctx); t != nil {
		return t.ID
	}
	return ""
}

// Resolve loads a tenant and checks it may issue numbers.
func Resolve(ctx context.Context, r Registry, tenantID string) (*Tenant, error) {
	t, err := r.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, ErrTenantNotActive
	}
	return t, nil
}
