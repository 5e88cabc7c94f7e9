// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext identifies the caller of a request.
// Authentication happens upstream; the gateway forwards the user id.
type UserContext struct {
	UserID   string
	TenantID string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// WithTenantID records the resolved tenant on the user context, creating one if absent.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	u := GetUser(ctx)
	if u == nil {
		return WithUser(ctx, &UserContext{TenantID: tenantID})
	}
	cp := *u
	cp.TenantID = tenantID
	return WithUser(ctx, &cp)
}

// GetTenantID returns tenant ID from context or empty string.
func GetTenantID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.TenantID
	}
	return ""
}
