package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicenum/internal/core/apperror"
	appctx "invoicenum/internal/core/context"
	"invoicenum/internal/core/tenant"
	"invoicenum/pkg/logger"
)

const (
	// TenantHeader is the HTTP header for tenant identification.
	TenantHeader = "X-Tenant-ID"
)

// TenantContext resolves the tenant from X-Tenant-ID and injects it into the
// request context. It must run before any handler that touches storage.
func TenantContext(registry tenant.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		rawTenantID := c.GetHeader(TenantHeader)
		if rawTenantID == "" {
			_ = c.Error(
				apperror.NewValidation("tenant is required").
					WithDetail("header", TenantHeader),
			)
			c.Abort()
			return
		}

		tenantUUID, err := uuid.Parse(rawTenantID)
		if err != nil {
			_ = c.Error(
				apperror.NewValidation("invalid tenant id").
					WithDetail("header", TenantHeader).
					WithDetail("value", rawTenantID),
			)
			c.Abort()
			return
		}
		tenantID := tenantUUID.String()

		t, err := tenant.Resolve(ctx, registry, tenantID)
		if err != nil {
			logger.Warn(ctx, "tenant resolution failed", "tenant_id", tenantID, "error", err)

			switch {
			case errors.Is(err, tenant.ErrTenantNotFound):
				_ = c.Error(apperror.NewNotFound("tenant", tenantID))
			case errors.Is(err, tenant.ErrTenantNotActive):
				_ = c.Error(apperror.NewForbidden("tenant is not active").WithDetail("tenant_id", tenantID))
			default:
				_ = c.Error(apperror.NewInternal(err).WithDetail("tenant_id", tenantID))
			}
			c.Abort()
			return
		}

		ctx = tenant.WithTenant(ctx, t)
		ctx = appctx.WithTenantID(ctx, t.ID)
		c.Request = c.Request.WithContext(ctx)

		c.Set("tenant_id", t.ID)

		c.Next()
	}
}
