package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "invoicenum/internal/core/context"
)

// HeaderUserID carries the caller identity forwarded by the gateway.
const HeaderUserID = "X-User-ID"

// UserContext copies the forwarded user id into the request context so that
// audit entries and idempotency keys can attribute the call. Authentication
// happens upstream.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			ctx := c.Request.Context()
			u := appctx.GetUser(ctx)
			next := &appctx.UserContext{UserID: uid}
			if u != nil {
				next.TenantID = u.TenantID
			}
			c.Request = c.Request.WithContext(appctx.WithUser(ctx, next))
			c.Set("user_id", uid)
		}
		c.Next()
	}
}
