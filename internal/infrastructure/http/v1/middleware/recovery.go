// Package middleware provides HTTP middleware components.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"invoicenum/internal/core/apperror"
	"invoicenum/pkg/logger"
)

// Recovery turns a handler panic into a 500 response. It is the outermost
// middleware, so it writes the response itself: ErrorHandler has already
// unwound. Any idempotency key held by the request is released; the
// generation transaction rolled back and no number was issued.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			ctx := c.Request.Context()
			logger.Error(ctx, "handler panic",
				"route", c.FullPath(),
				"method", c.Request.Method,
				"panic", rec,
				"stack", string(debug.Stack()),
			)

			body := gin.H{
				"code":    apperror.CodeInternal,
				"message": "Internal server error",
				"details": map[string]any{"request_id": c.GetString("request_id")},
			}
			FailIdempotency(c, http.StatusInternalServerError, body)
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
				return
			}
			c.Abort()
		}()
		c.Next()
	}
}
