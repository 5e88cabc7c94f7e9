package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invoicenum/internal/core/apperror"
	"invoicenum/pkg/logger"
)

const ctxLogFields = "log_fields"

// AnnotateRequest adds key/value pairs to the request's completion log line,
// e.g. the scheme that numbered an invoice.
func AnnotateRequest(c *gin.Context, keysAndValues ...any) {
	var fields []any
	if v, ok := c.Get(ctxLogFields); ok {
		fields, _ = v.([]any)
	}
	c.Set(ctxLogFields, append(fields, keysAndValues...))
}

// Logger middleware puts log on the request context and writes one line per
// request once it completes. Server errors log at error level, client errors
// at warn. Tenant and user come from the context set by later middleware.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Header().Get(HeaderIdempotentReplayed) != "" {
			fields = append(fields, "replayed", true)
		}
		if last := c.Errors.Last(); last != nil {
			if appErr, ok := apperror.AsAppError(last.Err); ok {
				fields = append(fields, "error_code", appErr.Code)
			} else {
				fields = append(fields, "error", last.Err.Error())
			}
		}
		if v, ok := c.Get(ctxLogFields); ok {
			if extra, ok := v.([]any); ok {
				fields = append(fields, extra...)
			}
		}

		l := log.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			l.Errorw("request failed", fields...)
		case status >= http.StatusBadRequest:
			l.Warnw("request rejected", fields...)
		default:
			l.Infow("request completed", fields...)
		}
	}
}
