package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicenum/internal/core/apperror"
	appctx "invoicenum/internal/core/context"
	"invoicenum/internal/core/idempotency"
	"invoicenum/internal/core/security"
	"invoicenum/pkg/logger"
)

const (
	HeaderIdempotencyKey     = "X-Idempotency-Key"
	HeaderIdempotentReplayed = "Idempotent-Replayed"
)

const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// Idempotency middleware protects against duplicate requests. A replayed key
// returns the stored response instead of running the handler again.
// Must run after TenantContext.
func Idempotency(store idempotency.Store, flags security.FeatureFlagProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if flags != nil && !flags.IsEnabled(ctx, security.FlagIdempotentGeneration) {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("failed to read request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		req := idempotency.Request{
			TenantID:    appctx.GetTenantID(ctx),
			Key:         key,
			UserID:      appctx.GetUserID(ctx),
			Operation:   c.Request.Method + " " + c.FullPath(),
			RequestHash: hex.EncodeToString(hash[:]),
		}

		replay, err := store.Acquire(ctx, req)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
				c.Abort()
				return
			}
			_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			c.Abort()
			return
		}

		if replay != nil {
			c.Header(HeaderIdempotentReplayed, "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)
		c.Request = c.Request.WithContext(appctx.WithIdempotencyKey(ctx, key))

		c.Next()
	}
}

// CompleteIdempotency stores a successful response for replay. No-op when the
// request carried no key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := store.Complete(ctx, appctx.GetTenantID(ctx), key, statusCode, contentType, response); err != nil {
		logger.Warn(ctx, "idempotency complete failed", "key", key, "error", err)
	}
}

// FailIdempotency stores a client error response for replay (best-effort).
// Server errors release the key instead: the generation transaction rolled
// back, so a retry under the same key must run again.
func FailIdempotency(c *gin.Context, statusCode int, response any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tenantID := appctx.GetTenantID(ctx)

	if statusCode >= http.StatusInternalServerError {
		if err := store.Release(ctx, tenantID, key); err != nil {
			logger.Warn(ctx, "idempotency release failed", "key", key, "error", err)
		}
		return
	}
	if err := store.Fail(ctx, tenantID, key, statusCode, "application/json", response); err != nil {
		logger.Warn(ctx, "idempotency fail failed", "key", key, "error", err)
	}
}

func idempotencyFrom(c *gin.Context) (string, idempotency.Store, bool) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return "", nil, false
	}
	v, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return "", nil, false
	}
	store, ok := v.(idempotency.Store)
	return key, store, ok && store != nil
}
