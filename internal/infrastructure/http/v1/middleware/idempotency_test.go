package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"invoicenum/internal/core/apperror"
	appctx "invoicenum/internal/core/context"
	"invoicenum/internal/infrastructure/storage/memory"
)

func idempotentEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	store := memory.New(time.Hour).Idempotency()

	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(appctx.WithTenantID(c.Request.Context(), "t1"))
		c.Next()
	})
	r.POST("/numbers", Idempotency(store, nil), handler)
	return r
}

func postNumber(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/numbers", strings.NewReader(`{"issueDate":"2026-02-10"}`))
	req.Header.Set(HeaderIdempotencyKey, "key-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	calls := 0
	r := idempotentEngine(func(c *gin.Context) {
		calls++
		if calls == 1 {
			_ = c.Error(apperror.NewInternal(assert.AnError))
			return
		}
		body := gin.H{"displayNumber": "INV-0001"}
		CompleteIdempotency(c, http.StatusCreated, "application/json", body)
		c.JSON(http.StatusCreated, body)
	})

	first := postNumber(r)
	assert.Equal(t, http.StatusInternalServerError, first.Code)

	second := postNumber(r)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)

	third := postNumber(r)
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "true", third.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"displayNumber":"INV-0001"}`, third.Body.String())
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ClientErrorIsReplayed(t *testing.T) {
	calls := 0
	r := idempotentEngine(func(c *gin.Context) {
		calls++
		_ = c.Error(apperror.NewNumberingNotConfigured("t1", "2026-02-10"))
	})

	first := postNumber(r)
	assert.Equal(t, http.StatusUnprocessableEntity, first.Code)

	second := postNumber(r)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}
