package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicenum/internal/core/apperror"
	appctx "invoicenum/internal/core/context"
	"invoicenum/internal/infrastructure/storage/memory"
)

func TestRecovery_WritesErrorAndReleasesKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := memory.New(time.Hour).Idempotency()

	calls := 0
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(appctx.WithTenantID(c.Request.Context(), "t1"))
		c.Next()
	})
	r.POST("/numbers", Idempotency(store, nil), func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("counter row vanished")
		}
		c.JSON(http.StatusCreated, gin.H{"displayNumber": "INV-0001"})
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/numbers", strings.NewReader(`{}`))
		req.Header.Set(HeaderIdempotencyKey, "key-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send()
	require.Equal(t, http.StatusInternalServerError, first.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotEmpty(t, first.Header().Get(HeaderRequestID))

	second := send()
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}
