package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicenum/internal/app"
	"invoicenum/internal/config"
	"invoicenum/internal/core/security"
	"invoicenum/internal/core/tenant"
	v1 "invoicenum/internal/infrastructure/http/v1"
	"invoicenum/internal/infrastructure/http/v1/middleware"
	"invoicenum/internal/infrastructure/telemetry"
	"invoicenum/pkg/logger"
)

type apiEnv struct {
	router   *gin.Engine
	storage  *app.Storage
	flags    *security.InMemoryFlags
	tenantID string
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	cfg := &config.Config{Storage: config.StorageMemory}
	cfg.Numbering.ActivationRetries = 2
	cfg.Idempotency.TTL = time.Hour

	st := app.OpenMemory(cfg)
	reg := prometheus.NewRegistry()
	svc := app.NewServices(st, cfg, telemetry.NewNumberingMetrics(reg, "test"))
	flags := security.NewInMemoryFlags(map[string]bool{
		security.FlagIdempotentGeneration: true,
	})

	router, err := v1.NewRouter(v1.RouterConfig{
		Registry:    st.Tenants,
		Logger:      logger.Nop(),
		Flags:       flags,
		Schemes:     svc.Schemes,
		Generator:   svc.Generator,
		Departments: svc.Departments,
		Ledger:      svc.Ledger,
		Observer:    svc.Observer,
		Idempotency: st.Idempotency,
		Gatherer:    reg,
	})
	require.NoError(t, err)

	tn := &tenant.Tenant{Slug: "acme", DisplayName: "ACME"}
	require.NoError(t, st.Tenants.Create(context.Background(), tn))

	return &apiEnv{router: router, storage: st, flags: flags, tenantID: tn.ID}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, e.tenantID)
	req.Header.Set(middleware.HeaderUserID, "user-1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *apiEnv) createScheme(t *testing.T, template, rp, eff string) map[string]any {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/numbering/schemes", map[string]string{
		"template": template, "resetPeriod": rp, "effectiveFrom": eff,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)
}

func TestTenantContext(t *testing.T) {
	e := newAPI(t)

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/numbering/schemes", nil)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
	})

	t.Run("malformed id", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/numbering/schemes", nil, middleware.TenantHeader, "acme")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/v1/numbering/schemes", nil,
			middleware.TenantHeader, "0190a000-0000-7000-8000-000000000000")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("suspended tenant", func(t *testing.T) {
		tn := &tenant.Tenant{Slug: "frozen", DisplayName: "Frozen", Status: tenant.StatusSuspended}
		require.NoError(t, e.storage.Tenants.Create(context.Background(), tn))
		w := e.do(t, http.MethodGet, "/api/v1/numbering/schemes", nil, middleware.TenantHeader, tn.ID)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSchemeLifecycle(t *testing.T) {
	e := newAPI(t)

	first := e.createScheme(t, "INV-{YYYY}-{MM}-{SEQ:4}", "MONTHLY", "2026-01-01")
	assert.Equal(t, "ACTIVE", first["status"])
	assert.Equal(t, "user-1", first["createdBy"])

	second := e.createScheme(t, "F{YY}{SEQ:5}", "YEARLY", "2026-03-01")

	w := e.do(t, http.MethodGet, "/api/v1/numbering/schemes/"+first["id"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ARCHIVED", decode(t, w)["status"])

	w = e.do(t, http.MethodGet, "/api/v1/numbering/schemes?activeOnly=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.EqualValues(t, 1, list["totalCount"])

	w = e.do(t, http.MethodPost, "/api/v1/numbering/schemes/"+second["id"].(string)+"/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ARCHIVED", decode(t, w)["status"])

	w = e.do(t, http.MethodPost, "/api/v1/numbering/schemes/"+second["id"].(string)+"/archive", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/numbering/schemes/"+second["id"].(string)+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["totalCount"])
}

func TestCreateScheme_Validation(t *testing.T) {
	e := newAPI(t)

	for name, body := range map[string]map[string]string{
		"no seq":       {"template": "INV-{YYYY}", "resetPeriod": "MONTHLY", "effectiveFrom": "2026-01-01"},
		"bad period":   {"template": "INV-{SEQ:4}", "resetPeriod": "WEEKLY", "effectiveFrom": "2026-01-01"},
		"bad date":     {"template": "INV-{SEQ:4}", "resetPeriod": "NEVER", "effectiveFrom": "01/01/2026"},
		"missing date": {"template": "INV-{SEQ:4}", "resetPeriod": "NEVER"},
	} {
		t.Run(name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/v1/numbering/schemes", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGenerateAndPeek(t *testing.T) {
	e := newAPI(t)

	w := e.do(t, http.MethodPost, "/api/v1/numbering/numbers", map[string]string{"issueDate": "2026-02-03"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NUMBERING_NOT_CONFIGURED", decode(t, w)["code"])

	e.createScheme(t, "INV-{YYYY}-{MM}-{SEQ:4}", "MONTHLY", "2026-01-01")

	w = e.do(t, http.MethodGet, "/api/v1/numbering/numbers/next?issueDate=2026-02-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "INV-2026-02-0001", decode(t, w)["displayNumber"])

	w = e.do(t, http.MethodPost, "/api/v1/numbering/numbers", map[string]string{"issueDate": "2026-02-03"})
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode(t, w)
	assert.Equal(t, "INV-2026-02-0001", first["displayNumber"])
	assert.EqualValues(t, 2, first["periodMonth"])

	w = e.do(t, http.MethodPost, "/api/v1/numbering/numbers", map[string]string{"issueDate": "2026-02-10"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "INV-2026-02-0002", decode(t, w)["displayNumber"])
}

func TestGenerate_Idempotent(t *testing.T) {
	e := newAPI(t)
	e.createScheme(t, "INV-{SEQ:4}", "NEVER", "2026-01-01")

	body := map[string]string{"issueDate": "2026-02-03"}
	w1 := e.do(t, http.MethodPost, "/api/v1/numbering/numbers", body, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, w1.Code)
	w2 := e.do(t, http.MethodPost, "/api/v1/numbering/numbers", body, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, w2.Code)

	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, "true", w2.Header().Get("Idempotent-Replayed"))

	w3 := e.do(t, http.MethodPost, "/api/v1/numbering/numbers", map[string]string{"issueDate": "2026-02-04"},
		middleware.HeaderIdempotencyKey, "k-1")
	assert.Equal(t, http.StatusConflict, w3.Code)

	w4 := e.do(t, http.MethodPost, "/api/v1/numbering/numbers", body)
	require.Equal(t, http.StatusCreated, w4.Code)
	assert.Equal(t, "INV-0002", decode(t, w4)["displayNumber"])
}

func TestDepartmentsAndPreview(t *testing.T) {
	e := newAPI(t)
	e.createScheme(t, "{DEPT}-{SEQ:3}", "NEVER", "2026-01-01")

	w := e.do(t, http.MethodPost, "/api/v1/numbering/departments", map[string]string{"code": "sales", "name": "Sales"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "SALES", decode(t, w)["code"])

	w = e.do(t, http.MethodPost, "/api/v1/numbering/departments", map[string]string{"code": "SALES", "name": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/numbering/departments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])

	w = e.do(t, http.MethodPost, "/api/v1/numbering/numbers", map[string]string{"issueDate": "2026-02-03", "departmentCode": "sales"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "SALES-001", decode(t, w)["displayNumber"])

	w = e.do(t, http.MethodPost, "/api/v1/numbering/numbers", map[string]string{"issueDate": "2026-02-03", "departmentCode": "HR"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/numbering/templates/preview", map[string]string{"template": "INV-{YYYY}-{MM}-{SEQ:4}"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "INV-2026-02-0001", decode(t, w)["preview"])
}

func TestRecordInvoiceAndObservability(t *testing.T) {
	e := newAPI(t)
	scheme := e.createScheme(t, "INV-{YYYY}{MM}-{SEQ:3}", "MONTHLY", "2026-01-01")

	w := e.do(t, http.MethodPost, "/api/v1/numbering/invoices", map[string]any{
		"sequenceNumber": 7, "periodYear": 2026, "periodMonth": 2,
		"displayNumber": "INV-202602-007", "schemeId": scheme["id"], "issueDate": "2026-02-03",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/v1/internal/numbering/counters", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	e.flags.SetFlag(security.FlagCounterObservability, true)

	w = e.do(t, http.MethodPost, "/api/v1/numbering/numbers", map[string]string{"issueDate": "2026-02-05"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "INV-202602-008", decode(t, w)["displayNumber"])

	w = e.do(t, http.MethodGet, "/api/v1/internal/numbering/counters", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode(t, w)
	assert.Equal(t, "INV-{YYYY}{MM}-{SEQ:3}", report["currentTemplate"])
	assert.EqualValues(t, 1, report["totalCounters"])
}

func TestHealthAndMetrics(t *testing.T) {
	e := newAPI(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
