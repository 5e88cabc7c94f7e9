// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoicenum/internal/core/idempotency"
	"invoicenum/internal/core/security"
	"invoicenum/internal/core/tenant"
	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/http/v1/dto"
	"invoicenum/internal/infrastructure/http/v1/handlers"
	"invoicenum/internal/infrastructure/http/v1/middleware"
	"invoicenum/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Registry resolves X-Tenant-ID
	Registry tenant.Registry

	// Logger for request logging
	Logger *logger.Logger

	// Flags gate the observability endpoint and idempotent generation
	Flags security.FeatureFlagProvider

	Schemes     *numbering.SchemeService
	Generator   *numbering.Generator
	Departments *numbering.Departments
	Ledger      *numbering.Ledger
	Observer    *numbering.Observer

	// Idempotency is optional; nil disables replay protection
	Idempotency idempotency.Store

	// DB backs the readiness probe; nil for in-memory storage
	DB handlers.Pinger

	// Gatherer is served on /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if err := dto.RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TenantContext(cfg.Registry))
	v1.Use(middleware.UserContext())

	registerNumberingRoutes(v1, cfg)
	registerInternalRoutes(v1, cfg)

	return router, nil
}

func registerNumberingRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()
	h := handlers.NewNumberingHandler(base, cfg.Schemes, cfg.Generator, cfg.Departments, cfg.Ledger)
	deps := handlers.NewDepartmentHandler(base, cfg.Departments)

	g := rg.Group("/numbering")

	schemes := g.Group("/schemes")
	{
		schemes.POST("", h.CreateScheme)
		schemes.GET("", h.ListSchemes)
		schemes.GET("/:id", h.GetScheme)
		schemes.POST("/:id/archive", h.ArchiveScheme)
		schemes.GET("/:id/audit", h.SchemeAudit)
	}

	g.POST("/templates/preview", h.PreviewTemplate)

	numbers := g.Group("/numbers")
	{
		generate := []gin.HandlerFunc{h.GenerateNumber}
		if cfg.Idempotency != nil {
			generate = append([]gin.HandlerFunc{middleware.Idempotency(cfg.Idempotency, cfg.Flags)}, generate...)
		}
		numbers.POST("", generate...)
		numbers.GET("/next", h.NextNumber)
	}

	g.POST("/invoices", h.RecordInvoice)

	departments := g.Group("/departments")
	{
		departments.POST("", deps.Create)
		departments.GET("", deps.List)
	}
}

func registerInternalRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Observer == nil {
		return
	}
	h := handlers.NewObservabilityHandler(handlers.NewBaseHandler(), cfg.Observer, cfg.Flags)
	rg.GET("/internal/numbering/counters", h.Counters)
}
