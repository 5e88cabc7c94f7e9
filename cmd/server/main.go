// Package main is the entry point for the invoice numbering API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"invoicenum/internal/app"
	"invoicenum/internal/config"
	v1 "invoicenum/internal/infrastructure/http/v1"
	"invoicenum/internal/infrastructure/http/v1/handlers"
	"invoicenum/internal/infrastructure/telemetry"
	"invoicenum/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     cfg.Telemetry.ServiceName,
		Env:         cfg.Env,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting invoicenum server", "storage", cfg.Storage)

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatalw("failed to set up tracing", "error", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// --- Storage ---
	st, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer st.Close()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewNumberingMetrics(reg, cfg.Telemetry.MetricsNamespace)

	svc := app.NewServices(st, cfg, metrics)

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Registry:    st.Tenants,
		Logger:      log,
		Flags:       cfg.FeatureFlags(),
		Schemes:     svc.Schemes,
		Generator:   svc.Generator,
		Departments: svc.Departments,
		Ledger:      svc.Ledger,
		Observer:    svc.Observer,
		Gatherer:    reg,
	}
	if cfg.Idempotency.Enabled {
		routerCfg.Idempotency = st.Idempotency
	}
	if st.Pool != nil {
		routerCfg.DB = handlers.Pinger(st.Pool)
	}

	router, err := v1.NewRouter(routerCfg)
	if err != nil {
		log.Fatalw("failed to build router", "error", err)
	}

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
