// Package main is the entry point for the counter reconciliation worker.
// It scans every active tenant for counter drift and, when configured,
// raises lagging counters. It also expires idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"invoicenum/internal/app"
	"invoicenum/internal/config"
	appctx "invoicenum/internal/core/context"
	"invoicenum/internal/core/idempotency"
	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/storage/postgres"
	"invoicenum/internal/infrastructure/telemetry"
	"invoicenum/pkg/logger"
)

const cleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     cfg.Telemetry.ServiceName + "-worker",
		Env:         cfg.Env,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Infow("starting reconciliation worker",
		"interval", cfg.Reconcile.Interval,
		"heal", cfg.Reconcile.Heal,
		"concurrency", cfg.Reconcile.Concurrency,
	)

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName+"-worker")
	if err != nil {
		log.Fatalw("failed to set up tracing", "error", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	st, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer st.Close()

	metrics := telemetry.NewNumberingMetrics(prometheus.DefaultRegisterer, cfg.Telemetry.MetricsNamespace)
	svc := app.NewServices(st, cfg, metrics)

	worker := &Worker{
		reconciler:  svc.Reconciler(st, cfg),
		idempotency: st.Idempotency,
		pool:        st.Pool,
		interval:    cfg.Reconcile.Interval,
		log:         log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs periodic maintenance across all tenants.
type Worker struct {
	reconciler  *numbering.Reconciler
	idempotency idempotency.Store
	pool        *postgres.Pool
	interval    time.Duration
	log         *logger.Logger
}

// Run reconciles immediately and then on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	w.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcile(ctx)
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx)
			if w.pool != nil {
				w.pool.LogStats(ctx)
			}
		}
	}
}

func (w *Worker) reconcile(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewJobTrace(appctx.OriginWorker, "reconcile"))
	log := w.log.WithContext(ctx)

	start := time.Now()
	results, err := w.reconciler.Run(ctx)
	if err != nil {
		log.Errorw("reconciliation failed for some tenants", "error", err)
	}

	var drifted, malformed, healed int
	for _, r := range results {
		drifted += r.Drifted
		malformed += r.Malformed
		healed += r.Healed
		if r.Drifted > 0 || r.Malformed > 0 {
			log.Infow("tenant reconciled",
				"tenant_id", r.TenantID,
				"counters", r.Counters,
				"drifted", r.Drifted,
				"malformed", r.Malformed,
				"healed", r.Healed,
			)
		}
	}
	log.Infow("reconciliation finished",
		"tenants", len(results),
		"failed", err != nil,
		"drifted", drifted,
		"malformed", malformed,
		"healed", healed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewJobTrace(appctx.OriginWorker, "idempotency_cleanup"))
	log := w.log.WithContext(ctx)

	n, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		log.Warnw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		log.Infow("cleaned up idempotency keys", "count", n)
	}
}
