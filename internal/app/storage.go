// Package app assembles storage backends and domain services for the binaries.
package app

import (
	"context"
	"fmt"

	"invoicenum/internal/config"
	"invoicenum/internal/core/idempotency"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tenant"
	"invoicenum/internal/core/tx"
	"invoicenum/internal/domain/audit"
	"invoicenum/internal/domain/numbering"
	infranumerator "invoicenum/internal/infrastructure/numerator"
	"invoicenum/internal/infrastructure/storage/memory"
	"invoicenum/internal/infrastructure/storage/postgres"
	"invoicenum/internal/infrastructure/storage/postgres/numbering_repo"
	"invoicenum/pkg/logger"
)

// Storage bundles one backend's repositories.
type Storage struct {
	Tx          tx.Manager
	Schemes     numbering.SchemeRepository
	Counters    numerator.CounterRepository
	Invoices    numbering.InvoiceLedger
	Departments numbering.DepartmentDirectory
	Tenants     tenant.Registry
	Audit       audit.Log
	Idempotency idempotency.Store

	// Pool is nil for the in-memory backend.
	Pool *postgres.Pool
}

// Close releases backend resources.
func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Open selects the backend named by cfg.Storage.
func Open(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return OpenMemory(cfg), nil
	case config.StoragePostgres:
		return OpenPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

// OpenMemory builds the in-memory backend.
func OpenMemory(cfg *config.Config) *Storage {
	s := memory.New(cfg.Idempotency.TTL)
	return &Storage{
		Tx:          s,
		Schemes:     s.Schemes(),
		Counters:    s.Counters(),
		Invoices:    s.Invoices(),
		Departments: s.Departments(),
		Tenants:     s.Tenants(),
		Audit:       s.Audit(),
		Idempotency: s.Idempotency(),
	}
}

// OpenPostgres connects, optionally migrates, and builds the PostgreSQL backend.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*Storage, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	txm := postgres.NewTxManager(pool, cfg.Database.StatementTimeout)

	auditLog, err := postgres.NewAuditLog(txm, 0)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit log: %w", err)
	}

	logger.Info(ctx, "database ready", "max_conns", poolCfg.MaxConns, "migrated", cfg.Database.MigrateOnStart)

	return &Storage{
		Tx:          txm,
		Schemes:     numbering_repo.NewSchemeRepo(txm),
		Counters:    infranumerator.New(txm),
		Invoices:    numbering_repo.NewInvoiceRepo(txm),
		Departments: numbering_repo.NewDepartmentRepo(txm),
		Tenants:     tenant.NewPostgresRegistry(pool.Pool),
		Audit:       auditLog,
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		Pool:        pool,
	}, nil
}
