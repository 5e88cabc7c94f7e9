package numbering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tx"
	"invoicenum/internal/domain/audit"
	"invoicenum/pkg/logger"
)

// CreateSchemeInput is the admin request to introduce a scheme.
type CreateSchemeInput struct {
	TenantID      string
	Template      string
	ResetPeriod   numerator.ResetPeriod
	EffectiveFrom time.Time
}

// ServiceConfig tunes the admin service.
type ServiceConfig struct {
	// ActivationRetries bounds re-attempts after a uniqueness collision.
	ActivationRetries int
	Metrics           Metrics
}

// SchemeService is the scheme administration surface.
type SchemeService struct {
	schemes SchemeRepository
	worker  *ActivationWorker
	txm     tx.Manager
	audit   audit.Log
	retries int
	metrics Metrics
	now     func() time.Time
}

// NewSchemeService wires the admin surface.
func NewSchemeService(schemes SchemeRepository, txm tx.Manager, auditLog audit.Log, cfg ServiceConfig) *SchemeService {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.ActivationRetries <= 0 {
		cfg.ActivationRetries = DefaultActivationRetries
	}
	return &SchemeService{
		schemes: schemes,
		worker:  NewActivationWorker(schemes, txm, auditLog),
		txm:     txm,
		audit:   auditLog,
		retries: cfg.ActivationRetries,
		metrics: cfg.Metrics,
		now:     time.Now,
	}
}

// CreateScheme validates the input and activates a new scheme, archiving
// whatever was ACTIVE before. It must not run inside an outer transaction:
// each attempt needs a fresh one.
func (s *SchemeService) CreateScheme(ctx context.Context, in CreateSchemeInput) (*NumberingScheme, error) {
	if strings.TrimSpace(in.TenantID) == "" {
		return nil, apperror.NewValidation("tenant is required").WithDetail("field", "tenantId")
	}
	if err := numerator.Validate(in.Template); err != nil {
		return nil, err
	}
	if !in.ResetPeriod.IsValid() {
		return nil, apperror.NewValidation("unknown reset period").
			WithDetail("field", "resetPeriod").
			WithDetail("value", string(in.ResetPeriod))
	}
	if in.EffectiveFrom.IsZero() {
		return nil, apperror.NewValidation("effective date is required").WithDetail("field", "effectiveFrom")
	}

	req := ActivationRequest{
		TenantID:      in.TenantID,
		Template:      in.Template,
		ResetPeriod:   in.ResetPeriod,
		EffectiveFrom: numerator.DateOf(in.EffectiveFrom),
		CreatedBy:     audit.Actor(ctx),
	}
	created, err := activateWithRetry(ctx, s.worker, req, s.retries, s.metrics)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "numbering scheme activated",
		"tenant_id", created.TenantID,
		"scheme_id", created.ID,
		"template", created.Template,
		"reset_period", created.ResetPeriod,
		"effective_from", created.EffectiveFrom.Format(numerator.DateLayout),
		"version", created.Version,
	)
	return created, nil
}

// ArchiveScheme retires a scheme explicitly. A tenant may end up with no
// ACTIVE scheme; archived ones still number backdated invoices.
func (s *SchemeService) ArchiveScheme(ctx context.Context, tenantID string, schemeID id.ID) (*NumberingScheme, error) {
	var archived *NumberingScheme
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sc, err := s.schemes.GetByID(ctx, tenantID, schemeID, true)
		if err != nil {
			return err
		}
		if err := sc.Archive(s.now()); err != nil {
			return err
		}
		if err := s.schemes.UpdateStatus(ctx, sc); err != nil {
			return fmt.Errorf("archive scheme: %w", err)
		}
		entry, err := audit.NewEntry(ctx, tenantID, EntityType, sc.ID, audit.ActionArchive, map[string]any{
			"status": StatusArchived,
			"reason": "explicit",
		})
		if err != nil {
			return err
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			return fmt.Errorf("audit archive: %w", err)
		}
		archived = sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "numbering scheme archived", "tenant_id", tenantID, "scheme_id", schemeID)
	return archived, nil
}

// GetScheme returns one of the tenant's schemes.
func (s *SchemeService) GetScheme(ctx context.Context, tenantID string, schemeID id.ID) (*NumberingScheme, error) {
	return s.schemes.GetByID(ctx, tenantID, schemeID, false)
}

// ListSchemes returns the tenant's schemes, newest first.
func (s *SchemeService) ListSchemes(ctx context.Context, tenantID string, activeOnly bool) ([]*NumberingScheme, error) {
	list, err := s.schemes.List(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list schemes: %w", err)
	}
	return list, nil
}

// PreviewTemplate validates a template and renders a sample number.
func (s *SchemeService) PreviewTemplate(template string) (string, error) {
	return numerator.Preview(template)
}

// History returns the audit trail of a scheme, newest first.
func (s *SchemeService) History(ctx context.Context, tenantID string, schemeID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.schemes.GetByID(ctx, tenantID, schemeID, false); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.audit.History(ctx, tenantID, EntityType, schemeID, limit)
}
