package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tx"
	"invoicenum/internal/domain/audit"
	"invoicenum/pkg/logger"
)

// DefaultActivationRetries is how many times a colliding activation is
// re-attempted before the caller is asked to refresh.
const DefaultActivationRetries = 2

// ActivationRequest describes a scheme to create and promote to ACTIVE.
type ActivationRequest struct {
	TenantID      string
	Template      string
	ResetPeriod   numerator.ResetPeriod
	EffectiveFrom time.Time
	CreatedBy     string
}

// ActivationWorker performs one activation attempt as a single transaction:
// lock and archive the ACTIVE scheme sharing EffectiveFrom, archive every
// other ACTIVE scheme, compute the next version and insert the new scheme.
//
// The partial unique index on ACTIVE rows is the correctness backstop; the
// row lock only narrows the race window.
type ActivationWorker struct {
	schemes SchemeRepository
	txm     tx.Manager
	audit   audit.Log
	now     func() time.Time
}

// NewActivationWorker creates an activation worker.
func NewActivationWorker(schemes SchemeRepository, txm tx.Manager, auditLog audit.Log) *ActivationWorker {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &ActivationWorker{schemes: schemes, txm: txm, audit: auditLog, now: time.Now}
}

// ActivateOnce runs a single attempt. Collisions surface as errors wrapping
// ErrSchemeCollision and leave storage untouched.
func (w *ActivationWorker) ActivateOnce(ctx context.Context, req ActivationRequest) (*NumberingScheme, error) {
	var created *NumberingScheme

	err := w.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := w.now().UTC()
		effectiveFrom := numerator.DateOf(req.EffectiveFrom)
		var archived []id.ID

		same, err := w.schemes.FindActiveForUpdate(ctx, req.TenantID, effectiveFrom)
		if err != nil {
			return fmt.Errorf("lock active scheme: %w", err)
		}
		if same != nil {
			if err := same.Archive(now); err != nil {
				return err
			}
			if err := w.schemes.UpdateStatus(ctx, same); err != nil {
				return fmt.Errorf("archive scheme %s: %w", same.ID, err)
			}
			archived = append(archived, same.ID)
		}

		others, err := w.schemes.ArchiveActive(ctx, req.TenantID, now)
		if err != nil {
			return fmt.Errorf("archive active schemes: %w", err)
		}
		archived = append(archived, others...)

		maxVersion, err := w.schemes.MaxVersion(ctx, req.TenantID, effectiveFrom)
		if err != nil {
			return fmt.Errorf("max scheme version: %w", err)
		}

		s := &NumberingScheme{
			ID:            id.New(),
			TenantID:      req.TenantID,
			Template:      req.Template,
			ResetPeriod:   req.ResetPeriod,
			EffectiveFrom: effectiveFrom,
			Version:       maxVersion + 1,
			Status:        StatusActive,
			CreatedAt:     now,
			CreatedBy:     req.CreatedBy,
		}
		if err := w.schemes.Insert(ctx, s); err != nil {
			return fmt.Errorf("insert scheme: %w", err)
		}

		if err := w.recordActivation(ctx, s, archived); err != nil {
			return err
		}
		created = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (w *ActivationWorker) recordActivation(ctx context.Context, s *NumberingScheme, archived []id.ID) error {
	supersedes := make([]string, 0, len(archived))
	for _, a := range archived {
		supersedes = append(supersedes, a.String())
		entry, err := audit.NewEntry(ctx, s.TenantID, EntityType, a, audit.ActionArchive, map[string]any{
			"status":        StatusArchived,
			"superseded_by": s.ID.String(),
		})
		if err != nil {
			return err
		}
		if err := w.audit.Record(ctx, entry); err != nil {
			return fmt.Errorf("audit archive: %w", err)
		}
	}

	entry, err := audit.NewEntry(ctx, s.TenantID, EntityType, s.ID, audit.ActionActivate, map[string]any{
		"template":       s.Template,
		"reset_period":   s.ResetPeriod,
		"effective_from": s.EffectiveFrom.Format(numerator.DateLayout),
		"version":        s.Version,
		"supersedes":     supersedes,
	})
	if err != nil {
		return err
	}
	if err := w.audit.Record(ctx, entry); err != nil {
		return fmt.Errorf("audit activation: %w", err)
	}
	return nil
}

// activateWithRetry re-runs ActivateOnce with fresh reads while attempts
// collide, up to retries extra attempts. Other errors stop immediately.
func activateWithRetry(ctx context.Context, w *ActivationWorker, req ActivationRequest, retries int, metrics Metrics) (*NumberingScheme, error) {
	attempt := 0
	op := func() (*NumberingScheme, error) {
		attempt++
		s, err := w.ActivateOnce(ctx, req)
		if err == nil {
			return s, nil
		}
		if errors.Is(err, ErrSchemeCollision) {
			metrics.ActivationConflict()
			logger.Warn(ctx, "numbering scheme activation collided",
				"tenant_id", req.TenantID,
				"effective_from", req.EffectiveFrom.Format(numerator.DateLayout),
				"attempt", attempt,
				"error", err,
			)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(retries)), ctx)
	s, err := backoff.RetryWithData(op, policy)
	if err != nil {
		if errors.Is(err, ErrSchemeCollision) {
			metrics.SchemeActivated(OutcomeConflict)
			return nil, apperror.NewConcurrentModification(EntityType, req.TenantID).
				WithDetail("attempts", attempt).
				WithCause(err)
		}
		metrics.SchemeActivated(OutcomeFailed)
		return nil, err
	}
	metrics.SchemeActivated(OutcomeActivated)
	return s, nil
}
