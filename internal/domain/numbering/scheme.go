// Package numbering issues gapless-by-design, collision-free invoice numbers.
//
// A tenant owns effective-dated, versioned NumberingSchemes. Generation
// resolves the scheme governing the issue date, derives the counter scope,
// bumps the self-healing counter and renders the display number.
package numbering

import (
	"context"
	"strings"
	"time"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
)

// EntityType names schemes in the audit trail.
const EntityType = "numbering_scheme"

// SchemeStatus is the lifecycle state of a scheme.
type SchemeStatus string

const (
	StatusActive   SchemeStatus = "ACTIVE"
	StatusArchived SchemeStatus = "ARCHIVED"
	// StatusDraft is reserved for planned schemes; nothing writes it today and
	// resolution never selects it.
	StatusDraft SchemeStatus = "DRAFT"
)

// IsValid reports whether s is a known status.
func (s SchemeStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusDraft:
		return true
	}
	return false
}

// Resolvable reports whether schemes in this status may govern an issue date.
func (s SchemeStatus) Resolvable() bool {
	return s == StatusActive || s == StatusArchived
}

// NumberingScheme is a per-tenant, effective-dated numbering configuration.
// Template, ResetPeriod and EffectiveFrom never change after creation; a
// change is a new scheme that archives its predecessor.
type NumberingScheme struct {
	ID            id.ID                 `db:"id" json:"id"`
	TenantID      string                `db:"tenant_id" json:"tenantId"`
	Template      string                `db:"template" json:"template"`
	ResetPeriod   numerator.ResetPeriod `db:"reset_period" json:"resetPeriod"`
	EffectiveFrom time.Time             `db:"effective_from" json:"effectiveFrom"`
	Version       int                   `db:"version" json:"version"`
	Status        SchemeStatus          `db:"status" json:"status"`
	CreatedAt     time.Time             `db:"created_at" json:"createdAt"`
	CreatedBy     string                `db:"created_by" json:"createdBy"`
	ArchivedAt    *time.Time            `db:"archived_at" json:"archivedAt,omitempty"`
}

// Validate checks entity invariants without storage access.
func (s *NumberingScheme) Validate(_ context.Context) error {
	if strings.TrimSpace(s.TenantID) == "" {
		return apperror.NewValidation("tenant is required").WithDetail("field", "tenantId")
	}
	if err := numerator.Validate(s.Template); err != nil {
		return err
	}
	if !s.ResetPeriod.IsValid() {
		return apperror.NewValidation("unknown reset period").
			WithDetail("field", "resetPeriod").
			WithDetail("value", string(s.ResetPeriod))
	}
	if s.EffectiveFrom.IsZero() {
		return apperror.NewValidation("effective date is required").WithDetail("field", "effectiveFrom")
	}
	if s.Version < 1 {
		return apperror.NewInvariantViolation("scheme version must be positive").WithDetail("version", s.Version)
	}
	if !s.Status.IsValid() {
		return apperror.NewInvariantViolation("unknown scheme status").WithDetail("status", string(s.Status))
	}
	return nil
}

// IsActive reports whether the scheme currently governs new invoices.
func (s *NumberingScheme) IsActive() bool {
	return s.Status == StatusActive
}

// Archive retires the scheme. Archived schemes keep numbering backdated
// invoices; archiving twice is a business-rule error.
func (s *NumberingScheme) Archive(at time.Time) error {
	if s.Status == StatusArchived {
		return apperror.NewBusinessRule(apperror.CodeSchemeArchived, "Numbering scheme is already archived").
			WithDetail("scheme_id", s.ID.String())
	}
	s.Status = StatusArchived
	at = at.UTC()
	s.ArchivedAt = &at
	return nil
}

// Governs reports whether the scheme is eligible for issueDate.
func (s *NumberingScheme) Governs(issueDate time.Time) bool {
	return s.Status.Resolvable() && !numerator.DateOf(s.EffectiveFrom).After(numerator.DateOf(issueDate))
}

// precedes orders eligible schemes by resolution priority: ACTIVE before
// ARCHIVED, then later EffectiveFrom, then higher Version.
func precedes(a, b *NumberingScheme) bool {
	if a.IsActive() != b.IsActive() {
		return a.IsActive()
	}
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return a.EffectiveFrom.After(b.EffectiveFrom)
	}
	return a.Version > b.Version
}

// SelectEffective picks the scheme governing issueDate from candidates,
// or nil when none qualifies. Storage implementations without a query
// planner use it directly; SQL implementations encode the same ordering.
func SelectEffective(candidates []*NumberingScheme, issueDate time.Time) *NumberingScheme {
	var best *NumberingScheme
	for _, s := range candidates {
		if !s.Governs(issueDate) {
			continue
		}
		if best == nil || precedes(s, best) {
			best = s
		}
	}
	return best
}
