package numbering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/numerator"
)

// Resolver finds the scheme governing a tenant's issue date.
type Resolver struct {
	schemes SchemeRepository
}

// NewResolver creates a resolver over the scheme repository.
func NewResolver(schemes SchemeRepository) *Resolver {
	return &Resolver{schemes: schemes}
}

// Resolve returns the scheme in effect on issueDate.
//
// Among schemes with EffectiveFrom <= issueDate in ACTIVE or ARCHIVED state,
// ACTIVE wins regardless of recency; then the latest EffectiveFrom; then the
// highest Version. When nothing qualifies the result is a not-configured
// error, never a fallback format.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, issueDate time.Time) (*NumberingScheme, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperror.NewValidation("tenant is required").WithDetail("field", "tenantId")
	}
	if issueDate.IsZero() {
		return nil, apperror.NewValidation("issue date is required").WithDetail("field", "issueDate")
	}

	date := numerator.DateOf(issueDate)
	s, err := r.schemes.FindEffective(ctx, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("resolve numbering scheme: %w", err)
	}
	if s == nil {
		return nil, apperror.NewNumberingNotConfigured(tenantID, date.Format(numerator.DateLayout))
	}
	return s, nil
}
