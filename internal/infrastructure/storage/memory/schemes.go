package memory

import (
	"context"
	"slices"
	"time"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/domain/numbering"
)

// SchemeRepo implements numbering.SchemeRepository. Row locks are implied by
// the store-wide transaction lock.
type SchemeRepo struct{ s *Store }

func (r *SchemeRepo) tenantSchemes(tenantID string) []*numbering.NumberingScheme {
	var out []*numbering.NumberingScheme
	for _, sc := range r.s.st.schemes {
		if sc.TenantID == tenantID {
			out = append(out, &sc)
		}
	}
	return out
}

func (r *SchemeRepo) FindEffective(ctx context.Context, tenantID string, date time.Time) (*numbering.NumberingScheme, error) {
	var found *numbering.NumberingScheme
	err := r.s.do(ctx, func() error {
		found = numbering.SelectEffective(r.tenantSchemes(tenantID), date)
		return nil
	})
	return found, err
}

func (r *SchemeRepo) FindActiveForUpdate(ctx context.Context, tenantID string, effectiveFrom time.Time) (*numbering.NumberingScheme, error) {
	var found *numbering.NumberingScheme
	err := r.s.do(ctx, func() error {
		for _, sc := range r.tenantSchemes(tenantID) {
			if sc.IsActive() && sc.EffectiveFrom.Equal(effectiveFrom) {
				found = sc
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *SchemeRepo) ArchiveActive(ctx context.Context, tenantID string, at time.Time) ([]id.ID, error) {
	var archived []id.ID
	err := r.s.do(ctx, func() error {
		for _, sc := range r.tenantSchemes(tenantID) {
			if !sc.IsActive() {
				continue
			}
			if err := sc.Archive(at); err != nil {
				return err
			}
			r.s.st.schemes[sc.ID] = *sc
			archived = append(archived, sc.ID)
		}
		return nil
	})
	return archived, err
}

func (r *SchemeRepo) MaxVersion(ctx context.Context, tenantID string, effectiveFrom time.Time) (int, error) {
	var maxVersion int
	err := r.s.do(ctx, func() error {
		for _, sc := range r.tenantSchemes(tenantID) {
			if sc.EffectiveFrom.Equal(effectiveFrom) && sc.Version > maxVersion {
				maxVersion = sc.Version
			}
		}
		return nil
	})
	return maxVersion, err
}

// Insert enforces the same uniqueness rules as the database: one row per
// (tenant, effective_from, version) and one ACTIVE row per tenant.
func (r *SchemeRepo) Insert(ctx context.Context, s *numbering.NumberingScheme) error {
	return r.s.do(ctx, func() error {
		for _, sc := range r.tenantSchemes(s.TenantID) {
			if sc.EffectiveFrom.Equal(s.EffectiveFrom) && sc.Version == s.Version {
				return numbering.ErrSchemeCollision
			}
			if s.IsActive() && sc.IsActive() {
				return numbering.ErrSchemeCollision
			}
		}
		r.s.st.schemes[s.ID] = *s
		return nil
	})
}

func (r *SchemeRepo) GetByID(ctx context.Context, tenantID string, schemeID id.ID, _ bool) (*numbering.NumberingScheme, error) {
	var found *numbering.NumberingScheme
	err := r.s.do(ctx, func() error {
		sc, ok := r.s.st.schemes[schemeID]
		if !ok || sc.TenantID != tenantID {
			return apperror.NewNotFound(numbering.EntityType, schemeID.String())
		}
		found = &sc
		return nil
	})
	return found, err
}

func (r *SchemeRepo) UpdateStatus(ctx context.Context, s *numbering.NumberingScheme) error {
	return r.s.do(ctx, func() error {
		sc, ok := r.s.st.schemes[s.ID]
		if !ok || sc.TenantID != s.TenantID {
			return apperror.NewNotFound(numbering.EntityType, s.ID.String())
		}
		if s.IsActive() {
			for _, other := range r.tenantSchemes(s.TenantID) {
				if other.ID != s.ID && other.IsActive() {
					return numbering.ErrSchemeCollision
				}
			}
		}
		sc.Status = s.Status
		sc.ArchivedAt = s.ArchivedAt
		r.s.st.schemes[s.ID] = sc
		return nil
	})
}

func (r *SchemeRepo) List(ctx context.Context, tenantID string, activeOnly bool) ([]*numbering.NumberingScheme, error) {
	var out []*numbering.NumberingScheme
	err := r.s.do(ctx, func() error {
		for _, sc := range r.tenantSchemes(tenantID) {
			if activeOnly && !sc.IsActive() {
				continue
			}
			out = append(out, sc)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *numbering.NumberingScheme) int {
		if c := b.EffectiveFrom.Compare(a.EffectiveFrom); c != 0 {
			return c
		}
		return b.Version - a.Version
	})
	return out, err
}

var _ numbering.SchemeRepository = (*SchemeRepo)(nil)
