package numbering_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
)

func TestResolve_ActiveBeatsNewerArchived(t *testing.T) {
	e := newEnv(t)
	a := e.seedScheme(t, "t1", "A-{SEQ:4}", numerator.ResetNever, date(2020, 1, 1), 4, numbering.StatusActive)
	e.seedScheme(t, "t1", "B-{SEQ:4}", numerator.ResetNever, date(2026, 2, 3), 1, numbering.StatusArchived)

	got, err := e.resolver.Resolve(context.Background(), "t1", date(2026, 2, 10))
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestResolve_Ordering(t *testing.T) {
	e := newEnv(t)
	e.seedScheme(t, "t1", "OLD-{SEQ:4}", numerator.ResetNever, date(2025, 1, 1), 1, numbering.StatusArchived)
	v1 := e.seedScheme(t, "t1", "V1-{SEQ:4}", numerator.ResetNever, date(2025, 6, 1), 1, numbering.StatusArchived)
	v2 := e.seedScheme(t, "t1", "V2-{SEQ:4}", numerator.ResetNever, date(2025, 6, 1), 2, numbering.StatusArchived)
	e.seedScheme(t, "t1", "DRAFT-{SEQ:4}", numerator.ResetNever, date(2025, 7, 1), 1, numbering.StatusDraft)
	future := e.seedScheme(t, "t1", "NEW-{SEQ:4}", numerator.ResetNever, date(2026, 1, 1), 1, numbering.StatusActive)

	ctx := context.Background()

	got, err := e.resolver.Resolve(ctx, "t1", date(2025, 8, 1))
	require.NoError(t, err)
	assert.Equal(t, v2.ID, got.ID, "higher version wins on equal effective date; drafts never resolve")
	assert.NotEqual(t, v1.ID, got.ID)

	got, err = e.resolver.Resolve(ctx, "t1", date(2026, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, future.ID, got.ID, "effective date is inclusive")
}

func TestResolve_NotConfigured(t *testing.T) {
	e := newEnv(t)
	e.seedScheme(t, "t1", "INV-{SEQ:4}", numerator.ResetNever, date(2026, 1, 1), 1, numbering.StatusActive)

	_, err := e.resolver.Resolve(context.Background(), "t1", date(2025, 12, 31))
	assert.True(t, apperror.IsNotConfigured(err))

	_, err = e.resolver.Resolve(context.Background(), "other", date(2026, 6, 1))
	assert.True(t, apperror.IsNotConfigured(err))
}

func TestResolve_RejectsMissingInput(t *testing.T) {
	e := newEnv(t)
	_, err := e.resolver.Resolve(context.Background(), "", date(2026, 1, 1))
	assert.True(t, apperror.IsValidation(err))
}

func TestSelectEffective_Empty(t *testing.T) {
	assert.Nil(t, numbering.SelectEffective(nil, date(2026, 1, 1)))
}
