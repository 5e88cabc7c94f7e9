package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/core/idempotency"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tenant"
	"invoicenum/internal/domain/numbering"
)

func monthly(t *testing.T, tenantID string, y, m int) numerator.Scope {
	t.Helper()
	s, err := numerator.NewScope(tenantID, numerator.ResetMonthly, numerator.PeriodComponents{Year: y, Month: m})
	require.NoError(t, err)
	return s
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	scope := monthly(t, "t1", 2026, 2)

	_, err := s.Counters().Increment(ctx, scope)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.Counters().Increment(ctx, scope); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := s.Counters().Current(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestRunInTransaction_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	scope := monthly(t, "t1", 2026, 2)

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			_, err := s.Counters().Increment(ctx, scope)
			return err
		})
	})
	require.NoError(t, err)

	v, _ := s.Counters().Current(ctx, scope)
	assert.Equal(t, int64(1), v)
}

func TestCounterRepo_RaiseToNeverLowers(t *testing.T) {
	ctx := context.Background()
	c := New(0).Counters()
	scope := monthly(t, "t1", 2026, 2)

	v, err := c.RaiseTo(ctx, scope, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	v, err = c.RaiseTo(ctx, scope, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	v, err = c.Increment(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(11), v)
}

func TestCounterRepo_ListByTenantOrdering(t *testing.T) {
	ctx := context.Background()
	c := New(0).Counters()
	for _, m := range []int{1, 3, 2} {
		_, err := c.Increment(ctx, monthly(t, "t1", 2026, m))
		require.NoError(t, err)
	}
	never, _ := numerator.NewScope("t1", numerator.ResetNever, numerator.PeriodComponents{})
	_, _ = c.Increment(ctx, never)
	_, _ = c.Increment(ctx, monthly(t, "t2", 2026, 1))

	list, err := c.ListByTenant(ctx, "t1")
	require.NoError(t, err)

	var keys []string
	for _, row := range list {
		keys = append(keys, row.PeriodKey)
	}
	assert.Equal(t, []string{"2026-03", "2026-02", "2026-01", "NEVER"}, keys)
}

func TestSchemeRepo_InsertEnforcesUniqueness(t *testing.T) {
	ctx := context.Background()
	r := New(0).Schemes()
	eff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := &numbering.NumberingScheme{
		ID: id.New(), TenantID: "t1", Template: "INV-{SEQ:4}", ResetPeriod: numerator.ResetNever,
		EffectiveFrom: eff, Version: 1, Status: numbering.StatusActive,
	}
	require.NoError(t, r.Insert(ctx, first))

	sameVersion := *first
	sameVersion.ID = id.New()
	sameVersion.Status = numbering.StatusArchived
	assert.ErrorIs(t, r.Insert(ctx, &sameVersion), numbering.ErrSchemeCollision)

	secondActive := *first
	secondActive.ID = id.New()
	secondActive.Version = 2
	assert.ErrorIs(t, r.Insert(ctx, &secondActive), numbering.ErrSchemeCollision)

	otherTenant := *first
	otherTenant.ID = id.New()
	otherTenant.TenantID = "t2"
	assert.NoError(t, r.Insert(ctx, &otherTenant))
}

func TestInvoiceRepo_DuplicateAndMax(t *testing.T) {
	ctx := context.Background()
	r := New(0).Invoices()
	inv := func(seq int64, display string) *numbering.IssuedInvoice {
		return &numbering.IssuedInvoice{ID: id.New(), TenantID: "t1", SequenceNumber: seq, PeriodYear: 2026, DisplayNumber: display}
	}

	require.NoError(t, r.Record(ctx, inv(3, "A-3")))
	require.NoError(t, r.Record(ctx, inv(7, "A-7")))
	assert.ErrorIs(t, r.Record(ctx, inv(7, "A-7b")), numbering.ErrDuplicateInvoice)

	p := numerator.PeriodComponents{Year: 2026}
	maxSeq, ok, err := r.FindMaxSequenceNumber(ctx, "t1", p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), maxSeq)

	last, ok, _ := r.FindLastDisplayNumber(ctx, "t1", p)
	assert.True(t, ok)
	assert.Equal(t, "A-7", last)

	_, ok, _ = r.FindMaxSequenceNumber(ctx, "t1", numerator.PeriodComponents{Year: 2025})
	assert.False(t, ok)
}

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(time.Hour)
	store := s.Idempotency()
	req := idempotency.Request{TenantID: "t1", Key: "k", UserID: "u", Operation: "POST /numbering/numbers", RequestHash: "h"}

	replay, err := store.Acquire(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = store.Acquire(ctx, req)
	require.Error(t, err, "in-flight key must conflict")

	require.NoError(t, store.Complete(ctx, "t1", "k", 201, "application/json", map[string]string{"displayNumber": "INV-0001"}))

	replay, err = store.Acquire(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.JSONEq(t, `{"displayNumber":"INV-0001"}`, string(replay.Body))

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIdempotencyStore_StaleKeyReclaimedOnce(t *testing.T) {
	ctx := context.Background()
	s := New(time.Hour)
	store := s.Idempotency()
	req := idempotency.Request{TenantID: "t1", Key: "k", UserID: "u", Operation: "POST /numbering/numbers", RequestHash: "h"}

	_, err := store.Acquire(ctx, req)
	require.NoError(t, err)

	// The first holder never finished.
	s.now = func() time.Time { return time.Now().Add(idempotency.StaleAfter + time.Second) }

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		acquired  int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replay, err := store.Acquire(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && replay == nil:
				acquired++
			case apperror.HasCode(err, apperror.CodeIdempotency):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
	assert.Equal(t, callers-1, conflicts)
}

func TestIdempotencyStore_ReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	store := New(time.Hour).Idempotency()
	req := idempotency.Request{TenantID: "t1", Key: "k", UserID: "u", Operation: "POST /numbering/numbers", RequestHash: "h"}

	_, err := store.Acquire(ctx, req)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "t1", "k"))

	replay, err := store.Acquire(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestTenantRegistry_SlugIsUnique(t *testing.T) {
	ctx := context.Background()
	reg := New(time.Hour).Tenants()

	require.NoError(t, reg.Create(ctx, &tenant.Tenant{Slug: "acme", DisplayName: "ACME"}))
	err := reg.Create(ctx, &tenant.Tenant{Slug: "acme", DisplayName: "Other"})
	assert.ErrorIs(t, err, tenant.ErrTenantExists)

	all, err := reg.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
