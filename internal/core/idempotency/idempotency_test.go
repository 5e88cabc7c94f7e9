package idempotency

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicenum/internal/core/apperror"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	req := Request{TenantID: "t1", Key: "k1", UserID: "u1", Operation: "POST /numbering/numbers", RequestHash: "h1"}
	base := func() *Record {
		return &Record{
			TenantID: "t1", Key: "k1", UserID: "u1",
			Operation: req.Operation, RequestHash: "h1",
			UpdatedAt: now.Add(-10 * time.Second),
		}
	}

	t.Run("mismatched body", func(t *testing.T) {
		rec := base()
		rec.RequestHash = "other"
		_, _, err := Evaluate(rec, req, now)
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})

	t.Run("finished replays", func(t *testing.T) {
		rec := base()
		rec.Status = StatusSuccess
		rec.StatusCode = http.StatusCreated
		rec.Response = []byte(`{"displayNumber":"INV-0001"}`)
		replay, reclaim, err := Evaluate(rec, req, now)
		require.NoError(t, err)
		assert.False(t, reclaim)
		assert.Equal(t, http.StatusCreated, replay.StatusCode)
		assert.Equal(t, "application/json", replay.ContentType)
	})

	t.Run("in flight conflicts", func(t *testing.T) {
		rec := base()
		rec.Status = StatusPending
		_, _, err := Evaluate(rec, req, now)
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})

	t.Run("stale pending is reclaimed", func(t *testing.T) {
		rec := base()
		rec.Status = StatusPending
		rec.UpdatedAt = now.Add(-2 * StaleAfter)
		replay, reclaim, err := Evaluate(rec, req, now)
		require.NoError(t, err)
		assert.Nil(t, replay)
		assert.True(t, reclaim)
	})
}

func TestRecordReplayDefaults(t *testing.T) {
	r := (&Record{}).Replay()
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "application/json", r.ContentType)
}
