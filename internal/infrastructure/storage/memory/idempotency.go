package memory

import (
	"context"
	"fmt"

	"invoicenum/internal/core/idempotency"
)

// IdempotencyStore implements idempotency.Store.
type IdempotencyStore struct{ s *Store }

func (i *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	var replay *idempotency.Replay
	err := i.s.do(ctx, func() error {
		now := i.s.now().UTC()
		k := idemKey{tenantID: req.TenantID, key: req.Key}

		if rec, ok := i.s.st.idem[k]; ok && now.Before(rec.ExpiresAt) {
			r, reclaim, err := idempotency.Evaluate(&rec, req, now)
			if err != nil || !reclaim {
				replay = r
				return err
			}
		}

		i.s.st.idem[k] = idempotency.Record{
			TenantID:    req.TenantID,
			Key:         req.Key,
			UserID:      req.UserID,
			Operation:   req.Operation,
			Status:      idempotency.StatusPending,
			RequestHash: req.RequestHash,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(i.s.ttl),
		}
		return nil
	})
	return replay, err
}

func (i *IdempotencyStore) finish(ctx context.Context, tenantID, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	body, err := idempotency.MarshalResponse(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return i.s.do(ctx, func() error {
		k := idemKey{tenantID: tenantID, key: key}
		rec, ok := i.s.st.idem[k]
		if !ok {
			return nil
		}
		rec.Status = status
		rec.Response = body
		rec.StatusCode = statusCode
		rec.ContentType = contentType
		rec.UpdatedAt = i.s.now().UTC()
		i.s.st.idem[k] = rec
		return nil
	})
}

func (i *IdempotencyStore) Complete(ctx context.Context, tenantID, key string, statusCode int, contentType string, response any) error {
	return i.finish(ctx, tenantID, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

func (i *IdempotencyStore) Fail(ctx context.Context, tenantID, key string, statusCode int, contentType string, response any) error {
	return i.finish(ctx, tenantID, key, idempotency.StatusFailed, statusCode, contentType, response)
}

func (i *IdempotencyStore) Release(ctx context.Context, tenantID, key string) error {
	return i.s.do(ctx, func() error {
		delete(i.s.st.idem, idemKey{tenantID: tenantID, key: key})
		return nil
	})
}

func (i *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	var n int64
	err := i.s.do(ctx, func() error {
		now := i.s.now().UTC()
		for k, rec := range i.s.st.idem {
			if rec.ExpiresAt.Before(now) {
				delete(i.s.st.idem, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

var _ idempotency.Store = (*IdempotencyStore)(nil)
