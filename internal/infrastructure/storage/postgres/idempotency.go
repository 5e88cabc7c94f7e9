package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/idempotency"
)

// IdempotencyStore implements idempotency.Store over idempotency_keys.
type IdempotencyStore struct {
	txm *TxManager
	ttl time.Duration
	now func() time.Time
}

// NewIdempotencyStore creates an idempotency store.
func NewIdempotencyStore(txm *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txm: txm, ttl: ttl, now: time.Now}
}

// Acquire inserts a pending record or loads the existing one. Two racing
// requests meet on the primary key; exactly one sees its own insert.
func (s *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	now := s.now().UTC()
	q := s.txm.GetQuerier(ctx)

	tag, err := q.Exec(ctx, `
		INSERT INTO idempotency_keys (
			tenant_id, idempotency_key, user_id, operation, status, request_hash,
			created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
	`, req.TenantID, req.Key, req.UserID, req.Operation, idempotency.StatusPending, req.RequestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var rec idempotency.Record
	err = pgxscan.Get(ctx, q, &rec, `
		SELECT tenant_id, idempotency_key, user_id, operation, status, request_hash,
		       response, response_status, response_content_type,
		       created_at, updated_at, expires_at
		FROM idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, req.TenantID, req.Key)
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}

	// Expired records are treated as absent.
	if now.After(rec.ExpiresAt) {
		return nil, s.reclaim(ctx, &rec, req, now)
	}

	replay, reclaim, err := idempotency.Evaluate(&rec, req, now)
	if err != nil || !reclaim {
		return replay, err
	}
	return nil, s.reclaim(ctx, &rec, req, now)
}

// reclaimQuery resets a stale or expired record to pending. It matches only
// the row version that was loaded, so of two requests reclaiming the same
// record exactly one updates it.
func reclaimQuery(rec *idempotency.Record, req idempotency.Request, now time.Time, ttl time.Duration) squirrel.UpdateBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("idempotency_keys").
		SetMap(map[string]any{
			"user_id":               req.UserID,
			"operation":             req.Operation,
			"status":                idempotency.StatusPending,
			"request_hash":          req.RequestHash,
			"response":              nil,
			"response_status":       0,
			"response_content_type": "",
			"updated_at":            now,
			"expires_at":            now.Add(ttl),
		}).
		Where(squirrel.Eq{
			"tenant_id":       rec.TenantID,
			"idempotency_key": rec.Key,
			"status":          rec.Status,
			"updated_at":      rec.UpdatedAt,
		})
}

func (s *IdempotencyStore) reclaim(ctx context.Context, rec *idempotency.Record, req idempotency.Request, now time.Time) error {
	sql, args, err := reclaimQuery(rec, req, now, s.ttl).ToSql()
	if err != nil {
		return fmt.Errorf("build reclaim query: %w", err)
	}
	tag, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("reclaim idempotency key: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return apperror.NewIdempotencyConflict(req.Key)
	}
	return nil
}

func (s *IdempotencyStore) finish(ctx context.Context, tenantID, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	body, err := idempotency.MarshalResponse(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = s.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $3, response = $4, response_status = $5,
		    response_content_type = $6, updated_at = $7
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, tenantID, key, status, body, statusCode, contentType, s.now().UTC())
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// Complete marks the key as succeeded with its HTTP response.
func (s *IdempotencyStore) Complete(ctx context.Context, tenantID, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, tenantID, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// Fail marks the key as failed with its HTTP response.
func (s *IdempotencyStore) Fail(ctx context.Context, tenantID, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, tenantID, key, idempotency.StatusFailed, statusCode, contentType, response)
}

// Release deletes the record so the key can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, tenantID, key string) error {
	_, err := s.txm.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM idempotency_keys WHERE tenant_id = $1 AND idempotency_key = $2`, tenantID, key)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txm.GetQuerier(ctx).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ idempotency.Store = (*IdempotencyStore)(nil)
