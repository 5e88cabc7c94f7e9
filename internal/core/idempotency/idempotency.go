// Package idempotency defines replay protection for mutating requests.
// A client sends X-Idempotency-Key; the first request under a key runs and
// its response is stored, later requests with the same key and body replay it.
package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"invoicenum/internal/core/apperror"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may stay unfinished before another
// request may reclaim it (the first one most likely crashed).
const StaleAfter = time.Minute

// Request identifies an attempt to run an operation under a key.
type Request struct {
	TenantID    string
	Key         string
	UserID      string
	Operation   string
	RequestHash string // SHA256 of request body
}

// Record stores the result of an idempotent operation.
type Record struct {
	TenantID    string    `db:"tenant_id"`
	Key         string    `db:"idempotency_key"`
	UserID      string    `db:"user_id"`
	Operation   string    `db:"operation"`
	Status      Status    `db:"status"`
	RequestHash string    `db:"request_hash"`
	Response    []byte    `db:"response"`
	StatusCode  int       `db:"response_status"`
	ContentType string    `db:"response_content_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Replay is the cached HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store manages idempotency keys.
type Store interface {
	// Acquire claims the key. It returns (nil, nil) when the caller should run
	// the operation, a Replay when it already finished, or an error when the
	// key is in flight or was used for a different request.
	Acquire(ctx context.Context, req Request) (*Replay, error)

	// Complete stores a successful response.
	Complete(ctx context.Context, tenantID, key string, statusCode int, contentType string, response any) error

	// Fail stores an error response.
	Fail(ctx context.Context, tenantID, key string, statusCode int, contentType string, response any) error

	// Release forgets the key so a retry runs the operation again.
	Release(ctx context.Context, tenantID, key string) error

	// CleanupExpired removes expired records and returns how many were deleted.
	CleanupExpired(ctx context.Context) (int64, error)
}

// Evaluate decides what an existing record means for a new request.
// reclaim is true when a stale pending key may be taken over.
func Evaluate(rec *Record, req Request, now time.Time) (replay *Replay, reclaim bool, err error) {
	if rec.UserID != req.UserID || rec.Operation != req.Operation || rec.RequestHash != req.RequestHash {
		return nil, false, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("stored_operation", rec.Operation).
			WithDetail("request_operation", req.Operation)
	}

	switch rec.Status {
	case StatusSuccess, StatusFailed:
		return rec.Replay(), false, nil
	case StatusPending:
		if now.Sub(rec.UpdatedAt) > StaleAfter {
			return nil, true, nil
		}
		return nil, false, apperror.NewIdempotencyConflict(req.Key)
	}
	return nil, true, nil
}

// Replay converts a finished record into a response.
func (r *Record) Replay() *Replay {
	status := r.StatusCode
	// Older records without status replay as 200 JSON.
	if status == 0 {
		status = http.StatusOK
	}
	ct := r.ContentType
	if ct == "" {
		ct = "application/json"
	}
	return &Replay{StatusCode: status, ContentType: ct, Body: r.Response}
}

// MarshalResponse encodes a response body for storage.
func MarshalResponse(response any) ([]byte, error) {
	if response == nil {
		return nil, nil
	}
	return json.Marshal(response)
}
