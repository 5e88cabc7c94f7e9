// Package audit records lifecycle events of numbering configuration.
// Schemes are never deleted; the audit trail explains who activated or
// archived each of them and what it replaced.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "invoicenum/internal/core/context"
	"invoicenum/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionActivate Action = "activate"
	ActionArchive  Action = "archive"
)

// SystemUser is recorded when no caller identity is present (CLI, worker).
const SystemUser = "system"

// Entry is a single audit record.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	TenantID   string          `db:"tenant_id" json:"tenantId"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`
	Action     Action          `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"userId"`
	Changes    json.RawMessage `db:"changes" json:"changes"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// Log persists and reads audit entries. Record participates in the
// transaction carried by ctx, so an entry commits with the change it describes.
type Log interface {
	Record(ctx context.Context, entry Entry) error
	History(ctx context.Context, tenantID, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Actor returns the user recorded on changes made under ctx.
func Actor(ctx context.Context) string {
	if uid := appctx.GetUserID(ctx); uid != "" {
		return uid
	}
	return SystemUser
}

// NewEntry builds an entry stamped with the caller and the current time.
func NewEntry(ctx context.Context, tenantID, entityType string, entityID id.ID, action Action, changes map[string]any) (Entry, error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit changes: %w", err)
	}
	return Entry{
		ID:         id.New(),
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     Actor(ctx),
		Changes:    raw,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) History(context.Context, string, string, id.ID, int) ([]Entry, error) {
	return nil, nil
}

var _ Log = Nop{}
