package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"invoicenum/internal/core/id"
	"invoicenum/internal/domain/audit"
)

// CompressionAlgo specifies how changes are stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are
// stored zstd-compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditLog implements audit.Log over the audit_log table.
type AuditLog struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditLog creates an audit log. threshold <= 0 selects the default.
func NewAuditLog(txm *TxManager, threshold int) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditLog{txm: txm, encoder: encoder, decoder: decoder, compressThreshold: threshold}, nil
}

// pack returns the column values for changes.
func (l *AuditLog) pack(changes json.RawMessage) (plain json.RawMessage, compressed []byte, algo CompressionAlgo) {
	if len(changes) > l.compressThreshold {
		return nil, l.encoder.EncodeAll(changes, nil), CompressionZstd
	}
	return changes, nil, CompressionNone
}

func (l *AuditLog) unpack(plain json.RawMessage, compressed []byte, algo CompressionAlgo) (json.RawMessage, error) {
	if algo != CompressionZstd || len(compressed) == 0 {
		return plain, nil
	}
	out, err := l.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress changes: %w", err)
	}
	return out, nil
}

// Record inserts the entry in the transaction carried by ctx.
func (l *AuditLog) Record(ctx context.Context, e audit.Entry) error {
	plain, compressed, algo := l.pack(e.Changes)

	_, err := l.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO audit_log (
			id, tenant_id, entity_type, entity_id, action, user_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		e.ID, e.TenantID, e.EntityType, e.EntityID, e.Action, e.UserID,
		plain, compressed, algo, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns an entity's entries, newest first.
func (l *AuditLog) History(ctx context.Context, tenantID, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	rows, err := l.txm.GetQuerier(ctx).Query(ctx, `
		SELECT id, tenant_id, entity_type, entity_id, action, user_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM audit_log
		WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC
		LIMIT $4
	`, tenantID, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			plain      []byte
			compressed []byte
			algo       CompressionAlgo
		)
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID,
			&plain, &compressed, &algo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Changes, err = l.unpack(plain, compressed, algo); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ audit.Log = (*AuditLog)(nil)
