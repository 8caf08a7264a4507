package postgres

import (
	"context"
	"fmt"

	"sharecast/internal/core/domain"
	"sharecast/pkg/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS share_audit (
	id         BIGSERIAL PRIMARY KEY,
	event_time TIMESTAMPTZ NOT NULL,
	share_id   TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS share_audit_share_id_idx ON share_audit (share_id, id);
`

type AuditRepository struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

func NewAuditRepository(db *pgxpool.Pool, logger *zap.SugaredLogger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// CreateSchema creates the audit table when it does not exist yet.
func (r *AuditRepository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create share_audit schema: %w", err)
	}
	return nil
}

func (r *AuditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "share_audit")
	defer span.End()

	query := `
		INSERT INTO share_audit (event_time, share_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	payload := entry.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	err := r.db.QueryRow(ctx, query,
		entry.EventTime, string(entry.ShareID), string(entry.EventType), payload,
	).Scan(&entry.ID)
	if err != nil {
		tracing.RecordError(ctx, err)
		r.logger.Errorw("failed to record audit entry", "share_id", entry.ShareID, "error", err)
		return err
	}
	return nil
}

func (r *AuditRepository) ListByShare(ctx context.Context, shareID domain.ShareID) ([]*domain.AuditEntry, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "share_audit")
	defer span.End()

	query := `
		SELECT id, event_time, share_id, event_type, payload
		FROM share_audit
		WHERE share_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, string(shareID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var (
			entry     domain.AuditEntry
			share     string
			eventType string
		)
		if err := rows.Scan(&entry.ID, &entry.EventTime, &share, &eventType, &entry.Payload); err != nil {
			return nil, err
		}
		entry.ShareID = domain.ShareID(share)
		entry.EventType = domain.EventType(eventType)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
