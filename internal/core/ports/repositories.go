package ports

import (
	"context"

	"sharecast/internal/core/domain"
)

type AuditRepository interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
	ListByShare(ctx context.Context, shareID domain.ShareID) ([]*domain.AuditEntry, error)
}
