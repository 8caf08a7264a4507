package memory

import (
	"context"
	"sync"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"
)

// MemoryAuditRepository keeps the share audit trail in process. Only the most
// recent entries up to limit are retained.
type MemoryAuditRepository struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
	nextID  int64
	limit   int
}

func NewMemoryAuditRepository(limit int) ports.AuditRepository {
	if limit <= 0 {
		limit = 10_000
	}
	return &MemoryAuditRepository{limit: limit}
}

func (r *MemoryAuditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry.ID = r.nextID

	stored := *entry
	r.entries = append(r.entries, &stored)
	if overflow := len(r.entries) - r.limit; overflow > 0 {
		r.entries = append([]*domain.AuditEntry(nil), r.entries[overflow:]...)
	}
	return nil
}

func (r *MemoryAuditRepository) ListByShare(ctx context.Context, shareID domain.ShareID) ([]*domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.AuditEntry
	for _, entry := range r.entries {
		if entry.ShareID == shareID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}
