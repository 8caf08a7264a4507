package services

import (
	"context"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"

	"go.uber.org/zap"
)

// AuditService persists share events as audit entries.
type AuditService struct {
	repo   ports.AuditRepository
	logger *zap.SugaredLogger
}

func NewAuditService(repo ports.AuditRepository, logger *zap.SugaredLogger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

func (s *AuditService) Emit(ctx context.Context, event domain.ShareEvent) {
	entry := &domain.AuditEntry{
		EventTime: event.Timestamp,
		ShareID:   event.ShareID,
		EventType: event.Type,
		Payload:   auditPayload(event),
	}
	if err := s.repo.Record(ctx, entry); err != nil {
		s.logger.Warnw("failed to record audit entry", "type", event.Type, "share_id", event.ShareID, "error", err)
	}
}

// History returns the recorded entries for one share, oldest first.
func (s *AuditService) History(ctx context.Context, shareID domain.ShareID) ([]*domain.AuditEntry, error) {
	return s.repo.ListByShare(ctx, shareID)
}

func auditPayload(event domain.ShareEvent) map[string]interface{} {
	payload := make(map[string]interface{})
	if event.State != "" {
		payload["state"] = event.State
	}
	if event.TrackName != "" {
		payload["track_name"] = event.TrackName
	}
	if event.Kind != "" {
		payload["kind"] = event.Kind
	}
	if event.Source != "" {
		payload["source"] = string(event.Source)
	}
	if event.Error != "" {
		payload["error"] = event.Error
	}
	return payload
}
