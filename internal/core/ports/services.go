package ports

import (
	"context"

	"sharecast/internal/core/domain"
)

type ScreenShareService interface {
	IsSharing() bool
	Status() domain.ShareStatus
	Toggle(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ShareEventSink receives share lifecycle events.
type ShareEventSink interface {
	Emit(ctx context.Context, event domain.ShareEvent)
}

// ShareMetrics records share lifecycle measurements.
type ShareMetrics interface {
	StateChanged(state domain.SharingState)
	ShareStarted()
	ShareStopped(duration float64)
	TrackPublished(kind domain.MediaKind)
	PublishFailed(kind domain.MediaKind)
	MixCreated()
	MixFailed()
	MicrophoneReacquired(ok bool)
}

// ShareStatsProvider exposes in-process share counters.
type ShareStatsProvider interface {
	Snapshot() domain.ShareStats
}

// ShareHistory returns the recorded lifecycle of past shares.
type ShareHistory interface {
	History(ctx context.Context, shareID domain.ShareID) ([]*domain.AuditEntry, error)
}
