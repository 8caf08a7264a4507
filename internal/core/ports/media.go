package ports

import (
	"context"

	"sharecast/internal/core/domain"
)

// CaptureSource acquires screen/window capture from the operating environment.
type CaptureSource interface {
	Acquire(ctx context.Context) (*domain.CaptureSession, error)
	// Release stops every unconsumed track in the session. Releasing an
	// already released session is a no-op.
	Release(session *domain.CaptureSession) error
}

// AudioMixer combines two audio tracks into one composed track. Both inputs
// are consumed by the returned mix.
type AudioMixer interface {
	Combine(ctx context.Context, a, b *domain.LocalTrack) (*domain.MixResult, error)
}

// AudioInput opens the environment's default audio input device.
type AudioInput interface {
	OpenDefault(ctx context.Context) (*domain.LocalTrack, error)
}

// TrackPublisher is the boundary to the remote session.
type TrackPublisher interface {
	Publish(ctx context.Context, track *domain.LocalTrack, opts domain.PublishOptions) (domain.PublicationHandle, error)
	Unpublish(ctx context.Context, handle domain.PublicationHandle) error
	// Publications lists what the local participant currently has published.
	Publications() []domain.Publication
	EmitTrackUnpublished(pub domain.Publication)
	OnTrackUnpublished(fn func(domain.Publication)) (cancel func())
}
