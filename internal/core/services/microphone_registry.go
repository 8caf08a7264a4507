package services

import (
	"context"
	"sync"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"
	"sharecast/pkg/retry"

	"go.uber.org/zap"
)

// MicrophoneRegistry tracks the local microphone track and reopens the
// default input device when the participant has none. It never publishes.
type MicrophoneRegistry struct {
	input    ports.AudioInput
	retryCfg retry.Config

	mu       sync.Mutex
	current  *domain.LocalTrack
	detached map[domain.TrackID]*domain.LocalTrack

	logger *zap.SugaredLogger
}

func NewMicrophoneRegistry(input ports.AudioInput, retryCfg retry.Config, logger *zap.SugaredLogger) *MicrophoneRegistry {
	if len(retryCfg.NonRetryableErrors) == 0 {
		retryCfg.NonRetryableErrors = []error{domain.ErrPermissionDenied}
	}
	return &MicrophoneRegistry{
		input:    input,
		retryCfg: retryCfg,
		detached: make(map[domain.TrackID]*domain.LocalTrack),
		logger:   logger,
	}
}

// Inspect scans the local participant's publications and returns at most one
// live microphone track. Tracks produced by capture or mixing are skipped.
func (r *MicrophoneRegistry) Inspect(pubs []domain.Publication) domain.MicrophoneState {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	for i := range pubs {
		track := pubs[i].Track
		if track == nil || track.Kind() != domain.MediaKindAudio || track.Origin() != domain.OriginMicrophone {
			continue
		}
		if _, gone := r.detached[track.ID()]; gone {
			continue
		}
		if track.IsConsumed() || track.Liveness() == domain.LivenessEnded {
			continue
		}

		r.current = track
		pub := pubs[i]
		return domain.MicrophoneState{Track: track, Publication: &pub, Present: true}
	}

	r.current = nil
	return domain.MicrophoneState{}
}

// Detach drops a track from local bookkeeping without stopping it.
func (r *MicrophoneRegistry) Detach(track *domain.LocalTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.detached[track.ID()] = track
	if r.current == track {
		r.current = nil
	}
	r.logger.Debugw("microphone detached", "track_id", track.ID())
}

// pruneLocked forgets detached tracks that have ended.
func (r *MicrophoneRegistry) pruneLocked() {
	for id, track := range r.detached {
		if track.Liveness() == domain.LivenessEnded {
			delete(r.detached, id)
		}
	}
}

// Attach returns a previously detached track to local bookkeeping.
func (r *MicrophoneRegistry) Attach(track *domain.LocalTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.detached, track.ID())
	r.current = track
	r.logger.Debugw("microphone attached", "track_id", track.ID())
}

// Current returns the tracked microphone, if any.
func (r *MicrophoneRegistry) Current() *domain.LocalTrack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Reacquire opens the default audio input and returns a fresh track. The
// caller publishes it.
func (r *MicrophoneRegistry) Reacquire(ctx context.Context) (*domain.LocalTrack, error) {
	track, err := retry.RetryWithResult(ctx, r.retryCfg, func() (*domain.LocalTrack, error) {
		return r.input.OpenDefault(ctx)
	})
	if err != nil {
		r.logger.Warnw("failed to reacquire microphone", "error", err)
		return nil, err
	}

	r.mu.Lock()
	r.current = track
	r.mu.Unlock()

	r.logger.Infow("microphone reacquired", "track_id", track.ID())
	return track, nil
}
