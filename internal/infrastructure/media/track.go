package media

import (
	"sharecast/internal/core/domain"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/webrtc/v4"
)

// Track adapts a mediadevices track to domain.MediaSource.
type Track struct {
	track mediadevices.Track
}

func (t *Track) ID() string {
	return t.track.ID()
}

func (t *Track) Stop() error {
	return t.track.Close()
}

func (t *Track) OnEnded(fn func(error)) {
	t.track.OnEnded(fn)
}

// TrackLocal exposes the track for a peer connection.
func (t *Track) TrackLocal() webrtc.TrackLocal {
	return t.track
}

// NewLocalTrack wraps a live mediadevices track as a domain track.
func NewLocalTrack(track mediadevices.Track, origin domain.TrackOrigin) *domain.LocalTrack {
	kind := domain.MediaKindVideo
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		kind = domain.MediaKindAudio
	}
	return domain.NewLocalTrack(&Track{track: track}, kind, origin)
}

// audioReader opens a raw sample reader on an audio track produced by this
// package. It reports false for any other track.
func audioReader(track *domain.LocalTrack) (audio.Reader, bool) {
	wrapped, ok := track.Media().(*Track)
	if !ok {
		return nil, false
	}
	at, ok := wrapped.track.(*mediadevices.AudioTrack)
	if !ok {
		return nil, false
	}
	return at.NewReader(false), true
}
