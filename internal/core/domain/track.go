package domain

import (
	"errors"
	"sync"
	"sync/atomic"
)

type TrackID string

// MediaKind identifies the kind of a local media track.
type MediaKind int

const (
	MediaKindVideo MediaKind = iota
	MediaKindAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindVideo:
		return "video"
	case MediaKindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Liveness reports whether a track still produces media.
type Liveness int32

const (
	LivenessActive Liveness = iota
	LivenessEnded
)

func (l Liveness) String() string {
	if l == LivenessEnded {
		return "ended"
	}
	return "active"
}

// TrackOrigin records which component produced a track.
type TrackOrigin int

const (
	OriginCapture TrackOrigin = iota
	OriginMicrophone
	OriginMix
)

func (o TrackOrigin) String() string {
	switch o {
	case OriginCapture:
		return "capture"
	case OriginMicrophone:
		return "microphone"
	case OriginMix:
		return "mix"
	default:
		return "unknown"
	}
}

var (
	ErrTrackConsumed    = errors.New("track is consumed by a mix")
	ErrTrackNotConsumed = errors.New("track is not consumed")
	ErrTrackEnded       = errors.New("track has ended")
)

// MediaSource is the live media behind a LocalTrack.
type MediaSource interface {
	ID() string
	Stop() error
	OnEnded(func(error))
}

// LocalTrack is a handle to one locally produced media stream component.
// Stop runs the underlying source's Stop at most once. A consumed track
// belongs to a mix and can only be stopped through ReleaseConsumed.
type LocalTrack struct {
	media  MediaSource
	kind   MediaKind
	origin TrackOrigin

	liveness atomic.Int32
	consumed atomic.Bool

	stopOnce sync.Once
	stopErr  error

	mu    sync.Mutex
	name  string
	ended []func(error)
}

func NewLocalTrack(media MediaSource, kind MediaKind, origin TrackOrigin) *LocalTrack {
	t := &LocalTrack{
		media:  media,
		kind:   kind,
		origin: origin,
	}
	media.OnEnded(t.handleEnded)
	return t
}

func (t *LocalTrack) ID() TrackID {
	return TrackID(t.media.ID())
}

func (t *LocalTrack) Kind() MediaKind {
	return t.kind
}

func (t *LocalTrack) Origin() TrackOrigin {
	return t.origin
}

// Media returns the source backing this track, for adapters that need the
// concrete media type.
func (t *LocalTrack) Media() MediaSource {
	return t.media
}

func (t *LocalTrack) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// AssignName sets the publication name for the current publish cycle.
func (t *LocalTrack) AssignName(name string) {
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()
}

func (t *LocalTrack) Liveness() Liveness {
	return Liveness(t.liveness.Load())
}

func (t *LocalTrack) IsConsumed() bool {
	return t.consumed.Load()
}

// OnEnded registers fn to run when the environment ends the track out of band.
// Stopping the track through Stop does not invoke it.
func (t *LocalTrack) OnEnded(fn func(error)) {
	t.mu.Lock()
	t.ended = append(t.ended, fn)
	t.mu.Unlock()
}

// Stop stops the underlying media. Calling it again returns the first result.
func (t *LocalTrack) Stop() error {
	if t.consumed.Load() {
		return ErrTrackConsumed
	}
	return t.stop()
}

// Consume transfers ownership of the track to a mix.
func (t *LocalTrack) Consume() error {
	if t.Liveness() == LivenessEnded {
		return ErrTrackEnded
	}
	if !t.consumed.CompareAndSwap(false, true) {
		return ErrTrackConsumed
	}
	return nil
}

// ReleaseConsumed stops a consumed track. Only a mix's teardown path calls it.
func (t *LocalTrack) ReleaseConsumed() error {
	if !t.consumed.Load() {
		return ErrTrackNotConsumed
	}
	return t.stop()
}

func (t *LocalTrack) restore() {
	t.consumed.Store(false)
}

func (t *LocalTrack) stop() error {
	t.stopOnce.Do(func() {
		t.liveness.Store(int32(LivenessEnded))
		t.stopErr = t.media.Stop()
	})
	return t.stopErr
}

func (t *LocalTrack) handleEnded(err error) {
	if !t.liveness.CompareAndSwap(int32(LivenessActive), int32(LivenessEnded)) {
		return
	}

	t.mu.Lock()
	hooks := make([]func(error), len(t.ended))
	copy(hooks, t.ended)
	t.mu.Unlock()

	for _, fn := range hooks {
		fn(err)
	}
}

// ConsumePair consumes both tracks or neither.
func ConsumePair(a, b *LocalTrack) error {
	if err := a.Consume(); err != nil {
		return err
	}
	if err := b.Consume(); err != nil {
		a.restore()
		return err
	}
	return nil
}
