package domain

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type ShareID string

// SharingState is the screen-share controller's state machine value.
type SharingState int

const (
	SharingIdle SharingState = iota
	SharingAcquiring
	SharingPublishing
	SharingActive
	SharingStopping
)

func (s SharingState) String() string {
	switch s {
	case SharingIdle:
		return "idle"
	case SharingAcquiring:
		return "acquiring"
	case SharingPublishing:
		return "publishing"
	case SharingActive:
		return "sharing"
	case SharingStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

func (s SharingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SharingState) UnmarshalText(text []byte) error {
	for candidate := SharingIdle; candidate <= SharingStopping; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown sharing state %q", text)
}

// Stable reports whether the state is one a transition may rest in.
func (s SharingState) Stable() bool {
	return s == SharingIdle || s == SharingActive
}

var legalTransitions = map[SharingState][]SharingState{
	SharingIdle:       {SharingAcquiring},
	SharingAcquiring:  {SharingPublishing, SharingIdle},
	SharingPublishing: {SharingActive, SharingIdle},
	SharingActive:     {SharingStopping},
	SharingStopping:   {SharingIdle},
}

// CanTransition reports whether from -> to is a legal state machine edge.
func CanTransition(from, to SharingState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CaptureSession is one screen-capture grant.
type CaptureSession struct {
	ID    string
	Video *LocalTrack
	Audio *LocalTrack

	released atomic.Bool
}

func (s *CaptureSession) HasAudio() bool {
	return s.Audio != nil
}

// Tracks returns the session's tracks, video first.
func (s *CaptureSession) Tracks() []*LocalTrack {
	tracks := make([]*LocalTrack, 0, 2)
	if s.Video != nil {
		tracks = append(tracks, s.Video)
	}
	if s.Audio != nil {
		tracks = append(tracks, s.Audio)
	}
	return tracks
}

// MarkReleased flags the session as consumed. It returns false when the
// session had already been released.
func (s *CaptureSession) MarkReleased() bool {
	return s.released.CompareAndSwap(false, true)
}

func (s *CaptureSession) Released() bool {
	return s.released.Load()
}

// MicrophoneState is the result of inspecting the local participant's tracks.
type MicrophoneState struct {
	Track       *LocalTrack
	Publication *Publication
	Present     bool
}

// MixResult owns a composed audio track and the two sources feeding it.
type MixResult struct {
	Composed *LocalTrack
	Sources  [2]*LocalTrack

	releaseOnce sync.Once
	releaseErr  error
	teardown    func() error
}

func NewMixResult(composed, a, b *LocalTrack, teardown func() error) *MixResult {
	return &MixResult{
		Composed: composed,
		Sources:  [2]*LocalTrack{a, b},
		teardown: teardown,
	}
}

// Release stops the composed track and both sources exactly once.
func (m *MixResult) Release() error {
	m.releaseOnce.Do(func() {
		if m.teardown != nil {
			m.releaseErr = m.teardown()
		}
	})
	return m.releaseErr
}

// TrackPriority is the publish priority hint sent with a track.
type TrackPriority string

const (
	PriorityLow      TrackPriority = "low"
	PriorityStandard TrackPriority = "standard"
	PriorityHigh     TrackPriority = "high"
)

// TrackSource tells listeners what a published track carries.
type TrackSource string

const (
	SourceScreenShare      TrackSource = "screen_share"
	SourceScreenShareAudio TrackSource = "screen_share_audio"
	SourceMicrophone       TrackSource = "microphone"
)

type PublishOptions struct {
	Name     string
	Priority TrackPriority
	Source   TrackSource
}

// PublicationHandle identifies one published track on the remote session.
type PublicationHandle struct {
	SID  string
	Name string
}

// Publication pairs a published track with its handle. Mix is set when the
// track is the composed output of a mix.
type Publication struct {
	Track       *LocalTrack
	Handle      PublicationHandle
	Source      TrackSource
	Priority    TrackPriority
	Mix         *MixResult
	PublishedAt time.Time
}

// PublishedSet is the ordered list of tracks published for the active share.
// It is append-only while publishing and cleared once while stopping.
type PublishedSet struct {
	entries []Publication
}

func (s *PublishedSet) Append(pub Publication) {
	s.entries = append(s.entries, pub)
}

func (s *PublishedSet) Len() int {
	return len(s.entries)
}

func (s *PublishedSet) Entries() []Publication {
	out := make([]Publication, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *PublishedSet) Names() []string {
	names := make([]string, 0, len(s.entries))
	for _, pub := range s.entries {
		names = append(names, pub.Handle.Name)
	}
	return names
}

// Clear empties the set once every entry has been unpublished.
func (s *PublishedSet) Clear() {
	s.entries = nil
}

// CountKind counts publications carrying tracks of the given kind.
func CountKind(pubs []Publication, kind MediaKind) int {
	n := 0
	for _, pub := range pubs {
		if pub.Track != nil && pub.Track.Kind() == kind {
			n++
		}
	}
	return n
}
