package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]SharingState{
		{SharingIdle, SharingAcquiring},
		{SharingAcquiring, SharingPublishing},
		{SharingAcquiring, SharingIdle},
		{SharingPublishing, SharingActive},
		{SharingPublishing, SharingIdle},
		{SharingActive, SharingStopping},
		{SharingStopping, SharingIdle},
	}
	for _, edge := range legal {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	illegal := [][2]SharingState{
		{SharingIdle, SharingActive},
		{SharingIdle, SharingStopping},
		{SharingAcquiring, SharingActive},
		{SharingActive, SharingIdle},
		{SharingActive, SharingAcquiring},
		{SharingStopping, SharingActive},
	}
	for _, edge := range illegal {
		assert.False(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestSharingState_Stable(t *testing.T) {
	assert.True(t, SharingIdle.Stable())
	assert.True(t, SharingActive.Stable())
	assert.False(t, SharingAcquiring.Stable())
	assert.False(t, SharingPublishing.Stable())
	assert.False(t, SharingStopping.Stable())
	assert.Equal(t, "sharing", SharingActive.String())
}

func TestCaptureSession_Release(t *testing.T) {
	video, _ := newStubTrack(MediaKindVideo, OriginCapture)
	session := &CaptureSession{ID: "s", Video: video}

	assert.False(t, session.HasAudio())
	assert.Len(t, session.Tracks(), 1)
	assert.True(t, session.MarkReleased())
	assert.False(t, session.MarkReleased())
	assert.True(t, session.Released())
}

func TestPublishedSet(t *testing.T) {
	video, _ := newStubTrack(MediaKindVideo, OriginCapture)
	audio, _ := newStubTrack(MediaKindAudio, OriginMix)

	var set PublishedSet
	set.Append(Publication{Track: video, Handle: PublicationHandle{SID: "1", Name: "screen-video-0-a"}})
	set.Append(Publication{Track: audio, Handle: PublicationHandle{SID: "2", Name: "screen-audio-0-a"}})

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"screen-video-0-a", "screen-audio-0-a"}, set.Names())
	assert.Equal(t, 1, CountKind(set.Entries(), MediaKindAudio))

	entries := set.Entries()
	entries[0].Handle.Name = "mutated"
	assert.Equal(t, "screen-video-0-a", set.Names()[0])

	set.Clear()
	assert.Equal(t, 0, set.Len())
	assert.Empty(t, set.Names())
}

func TestErrorKinds(t *testing.T) {
	denied := fmt.Errorf("acquire: %w", NewCaptureError(CapturePermissionDenied, errors.New("cancelled")))
	assert.ErrorIs(t, denied, ErrPermissionDenied)
	assert.NotErrorIs(t, denied, ErrDeviceUnavailable)
	assert.False(t, IsSurfaced(denied))
	assert.False(t, IsSurfaced(nil))

	unavailable := NewCaptureError(CaptureDeviceUnavailable, nil)
	assert.True(t, IsSurfaced(unavailable))
	assert.Equal(t, "capture device_unavailable", unavailable.Error())

	publish := NewPublishError(PublishRejected, "screen-video-0-a", errors.New("denied"))
	assert.ErrorIs(t, publish, ErrPublishRejected)
	assert.Equal(t, "publish rejected (track screen-video-0-a): denied", publish.Error())

	agg := NewControllerError(ControllerNothingPublished, errors.Join(publish))
	assert.ErrorIs(t, agg, ErrNothingPublished)
	assert.ErrorIs(t, agg, ErrPublishRejected)
	assert.True(t, IsSurfaced(agg))

	assert.ErrorIs(t, NewMixError(MixWrongKind, nil), ErrMixWrongKind)
	assert.NotErrorIs(t, NewMixError(MixWrongKind, nil), ErrMixUnavailable)
}

func TestShareStatusJSON(t *testing.T) {
	raw, err := json.Marshal(ShareStatus{State: SharingActive, ShareID: "abc", Tracks: []string{"screen-video-1-abc"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"sharing","share_id":"abc","tracks":["screen-video-1-abc"]}`, string(raw))
}

func TestSharingStateTextRoundTrip(t *testing.T) {
	var state SharingState
	require.NoError(t, state.UnmarshalText([]byte("stopping")))
	assert.Equal(t, SharingStopping, state)
	assert.Error(t, state.UnmarshalText([]byte("paused")))
}
