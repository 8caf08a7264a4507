package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRegistry(t *testing.T, input *fakeInput, cfg retry.Config) *MicrophoneRegistry {
	return NewMicrophoneRegistry(input, cfg, zaptest.NewLogger(t).Sugar())
}

func micPublication(track *domain.LocalTrack) domain.Publication {
	return domain.Publication{
		Track:  track,
		Handle: domain.PublicationHandle{SID: "TR_" + string(track.ID()), Name: "microphone"},
		Source: domain.SourceMicrophone,
	}
}

func TestInspect_FindsMicrophone(t *testing.T) {
	reg := newTestRegistry(t, &fakeInput{log: &callLog{}}, retry.Config{})
	mic := domain.NewLocalTrack(newFakeMedia("mic"), domain.MediaKindAudio, domain.OriginMicrophone)
	video := domain.NewLocalTrack(newFakeMedia("cam"), domain.MediaKindVideo, domain.OriginCapture)

	state := reg.Inspect([]domain.Publication{micPublication(video), micPublication(mic)})

	require.True(t, state.Present)
	assert.Same(t, mic, state.Track)
	require.NotNil(t, state.Publication)
	assert.Equal(t, "microphone", state.Publication.Handle.Name)
	assert.Same(t, mic, reg.Current())
}

func TestInspect_SkipsCaptureAndMixAudio(t *testing.T) {
	reg := newTestRegistry(t, &fakeInput{log: &callLog{}}, retry.Config{})
	captured := domain.NewLocalTrack(newFakeMedia("screen-audio"), domain.MediaKindAudio, domain.OriginCapture)
	mixed := domain.NewLocalTrack(newFakeMedia("mix"), domain.MediaKindAudio, domain.OriginMix)

	state := reg.Inspect([]domain.Publication{micPublication(captured), micPublication(mixed)})

	assert.False(t, state.Present)
	assert.Nil(t, reg.Current())
}

func TestInspect_SkipsEndedAndConsumed(t *testing.T) {
	reg := newTestRegistry(t, &fakeInput{log: &callLog{}}, retry.Config{})

	ended := domain.NewLocalTrack(newFakeMedia("mic"), domain.MediaKindAudio, domain.OriginMicrophone)
	require.NoError(t, ended.Stop())
	consumed := domain.NewLocalTrack(newFakeMedia("mic"), domain.MediaKindAudio, domain.OriginMicrophone)
	require.NoError(t, consumed.Consume())

	state := reg.Inspect([]domain.Publication{micPublication(ended), micPublication(consumed)})
	assert.False(t, state.Present)
}

func TestDetachHidesTrackUntilAttached(t *testing.T) {
	reg := newTestRegistry(t, &fakeInput{log: &callLog{}}, retry.Config{})
	mic := domain.NewLocalTrack(newFakeMedia("mic"), domain.MediaKindAudio, domain.OriginMicrophone)
	pubs := []domain.Publication{micPublication(mic)}

	require.True(t, reg.Inspect(pubs).Present)

	reg.Detach(mic)
	assert.Nil(t, reg.Current())
	assert.False(t, reg.Inspect(pubs).Present)
	assert.Equal(t, int32(0), mediaOf(mic).stops.Load(), "detach never stops the track")

	reg.Attach(mic)
	assert.Same(t, mic, reg.Current())
	assert.True(t, reg.Inspect(pubs).Present)
}

func TestInspect_ForgetsEndedDetachedTracks(t *testing.T) {
	reg := newTestRegistry(t, &fakeInput{log: &callLog{}}, retry.Config{})
	live := domain.NewLocalTrack(newFakeMedia("mic"), domain.MediaKindAudio, domain.OriginMicrophone)
	gone := domain.NewLocalTrack(newFakeMedia("mic"), domain.MediaKindAudio, domain.OriginMicrophone)

	reg.Detach(live)
	reg.Detach(gone)
	require.NoError(t, gone.Stop())

	reg.Inspect(nil)

	assert.Len(t, reg.detached, 1)
	assert.Contains(t, reg.detached, live.ID())
}

func TestReacquire_OpensDefaultInput(t *testing.T) {
	input := &fakeInput{log: &callLog{}}
	reg := newTestRegistry(t, input, retry.Config{})

	track, err := reg.Reacquire(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OriginMicrophone, track.Origin())
	assert.Same(t, track, reg.Current())
	assert.Equal(t, 1, input.openCount())
}

func TestReacquire_DoesNotRetryPermissionDenied(t *testing.T) {
	input := &fakeInput{log: &callLog{}, err: domain.NewCaptureError(domain.CapturePermissionDenied, errors.New("blocked"))}
	reg := newTestRegistry(t, input, retry.Config{Enabled: true, MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})

	_, err := reg.Reacquire(context.Background())

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, 1, input.openCount())
	assert.Nil(t, reg.Current())
}

func TestReacquire_RetriesUnavailableDevice(t *testing.T) {
	input := &fakeInput{log: &callLog{}, err: domain.NewCaptureError(domain.CaptureDeviceUnavailable, errors.New("busy"))}
	reg := newTestRegistry(t, input, retry.Config{Enabled: true, MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})

	_, err := reg.Reacquire(context.Background())

	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	assert.Equal(t, 3, input.openCount())
}
