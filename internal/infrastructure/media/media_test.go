package media

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"sharecast/internal/core/domain"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type plainMedia struct{ id string }

func (m *plainMedia) ID() string          { return m.id }
func (m *plainMedia) Stop() error         { return nil }
func (m *plainMedia) OnEnded(func(error)) {}

func TestMixSamples_Saturates(t *testing.T) {
	dst := make([]int16, 4)
	mixSamples(dst,
		[]int16{1000, math.MaxInt16, math.MinInt16, 7},
		[]int16{-500, 10, -10},
	)
	assert.Equal(t, []int16{500, math.MaxInt16, math.MinInt16, 7}, dst)
}

func TestFloat32ToInt16(t *testing.T) {
	dst := make([]int16, 4)
	float32ToInt16(dst, []float32{0, 1.5, -2, 0.5})
	assert.Equal(t, int16(0), dst[0])
	assert.Equal(t, int16(math.MaxInt16), dst[1])
	assert.Equal(t, int16(math.MinInt16), dst[2])
	assert.Equal(t, int16(math.MaxInt16/2), dst[3])
}

func chunk(samples ...int16) *wave.Int16Interleaved {
	c := wave.NewInt16Interleaved(wave.ChunkInfo{Len: len(samples), Channels: 1, SamplingRate: 48000})
	copy(c.Data, samples)
	return c
}

func readerOf(chunks ...wave.Audio) audio.Reader {
	i := 0
	return audio.ReaderFunc(func() (wave.Audio, func(), error) {
		if i >= len(chunks) {
			return nil, func() {}, io.EOF
		}
		c := chunks[i]
		i++
		return c, func() {}, nil
	})
}

func TestMixSource_SumsThenPassesThrough(t *testing.T) {
	src := newMixSource("mix", readerOf(chunk(1, 2), chunk(3, 4)), readerOf(chunk(10, 20)), zaptest.NewLogger(t).Sugar())

	first, _, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, []int16{11, 22}, first.(*wave.Int16Interleaved).Data)

	second, _, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, []int16{3, 4}, second.(*wave.Int16Interleaved).Data)

	_, _, err = src.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRemixChannels(t *testing.T) {
	assert.Equal(t, []int16{1, 1, 2, 2}, remixChannels([]int16{1, 2}, 1, 2))
	assert.Equal(t, []int16{2, 5}, remixChannels([]int16{1, 3, 4, 6}, 2, 1))
	assert.Equal(t, []int16{1, 2, 1, 3, 4, 3}, remixChannels([]int16{1, 2, 3, 4}, 2, 3))
	assert.Equal(t, []int16{7, 8}, remixChannels([]int16{7, 8}, 2, 2))
}

func stereoChunk(rate int, samples ...int16) *wave.Int16Interleaved {
	c := wave.NewInt16Interleaved(wave.ChunkInfo{Len: len(samples) / 2, Channels: 2, SamplingRate: rate})
	copy(c.Data, samples)
	return c
}

func TestMixSource_UpmixesMonoInput(t *testing.T) {
	src := newMixSource("mix", readerOf(stereoChunk(48000, 1, 2, 3, 4)), readerOf(chunk(10, 20)), zaptest.NewLogger(t).Sugar())

	out, _, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, []int16{11, 12, 23, 24}, out.(*wave.Int16Interleaved).Data)
}

func TestMixSource_SampleRateMismatchWarnsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := newMixSource("mix",
		readerOf(chunk(1, 2), chunk(3, 4)),
		readerOf(stereoChunk(44100, 10, 10), stereoChunk(44100, 20, 20)),
		zap.New(core).Sugar(),
	)

	first, _, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2}, first.(*wave.Int16Interleaved).Data)

	second, _, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, []int16{3, 4}, second.(*wave.Int16Interleaved).Data)

	assert.Equal(t, 1, logs.FilterMessage("mix input sample rate differs, input dropped from mix").Len())
}

func TestMixSource_ClosedReturnsEOF(t *testing.T) {
	src := newMixSource("mix", readerOf(chunk(1)), readerOf(chunk(1)), zaptest.NewLogger(t).Sugar())
	require.NoError(t, src.Close())

	_, _, err := src.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMixer_RejectsWrongKind(t *testing.T) {
	mixer := NewMixer(mediadevices.NewCodecSelector(), zaptest.NewLogger(t).Sugar())
	video := domain.NewLocalTrack(&plainMedia{id: "v"}, domain.MediaKindVideo, domain.OriginCapture)
	mic := domain.NewLocalTrack(&plainMedia{id: "m"}, domain.MediaKindAudio, domain.OriginMicrophone)

	_, err := mixer.Combine(context.Background(), video, mic)

	assert.ErrorIs(t, err, domain.ErrMixWrongKind)
	assert.False(t, mic.IsConsumed())
}

func TestMixer_ForeignTracksLeaveInputsUntouched(t *testing.T) {
	mixer := NewMixer(mediadevices.NewCodecSelector(), zaptest.NewLogger(t).Sugar())
	a := domain.NewLocalTrack(&plainMedia{id: "a"}, domain.MediaKindAudio, domain.OriginCapture)
	b := domain.NewLocalTrack(&plainMedia{id: "b"}, domain.MediaKindAudio, domain.OriginMicrophone)

	_, err := mixer.Combine(context.Background(), a, b)

	assert.ErrorIs(t, err, domain.ErrMixUnavailable)
	assert.False(t, a.IsConsumed())
	assert.False(t, b.IsConsumed())
}

func TestMixer_WithoutCodecs(t *testing.T) {
	mixer := NewMixer(nil, zaptest.NewLogger(t).Sugar())
	a := domain.NewLocalTrack(&plainMedia{id: "a"}, domain.MediaKindAudio, domain.OriginCapture)
	b := domain.NewLocalTrack(&plainMedia{id: "b"}, domain.MediaKindAudio, domain.OriginMicrophone)

	_, err := mixer.Combine(context.Background(), a, b)
	assert.ErrorIs(t, err, domain.ErrMixUnavailable)
	assert.ErrorIs(t, err, ErrCodecsUnavailable)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{errors.New("Permission denied by system"), domain.ErrPermissionDenied},
		{errors.New("user cancelled the picker"), domain.ErrPermissionDenied},
		{errors.New("failed to find the best driver that fits the constraints"), domain.ErrDeviceUnavailable},
		{errNoDisplay, domain.ErrDeviceUnavailable},
		{ErrCodecsUnavailable, domain.ErrDeviceUnavailable},
		{errors.New("segfault in driver"), domain.ErrCaptureUnknown},
		{domain.NewCaptureError(domain.CapturePermissionDenied, nil), domain.ErrPermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.ErrorIs(t, classify(tc.err), tc.want)
		})
	}
}

func TestDisplayCapture_WithoutCodecs(t *testing.T) {
	capture := NewDisplayCapture(CaptureConfig{CaptureAudio: true}, nil, zaptest.NewLogger(t).Sugar())

	_, err := capture.Acquire(context.Background())
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestDisplayCapture_ReleaseSkipsConsumedAndIsIdempotent(t *testing.T) {
	capture := NewDisplayCapture(CaptureConfig{}, nil, zaptest.NewLogger(t).Sugar())
	video := domain.NewLocalTrack(&plainMedia{id: "v"}, domain.MediaKindVideo, domain.OriginCapture)
	audioTrack := domain.NewLocalTrack(&plainMedia{id: "a"}, domain.MediaKindAudio, domain.OriginCapture)
	require.NoError(t, audioTrack.Consume())
	session := &domain.CaptureSession{ID: "s", Video: video, Audio: audioTrack}

	require.NoError(t, capture.Release(session))
	require.NoError(t, capture.Release(session))
	require.NoError(t, capture.Release(nil))

	assert.Equal(t, domain.LivenessEnded, video.Liveness())
	assert.Equal(t, domain.LivenessActive, audioTrack.Liveness())
}

func TestMicrophoneInput_SelectDevice(t *testing.T) {
	devices := []mediadevices.MediaDeviceInfo{
		{DeviceID: "cam", Kind: mediadevices.VideoInput, Label: "camera"},
		{DeviceID: "hw:0", Kind: mediadevices.AudioInput, Label: "built-in"},
		{DeviceID: "hw:1", Kind: mediadevices.AudioInput, Label: "Default input"},
	}
	input := NewMicrophoneInput(CaptureConfig{}, nil, zaptest.NewLogger(t).Sugar())
	input.enumerate = func() []mediadevices.MediaDeviceInfo { return devices }

	device, err := input.selectDevice()
	require.NoError(t, err)
	assert.Equal(t, "hw:1", device.DeviceID)

	input.cfg.MicrophoneDeviceID = "hw:0"
	device, err = input.selectDevice()
	require.NoError(t, err)
	assert.Equal(t, "built-in", device.Label)

	input.cfg.MicrophoneDeviceID = "usb"
	_, err = input.selectDevice()
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)

	input.enumerate = func() []mediadevices.MediaDeviceInfo { return devices[:1] }
	input.cfg.MicrophoneDeviceID = ""
	_, err = input.selectDevice()
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestMicrophoneInput_OpensSelectedDevice(t *testing.T) {
	input := NewMicrophoneInput(CaptureConfig{SampleRate: 48000, ChannelCount: 2}, mediadevices.NewCodecSelector(), zaptest.NewLogger(t).Sugar())
	input.enumerate = func() []mediadevices.MediaDeviceInfo {
		return []mediadevices.MediaDeviceInfo{
			{DeviceID: "hw:0", Kind: mediadevices.AudioInput, Label: "built-in"},
			{DeviceID: "hw:1", Kind: mediadevices.AudioInput, Label: "Default input"},
		}
	}

	var applied mediadevices.MediaTrackConstraints
	input.getUserMedia = func(constraints mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
		require.NotNil(t, constraints.Audio)
		require.Nil(t, constraints.Video)
		constraints.Audio(&applied)
		return nil, errors.New("failed to find the best driver that fits the constraints")
	}

	_, err := input.OpenDefault(context.Background())

	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	assert.Equal(t, prop.StringExact("hw:1"), applied.DeviceID)
	assert.Equal(t, prop.Int(48000), applied.SampleRate)
	assert.Equal(t, prop.Int(2), applied.ChannelCount)
}

func TestMicrophoneInput_WithoutCodecs(t *testing.T) {
	input := NewMicrophoneInput(CaptureConfig{}, nil, zaptest.NewLogger(t).Sugar())
	_, err := input.OpenDefault(context.Background())
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}
