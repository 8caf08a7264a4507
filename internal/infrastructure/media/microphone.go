package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sharecast/internal/core/domain"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"go.uber.org/zap"
)

// MicrophoneInput opens the environment's default audio input.
type MicrophoneInput struct {
	cfg    CaptureConfig
	codecs *mediadevices.CodecSelector
	logger *zap.SugaredLogger

	// enumerate and getUserMedia are replaced in tests.
	enumerate    func() []mediadevices.MediaDeviceInfo
	getUserMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

func NewMicrophoneInput(cfg CaptureConfig, codecs *mediadevices.CodecSelector, logger *zap.SugaredLogger) *MicrophoneInput {
	return &MicrophoneInput{
		cfg:          cfg,
		codecs:       codecs,
		logger:       logger,
		enumerate:    mediadevices.EnumerateDevices,
		getUserMedia: mediadevices.GetUserMedia,
	}
}

func (m *MicrophoneInput) OpenDefault(ctx context.Context) (*domain.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewCaptureError(domain.CaptureUnknown, err)
	}
	if m.codecs == nil {
		return nil, classify(ErrCodecsUnavailable)
	}

	device, err := m.selectDevice()
	if err != nil {
		return nil, err
	}

	stream, err := m.getUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(constraint *mediadevices.MediaTrackConstraints) {
			constraint.DeviceID = prop.StringExact(device.DeviceID)
			constraint.SampleRate = prop.Int(m.cfg.SampleRate)
			constraint.ChannelCount = prop.Int(m.cfg.ChannelCount)
		},
		Codec: m.codecs,
	})
	if err != nil {
		m.logger.Warnw("failed to open microphone", "device_id", device.DeviceID, "error", err)
		return nil, classify(err)
	}

	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, domain.NewCaptureError(domain.CaptureDeviceUnavailable, errors.New("audio input returned no track"))
	}
	for _, extra := range tracks[1:] {
		_ = extra.Close()
	}

	m.logger.Infow("microphone opened", "device", device.Label, "device_id", device.DeviceID, "track_id", tracks[0].ID())
	return NewLocalTrack(tracks[0], domain.OriginMicrophone), nil
}

// selectDevice picks the configured device, else the one labelled default,
// else the first audio input.
func (m *MicrophoneInput) selectDevice() (mediadevices.MediaDeviceInfo, error) {
	var inputs []mediadevices.MediaDeviceInfo
	for _, device := range m.enumerate() {
		if device.Kind == mediadevices.AudioInput {
			inputs = append(inputs, device)
		}
	}
	if len(inputs) == 0 {
		return mediadevices.MediaDeviceInfo{}, domain.NewCaptureError(domain.CaptureDeviceUnavailable, errors.New("no audio input device"))
	}

	if want := m.cfg.MicrophoneDeviceID; want != "" {
		for _, device := range inputs {
			if device.DeviceID == want || device.Label == want {
				return device, nil
			}
		}
		return mediadevices.MediaDeviceInfo{}, domain.NewCaptureError(domain.CaptureDeviceUnavailable,
			fmt.Errorf("audio input %q not found", want))
	}

	for _, device := range inputs {
		if strings.Contains(strings.ToLower(device.Label), "default") {
			return device, nil
		}
	}
	return inputs[0], nil
}
