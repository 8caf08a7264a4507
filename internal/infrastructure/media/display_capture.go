package media

import (
	"context"
	"errors"

	"sharecast/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"go.uber.org/zap"
)

// DisplayCapture acquires the screen through the display media driver and
// falls back to a screenshot based source when no driver is usable.
type DisplayCapture struct {
	cfg    CaptureConfig
	codecs *mediadevices.CodecSelector
	logger *zap.SugaredLogger
}

// NewDisplayCapture builds a capture source. A nil codec selector makes every
// Acquire fail with DeviceUnavailable.
func NewDisplayCapture(cfg CaptureConfig, codecs *mediadevices.CodecSelector, logger *zap.SugaredLogger) *DisplayCapture {
	return &DisplayCapture{cfg: cfg, codecs: codecs, logger: logger}
}

func (c *DisplayCapture) Acquire(ctx context.Context) (*domain.CaptureSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewCaptureError(domain.CaptureUnknown, err)
	}
	if c.codecs == nil {
		return nil, classify(ErrCodecsUnavailable)
	}

	stream, err := c.displayMedia(c.cfg.CaptureAudio)
	if err != nil && c.cfg.CaptureAudio && !errors.Is(classify(err), domain.ErrPermissionDenied) {
		c.logger.Warnw("display capture with audio failed, retrying video only", "error", err)
		stream, err = c.displayMedia(false)
	}
	if err != nil {
		captureErr := classify(err)
		if errors.Is(captureErr, domain.ErrPermissionDenied) || !c.cfg.ScreenshotFallback {
			return nil, captureErr
		}
		c.logger.Warnw("display capture failed, falling back to screenshot source", "error", err)
		if stream, err = c.screenshotStream(); err != nil {
			return nil, classify(err)
		}
	}

	session, err := c.sessionFrom(stream)
	if err != nil {
		return nil, err
	}
	c.logger.Infow("screen capture acquired", "session_id", session.ID, "audio", session.HasAudio())
	return session, nil
}

// Release stops every track the session still owns. Tracks consumed by a mix
// are left to the mix.
func (c *DisplayCapture) Release(session *domain.CaptureSession) error {
	if session == nil || !session.MarkReleased() {
		return nil
	}

	var errs []error
	for _, track := range session.Tracks() {
		if track.IsConsumed() {
			continue
		}
		if err := track.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	c.logger.Debugw("screen capture released", "session_id", session.ID)
	return errors.Join(errs...)
}

func (c *DisplayCapture) displayMedia(withAudio bool) (mediadevices.MediaStream, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Video: func(constraint *mediadevices.MediaTrackConstraints) {},
		Codec: c.codecs,
	}
	if withAudio {
		constraints.Audio = func(constraint *mediadevices.MediaTrackConstraints) {
			constraint.SampleRate = prop.Int(c.cfg.SampleRate)
			constraint.ChannelCount = prop.Int(c.cfg.ChannelCount)
		}
	}
	return mediadevices.GetDisplayMedia(constraints)
}

func (c *DisplayCapture) screenshotStream() (mediadevices.MediaStream, error) {
	source, err := newScreenSource(c.cfg.DisplayIndex, c.cfg.FrameRate)
	if err != nil {
		return nil, err
	}
	track := mediadevices.NewVideoTrack(source, c.codecs)
	stream, err := mediadevices.NewMediaStream(track)
	if err != nil {
		_ = track.Close()
		return nil, err
	}
	return stream, nil
}

func (c *DisplayCapture) sessionFrom(stream mediadevices.MediaStream) (*domain.CaptureSession, error) {
	videos := stream.GetVideoTracks()
	audios := stream.GetAudioTracks()

	if len(videos) == 0 {
		for _, track := range stream.GetTracks() {
			_ = track.Close()
		}
		return nil, domain.NewCaptureError(domain.CaptureDeviceUnavailable, errors.New("capture returned no video track"))
	}

	session := &domain.CaptureSession{
		ID:    uuid.NewString(),
		Video: NewLocalTrack(videos[0], domain.OriginCapture),
	}
	for _, extra := range videos[1:] {
		_ = extra.Close()
	}
	if len(audios) > 0 {
		session.Audio = NewLocalTrack(audios[0], domain.OriginCapture)
		for _, extra := range audios[1:] {
			_ = extra.Close()
		}
	}
	return session, nil
}
