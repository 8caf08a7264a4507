//go:build cgo

package main

import (
	"fmt"

	"sharecast/pkg/config"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"

	// capture drivers register themselves with mediadevices
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
)

// newCodecSelector builds the VP8 + Opus encoders used for captured and
// mixed tracks.
func newCodecSelector(cfg *config.Config) (*mediadevices.CodecSelector, error) {
	vpx8Params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("failed to create VP8 params: %w", err)
	}
	vpx8Params.BitRate = cfg.Capture.VideoBitrate
	vpx8Params.KeyFrameInterval = int(cfg.Capture.FrameRate * 2)

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("failed to create Opus params: %w", err)
	}
	opusParams.BitRate = cfg.Capture.AudioBitrate

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpx8Params),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}
