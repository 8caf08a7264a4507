package media

import "sharecast/pkg/config"

// CaptureConfig holds the capture and encoding parameters shared by the
// display capture, the microphone input and the mixer.
type CaptureConfig struct {
	FrameRate          float64
	SampleRate         int
	ChannelCount       int
	DisplayIndex       int
	CaptureAudio       bool
	ScreenshotFallback bool
	MicrophoneDeviceID string
}

func CaptureConfigFrom(cfg *config.Config) CaptureConfig {
	return CaptureConfig{
		FrameRate:          cfg.Capture.FrameRate,
		SampleRate:         cfg.Capture.SampleRate,
		ChannelCount:       cfg.Capture.ChannelCount,
		DisplayIndex:       cfg.Capture.DisplayIndex,
		CaptureAudio:       cfg.Capture.CaptureAudio,
		ScreenshotFallback: cfg.Capture.ScreenshotFallback,
		MicrophoneDeviceID: cfg.Microphone.DeviceID,
	}
}
