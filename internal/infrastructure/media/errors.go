package media

import (
	"errors"
	"strings"

	"sharecast/internal/core/domain"
)

// ErrCodecsUnavailable is returned when the binary was built without encoders.
var ErrCodecsUnavailable = errors.New("media encoders are not available in this build")

var (
	deniedMarkers      = []string{"permission", "denied", "not allowed", "cancel"}
	unavailableMarkers = []string{"not found", "no display", "failed to find", "no device", "unavailable", "busy", "not available"}
)

// classify maps a capture driver error onto the capture error taxonomy.
// Drivers only report strings, so the message is matched.
func classify(err error) *domain.CaptureError {
	var captureErr *domain.CaptureError
	if errors.As(err, &captureErr) {
		return captureErr
	}
	if errors.Is(err, ErrCodecsUnavailable) {
		return domain.NewCaptureError(domain.CaptureDeviceUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range deniedMarkers {
		if strings.Contains(msg, marker) {
			return domain.NewCaptureError(domain.CapturePermissionDenied, err)
		}
	}
	for _, marker := range unavailableMarkers {
		if strings.Contains(msg, marker) {
			return domain.NewCaptureError(domain.CaptureDeviceUnavailable, err)
		}
	}
	return domain.NewCaptureError(domain.CaptureUnknown, err)
}
