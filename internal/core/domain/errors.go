package domain

import (
	"errors"
	"fmt"
)

// CaptureErrorKind classifies capture failures.
type CaptureErrorKind int

const (
	CapturePermissionDenied CaptureErrorKind = iota
	CaptureDeviceUnavailable
	CaptureUnknown
)

func (k CaptureErrorKind) String() string {
	switch k {
	case CapturePermissionDenied:
		return "permission_denied"
	case CaptureDeviceUnavailable:
		return "device_unavailable"
	default:
		return "unknown"
	}
}

// CaptureError is returned by capture and device acquisition.
type CaptureError struct {
	Kind CaptureErrorKind
	Err  error
}

func NewCaptureError(kind CaptureErrorKind, err error) *CaptureError {
	return &CaptureError{Kind: kind, Err: err}
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("capture %s", e.Kind)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Is matches any CaptureError of the same kind.
func (e *CaptureError) Is(target error) bool {
	t, ok := target.(*CaptureError)
	return ok && t.Kind == e.Kind
}

// MixErrorKind classifies mixing failures.
type MixErrorKind int

const (
	MixWrongKind MixErrorKind = iota
	MixEngineUnavailable
)

func (k MixErrorKind) String() string {
	if k == MixWrongKind {
		return "wrong_kind"
	}
	return "engine_unavailable"
}

type MixError struct {
	Kind MixErrorKind
	Err  error
}

func NewMixError(kind MixErrorKind, err error) *MixError {
	return &MixError{Kind: kind, Err: err}
}

func (e *MixError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mix %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("mix %s", e.Kind)
}

func (e *MixError) Unwrap() error { return e.Err }

func (e *MixError) Is(target error) bool {
	t, ok := target.(*MixError)
	return ok && t.Kind == e.Kind
}

// PublishErrorKind classifies failures reported by the remote session.
type PublishErrorKind int

const (
	PublishRejected PublishErrorKind = iota
	PublishTransport
)

func (k PublishErrorKind) String() string {
	if k == PublishRejected {
		return "rejected"
	}
	return "transport"
}

type PublishError struct {
	Kind      PublishErrorKind
	TrackName string
	Err       error
}

func NewPublishError(kind PublishErrorKind, trackName string, err error) *PublishError {
	return &PublishError{Kind: kind, TrackName: trackName, Err: err}
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("publish %s", e.Kind)
	if e.TrackName != "" {
		msg += fmt.Sprintf(" (track %s)", e.TrackName)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool {
	t, ok := target.(*PublishError)
	return ok && t.Kind == e.Kind
}

// ControllerErrorKind classifies controller-level outcomes.
type ControllerErrorKind int

const (
	ControllerNoActiveSession ControllerErrorKind = iota
	ControllerBusy
	ControllerNothingPublished
)

func (k ControllerErrorKind) String() string {
	switch k {
	case ControllerNoActiveSession:
		return "no_active_session"
	case ControllerBusy:
		return "busy"
	case ControllerNothingPublished:
		return "nothing_published"
	default:
		return "unknown"
	}
}

type ControllerError struct {
	Kind ControllerErrorKind
	Err  error
}

func NewControllerError(kind ControllerErrorKind, err error) *ControllerError {
	return &ControllerError{Kind: kind, Err: err}
}

func (e *ControllerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("screen share %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("screen share %s", e.Kind)
}

func (e *ControllerError) Unwrap() error { return e.Err }

func (e *ControllerError) Is(target error) bool {
	t, ok := target.(*ControllerError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrPermissionDenied   = &CaptureError{Kind: CapturePermissionDenied}
	ErrDeviceUnavailable  = &CaptureError{Kind: CaptureDeviceUnavailable}
	ErrCaptureUnknown     = &CaptureError{Kind: CaptureUnknown}
	ErrMixWrongKind       = &MixError{Kind: MixWrongKind}
	ErrMixUnavailable     = &MixError{Kind: MixEngineUnavailable}
	ErrPublishRejected    = &PublishError{Kind: PublishRejected}
	ErrPublishTransport   = &PublishError{Kind: PublishTransport}
	ErrNoActiveSession    = &ControllerError{Kind: ControllerNoActiveSession}
	ErrShareBusy          = &ControllerError{Kind: ControllerBusy}
	ErrNothingPublished   = &ControllerError{Kind: ControllerNothingPublished}
	ErrPublicationUnknown = errors.New("publication not found")
)

// IsSurfaced reports whether err may be reported to the user. Capture
// permission denials are an expected outcome of cancelling the picker.
func IsSurfaced(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrPermissionDenied)
}
