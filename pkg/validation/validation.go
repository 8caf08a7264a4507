package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxSDPLength bounds session descriptions accepted from clients.
const MaxSDPLength = 64 * 1024

var (
	// SubjectRegex validates token subjects
	SubjectRegex = regexp.MustCompile(`^[a-zA-Z0-9._@-]+$`)
)

// ValidateSubject validates the subject a token is issued to
func ValidateSubject(subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return fmt.Errorf("subject is required")
	}
	if utf8.RuneCountInString(subject) > 64 {
		return fmt.Errorf("subject is too long (max 64 characters)")
	}
	if !SubjectRegex.MatchString(subject) {
		return fmt.Errorf("subject contains invalid characters")
	}
	return nil
}

// ValidateRole accepts the roles the control API knows about
func ValidateRole(role string) error {
	switch role {
	case "viewer", "controller":
		return nil
	case "":
		return fmt.Errorf("role is required")
	default:
		return fmt.Errorf("unknown role: %s", role)
	}
}

// ValidateShareID checks that id looks like a share id
func ValidateShareID(id string) error {
	if id == "" {
		return fmt.Errorf("share id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid share id format")
	}
	return nil
}

// ValidateOffer checks a client session description before it reaches the
// peer connection.
func ValidateOffer(sdpType, sdp string) error {
	if sdpType != "offer" {
		return fmt.Errorf("session description type must be offer, got %q", sdpType)
	}
	if strings.TrimSpace(sdp) == "" {
		return fmt.Errorf("sdp is required")
	}
	if len(sdp) > MaxSDPLength {
		return fmt.Errorf("sdp is too long (max %d bytes)", MaxSDPLength)
	}
	if !strings.HasPrefix(sdp, "v=0") {
		return fmt.Errorf("sdp must start with a version line")
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}
