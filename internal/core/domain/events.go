package domain

import "time"

// EventType names a share lifecycle event.
type EventType string

const (
	EventStateChanged     EventType = "share.state_changed"
	EventTrackPublished   EventType = "track.published"
	EventTrackUnpublished EventType = "track.unpublished"
	EventShareError       EventType = "share.error"
)

// ShareEvent is emitted by the controller to external listeners.
type ShareEvent struct {
	Type      EventType   `json:"type"`
	ShareID   ShareID     `json:"share_id,omitempty"`
	State     string      `json:"state,omitempty"`
	TrackName string      `json:"track_name,omitempty"`
	TrackSID  string      `json:"track_sid,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Source    TrackSource `json:"source,omitempty"`
	Error     string      `json:"error,omitempty"`
	Origin    string      `json:"origin,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ShareStatus is a point-in-time view of the controller.
type ShareStatus struct {
	State   SharingState `json:"state"`
	ShareID ShareID      `json:"share_id,omitempty"`
	Tracks  []string     `json:"tracks"`
}

func (s ShareStatus) Sharing() bool {
	return s.State == SharingActive
}

// AuditEntry is one persisted share lifecycle record.
type AuditEntry struct {
	ID        int64                  `json:"id"`
	EventTime time.Time              `json:"event_time"`
	ShareID   ShareID                `json:"share_id,omitempty"`
	EventType EventType              `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
}
