package domain

import "time"

// ShareStats is the in-process summary of share activity since startup.
type ShareStats struct {
	State                string    `json:"state"`
	SharesStarted        int64     `json:"shares_started"`
	SharesStopped        int64     `json:"shares_stopped"`
	StateTransitions     int64     `json:"state_transitions"`
	TracksPublished      int64     `json:"tracks_published"`
	PublishFailures      int64     `json:"publish_failures"`
	MixesCreated         int64     `json:"mixes_created"`
	MixFailures          int64     `json:"mix_failures"`
	MicReacquired        int64     `json:"mic_reacquired"`
	MicReacquireFailures int64     `json:"mic_reacquire_failures"`
	TotalShareSeconds    float64   `json:"total_share_seconds"`
	Timestamp            time.Time `json:"timestamp"`
}
