package webrtc

import (
	"sync"

	"sharecast/internal/core/domain"
)

// TrackPriority orders published tracks when the remote side caps bitrate.
// Lower values are served first.
type TrackPriority int

const (
	PriorityAudio         TrackPriority = iota // audio is always served first
	PriorityVideoHigh                          // video published with a high hint
	PriorityVideoStandard                      // video published with a standard hint
	PriorityVideoLow                           // screen share video
)

// audioReserve is the bitrate held back for each audio track before video
// tracks split the remaining estimate.
const audioReserve = 64_000

// weight is the relative share of the video budget for a priority.
func (p TrackPriority) weight() float64 {
	switch p {
	case PriorityVideoHigh:
		return 3
	case PriorityVideoStandard:
		return 2
	default:
		return 1
	}
}

// TrackPrioritizer keeps the send priority of each published track.
type TrackPrioritizer struct {
	mu sync.RWMutex

	trackPriorities map[string]TrackPriority

	// keyframeRequests counts PLI/FIR per track since registration
	keyframeRequests map[string]int
}

func NewTrackPrioritizer() *TrackPrioritizer {
	return &TrackPrioritizer{
		trackPriorities:  make(map[string]TrackPriority),
		keyframeRequests: make(map[string]int),
	}
}

// RegisterTrack records the priority of a publication from its kind and
// publish hint.
func (tp *TrackPrioritizer) RegisterTrack(sid string, kind domain.MediaKind, hint domain.TrackPriority) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if kind == domain.MediaKindAudio {
		tp.trackPriorities[sid] = PriorityAudio
		return
	}
	switch hint {
	case domain.PriorityHigh:
		tp.trackPriorities[sid] = PriorityVideoHigh
	case domain.PriorityStandard:
		tp.trackPriorities[sid] = PriorityVideoStandard
	default:
		tp.trackPriorities[sid] = PriorityVideoLow
	}
}

func (tp *TrackPrioritizer) GetPriority(sid string) TrackPriority {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.priorityLocked(sid)
}

func (tp *TrackPrioritizer) priorityLocked(sid string) TrackPriority {
	priority, exists := tp.trackPriorities[sid]
	if !exists {
		return PriorityVideoStandard
	}
	return priority
}

// KeyframeRequested notes a PLI or FIR for the track and returns the total.
func (tp *TrackPrioritizer) KeyframeRequested(sid string) int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.keyframeRequests[sid]++
	return tp.keyframeRequests[sid]
}

// ForwardOrder returns sids sorted by priority. Equal priorities keep their
// input order.
func (tp *TrackPrioritizer) ForwardOrder(sids []string) []string {
	tp.mu.RLock()
	defer tp.mu.RUnlock()

	result := make([]string, len(sids))
	copy(result, sids)

	// insertion sort keeps the order stable
	for i := 1; i < len(result); i++ {
		key := result[i]
		keyPriority := tp.priorityLocked(key)
		j := i - 1
		for j >= 0 && tp.priorityLocked(result[j]) > keyPriority {
			result[j+1] = result[j]
			j--
		}
		result[j+1] = key
	}
	return result
}

// BitrateShare splits an estimated total bitrate across the registered
// tracks and returns the share of sid. Audio tracks get a fixed reserve and
// video tracks divide the rest by weight.
func (tp *TrackPrioritizer) BitrateShare(sid string, total float64) float64 {
	tp.mu.RLock()
	defer tp.mu.RUnlock()

	target, exists := tp.trackPriorities[sid]
	if !exists || total <= 0 {
		return 0
	}

	var audioTracks int
	var videoWeight float64
	for _, priority := range tp.trackPriorities {
		if priority == PriorityAudio {
			audioTracks++
		} else {
			videoWeight += priority.weight()
		}
	}

	reserve := float64(audioTracks * audioReserve)
	if reserve > total {
		reserve = total
	}
	if target == PriorityAudio {
		return reserve / float64(audioTracks)
	}
	if videoWeight == 0 {
		return 0
	}
	return (total - reserve) * target.weight() / videoWeight
}

func (tp *TrackPrioritizer) UnregisterTrack(sid string) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	delete(tp.trackPriorities, sid)
	delete(tp.keyframeRequests, sid)
}
