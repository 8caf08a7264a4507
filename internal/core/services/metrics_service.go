package services

import (
	"sync"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"
)

// MetricsService counts share activity in memory for the stats endpoint and
// forwards every observation to an optional exporter.
type MetricsService struct {
	mu    sync.RWMutex
	stats domain.ShareStats

	exporter ports.ShareMetrics
}

func NewMetricsService(exporter ports.ShareMetrics) *MetricsService {
	return &MetricsService{
		stats:    domain.ShareStats{State: domain.SharingIdle.String()},
		exporter: exporter,
	}
}

func (m *MetricsService) StateChanged(state domain.SharingState) {
	m.mu.Lock()
	m.stats.State = state.String()
	m.stats.StateTransitions++
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.StateChanged(state)
	}
}

func (m *MetricsService) ShareStarted() {
	m.mu.Lock()
	m.stats.SharesStarted++
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.ShareStarted()
	}
}

func (m *MetricsService) ShareStopped(duration float64) {
	m.mu.Lock()
	m.stats.SharesStopped++
	m.stats.TotalShareSeconds += duration
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.ShareStopped(duration)
	}
}

func (m *MetricsService) TrackPublished(kind domain.MediaKind) {
	m.mu.Lock()
	m.stats.TracksPublished++
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.TrackPublished(kind)
	}
}

func (m *MetricsService) PublishFailed(kind domain.MediaKind) {
	m.mu.Lock()
	m.stats.PublishFailures++
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.PublishFailed(kind)
	}
}

func (m *MetricsService) MixCreated() {
	m.mu.Lock()
	m.stats.MixesCreated++
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.MixCreated()
	}
}

func (m *MetricsService) MixFailed() {
	m.mu.Lock()
	m.stats.MixFailures++
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.MixFailed()
	}
}

func (m *MetricsService) MicrophoneReacquired(ok bool) {
	m.mu.Lock()
	if ok {
		m.stats.MicReacquired++
	} else {
		m.stats.MicReacquireFailures++
	}
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.MicrophoneReacquired(ok)
	}
}

// Snapshot returns a copy of the current counters.
func (m *MetricsService) Snapshot() domain.ShareStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := m.stats
	stats.Timestamp = time.Now()
	return stats
}
