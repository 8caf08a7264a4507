package monitoring

import (
	"context"
	"errors"
	"sync"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"

	"github.com/pion/webrtc/v4"
	"github.com/redis/go-redis/v9"
)

var (
	ErrPeerConnectionClosed = errors.New("peer connection is closed")
	ErrShareTransitionStuck = errors.New("share transition in flight for too long")
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddBackendCheck adds a check that passes when ping returns nil.
func (h *HealthChecker) AddBackendCheck(name string, ping func(ctx context.Context) error, interval, timeout time.Duration) {
	h.AddCheck(name, func(ctx context.Context) (bool, error) {
		if err := ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddPeerConnectionCheck fails once the publishing peer connection is closed.
func (h *HealthChecker) AddPeerConnectionCheck(pc *webrtc.PeerConnection, interval time.Duration) {
	h.AddCheck("peer_connection", func(ctx context.Context) (bool, error) {
		if pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
			return false, ErrPeerConnectionClosed
		}
		return true, nil
	}, interval, 0)
}

// AddShareCheck fails when the share controller rests in a transitional
// state for longer than maxTransition.
func (h *HealthChecker) AddShareCheck(service ports.ScreenShareService, maxTransition, interval time.Duration) {
	var (
		mu       sync.Mutex
		since    time.Time
		observed domain.SharingState
	)
	h.AddCheck("share", func(ctx context.Context) (bool, error) {
		mu.Lock()
		defer mu.Unlock()

		state := service.Status().State
		if state.Stable() {
			since = time.Time{}
			return true, nil
		}
		if since.IsZero() || state != observed {
			since, observed = time.Now(), state
		}
		if time.Since(since) > maxTransition {
			return false, ErrShareTransitionStuck
		}
		return true, nil
	}, interval, 0)
}

// GetReadinessStatus returns readiness status for load balancer
func (h *HealthChecker) GetReadinessStatus(ctx context.Context) HealthStatus {
	return h.CheckAll(ctx)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	status := h.CheckAll(ctx)
	return status.Status == "healthy"
}
