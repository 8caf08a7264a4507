package monitoring

import (
	"sharecast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports share lifecycle metrics.
type PrometheusCollector struct {
	sharesStarted    prometheus.Counter
	sharesStopped    prometheus.Counter
	mixesCreated     prometheus.Counter
	mixFailures      prometheus.Counter
	stateTransitions *prometheus.CounterVec
	tracksPublished  *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	micReacquired    *prometheus.CounterVec

	shareState    *prometheus.GaugeVec
	shareDuration prometheus.Histogram
}

// NewPrometheusCollector registers the share metrics on reg. A nil reg uses
// the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		sharesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sharecast_shares_started_total",
			Help: "Screen shares that reached the sharing state",
		}),
		sharesStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sharecast_shares_stopped_total",
			Help: "Screen shares that were stopped",
		}),
		mixesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "sharecast_audio_mixes_created_total",
			Help: "Microphone and screen audio mixes created",
		}),
		mixFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sharecast_audio_mix_failures_total",
			Help: "Audio mixes that could not be created",
		}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sharecast_state_transitions_total",
			Help: "Share state machine transitions by target state",
		}, []string{"state"}),
		tracksPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sharecast_tracks_published_total",
			Help: "Tracks published by kind",
		}, []string{"kind"}),
		publishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sharecast_publish_failures_total",
			Help: "Track publish failures by kind",
		}, []string{"kind"}),
		micReacquired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sharecast_microphone_reacquire_total",
			Help: "Microphone reacquisitions after a share by result",
		}, []string{"result"}),
		shareState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sharecast_share_state",
			Help: "1 for the current share state, 0 otherwise",
		}, []string{"state"}),
		shareDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sharecast_share_duration_seconds",
			Help:    "Duration of completed screen shares",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

func (p *PrometheusCollector) StateChanged(state domain.SharingState) {
	p.stateTransitions.WithLabelValues(state.String()).Inc()
	for s := domain.SharingIdle; s <= domain.SharingStopping; s++ {
		value := 0.0
		if s == state {
			value = 1
		}
		p.shareState.WithLabelValues(s.String()).Set(value)
	}
}

func (p *PrometheusCollector) ShareStarted() {
	p.sharesStarted.Inc()
}

func (p *PrometheusCollector) ShareStopped(duration float64) {
	p.sharesStopped.Inc()
	p.shareDuration.Observe(duration)
}

func (p *PrometheusCollector) TrackPublished(kind domain.MediaKind) {
	p.tracksPublished.WithLabelValues(kind.String()).Inc()
}

func (p *PrometheusCollector) PublishFailed(kind domain.MediaKind) {
	p.publishFailures.WithLabelValues(kind.String()).Inc()
}

func (p *PrometheusCollector) MixCreated() {
	p.mixesCreated.Inc()
}

func (p *PrometheusCollector) MixFailed() {
	p.mixFailures.Inc()
}

func (p *PrometheusCollector) MicrophoneReacquired(ok bool) {
	result := "failed"
	if ok {
		result = "ok"
	}
	p.micReacquired.WithLabelValues(result).Inc()
}
