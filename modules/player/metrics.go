package player

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "streamkeeper"

type metrics struct {
	state        *prometheus.GaugeVec
	active       *prometheus.GaugeVec
	failures     *prometheus.CounterVec
	failovers    prometheus.Counter
	restorations prometheus.Counter
	exhaustions  prometheus.Counter
	records      *prometheus.CounterVec
	staleArtwork prometheus.Counter
	deviceBytes  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "player",
			Name:      "state",
			Help:      "1 for the current playback state.",
		}, []string{"state"}),
		active: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "player",
			Name:      "active_endpoint",
			Help:      "1 for the active endpoint.",
		}, []string{"endpoint"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "player",
			Name:      "failures_total",
			Help:      "Failures counted against the active endpoint.",
		}, []string{"kind"}),
		failovers: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "player",
			Name:      "failovers_total",
			Help:      "Automatic switches to the next endpoint.",
		}),
		restorations: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "player",
			Name:      "restorations_total",
			Help:      "Automatic returns to the primary endpoint.",
		}),
		exhaustions: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "player",
			Name:      "exhaustions_total",
			Help:      "Times every endpoint failed.",
		}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "player",
			Name:      "metadata_records_total",
			Help:      "Now-playing records received per endpoint.",
		}, []string{"endpoint"}),
		staleArtwork: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "player",
			Name:      "stale_artwork_total",
			Help:      "Artwork resolutions dropped because the title changed.",
		}),
		deviceBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "device",
			Name:      "bytes_total",
			Help:      "Audio bytes consumed by the stream device.",
		}),
	}
}

func (m *metrics) observeSession(prev, cur Session) {
	for _, s := range states {
		v := 0.0
		if s == cur.State {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}

	if prev.ActiveEndpointID != cur.ActiveEndpointID {
		m.active.WithLabelValues(prev.ActiveEndpointID).Set(0)
	}
	m.active.WithLabelValues(cur.ActiveEndpointID).Set(1)
}
