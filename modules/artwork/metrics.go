package artwork

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "streamkeeper"

type metrics struct {
	resolutions    *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
	stores         prometheus.Counter
}

// newMetrics registers with reg; a nil reg leaves the collectors
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "artwork",
			Name:      "resolutions_total",
			Help:      "Artwork resolutions by the source that answered.",
		}, []string{"source"}),
		providerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "artwork",
			Name:      "provider_errors_total",
			Help:      "Failed provider lookups and downloads.",
		}, []string{"provider"}),
		stores: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "artwork",
			Name:      "cache_stores_total",
			Help:      "Artwork files committed to the cache.",
		}),
	}
}
