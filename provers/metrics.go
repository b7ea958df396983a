package relayer

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relayer progress. A nil *Metrics records nothing.
type Metrics struct {
	provenEpoch   prometheus.Gauge
	proofDuration *prometheus.HistogramVec
	failures      *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		provenEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_proven_epoch", namespace),
			Help: "The latest epoch covered by the proof chain",
		}),
		proofDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_proof_duration_seconds", namespace),
			Help:    "Time spent producing a proof, by stage",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"stage"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_proof_failures_total", namespace),
			Help: "The number of failed proof attempts, by stage",
		}, []string{"stage"}),
	}
}

func (m *Metrics) SetProvenEpoch(epoch uint64) {
	if m == nil {
		return
	}
	m.provenEpoch.Set(float64(epoch))
}

func (m *Metrics) ObserveProof(stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.proofDuration.WithLabelValues(stage).Observe(took.Seconds())
}

func (m *Metrics) IncFailure(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}
