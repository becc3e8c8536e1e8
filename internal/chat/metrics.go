package chat

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for chat turns. A nil *Metrics
// records nothing.
type Metrics struct {
	turns         *prometheus.CounterVec
	generation    prometheus.Histogram
	conversations prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when it is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns handled, by outcome.",
		}, []string{"outcome"}),
		generation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Name:      "generation_duration_seconds",
			Help:      "Latency of calls to the generation backend.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		conversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragchat",
			Name:      "conversations",
			Help:      "Conversations currently held in the store.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.generation, m.conversations)
	}
	return m
}

func (m *Metrics) observeTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.generation.Observe(d.Seconds())
}

func (m *Metrics) setConversations(n int) {
	if m == nil {
		return
	}
	m.conversations.Set(float64(n))
}
