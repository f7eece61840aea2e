package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "practicekit"

// Collectors groups the session counters exported at /metrics. A nil
// *Collectors is valid and records nothing.
type Collectors struct {
	SessionsActive  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	Utterances      *prometheus.CounterVec
	FeedbackSignals *prometheus.CounterVec
	Nudges          prometheus.Counter
	ReplyFailures   *prometheus.CounterVec
	ReplyLatency    prometheus.Histogram
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Practice sessions currently running.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Practice sessions started.",
		}),
		Utterances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Finalized utterances recorded, by speaker.",
		}, []string{"speaker"}),
		FeedbackSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_signals_total",
			Help:      "Feedback signals produced, by kind.",
		}, []string{"kind"}),
		Nudges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nudges_total",
			Help:      "Proactive replies issued after user inactivity.",
		}),
		ReplyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_failures_total",
			Help:      "Reply generation requests that failed, by reason.",
		}, []string{"reason"}),
		ReplyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_duration_seconds",
			Help:      "Time from a reply request to the completed reply text.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.SessionsActive, c.SessionsTotal, c.Utterances, c.FeedbackSignals,
		c.Nudges, c.ReplyFailures, c.ReplyLatency,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) SessionStarted() {
	if c == nil {
		return
	}
	c.SessionsActive.Inc()
	c.SessionsTotal.Inc()
}

func (c *Collectors) SessionEnded() {
	if c == nil {
		return
	}
	c.SessionsActive.Dec()
}

func (c *Collectors) ObserveUtterance(speaker string) {
	if c == nil {
		return
	}
	c.Utterances.WithLabelValues(speaker).Inc()
}

func (c *Collectors) ObserveFeedback(kind string) {
	if c == nil {
		return
	}
	c.FeedbackSignals.WithLabelValues(kind).Inc()
}

func (c *Collectors) ObserveNudge() {
	if c == nil {
		return
	}
	c.Nudges.Inc()
}

func (c *Collectors) ObserveReply(seconds float64, reason string) {
	if c == nil {
		return
	}
	if reason != "" {
		c.ReplyFailures.WithLabelValues(reason).Inc()
		return
	}
	c.ReplyLatency.Observe(seconds)
}
