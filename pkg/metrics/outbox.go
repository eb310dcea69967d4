package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	PublishResultPublished  = "published"
	PublishResultRetry      = "retry"
	PublishResultDeadLetter = "dead_letter"
)

// OutboxMetrics counts outbox rows handled by the publisher.
type OutboxMetrics struct {
	publish *prometheus.CounterVec
}

// NewOutboxMetrics registers the publisher metrics. A nil registerer yields a
// no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	publish := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox events handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(publish)
	return &OutboxMetrics{publish: publish}
}

// IncPublish counts one handled outbox row.
func (m *OutboxMetrics) IncPublish(eventType, result string) {
	if m == nil || m.publish == nil {
		return
	}
	m.publish.WithLabelValues(label(eventType), label(result)).Inc()
}
