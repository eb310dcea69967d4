package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestOutboxMetricsCountsByResult(t *testing.T) {
	m := NewOutboxMetrics(prometheus.NewRegistry())
	m.IncPublish("order_cancelled", PublishResultPublished)
	m.IncPublish("order_cancelled", PublishResultPublished)
	m.IncPublish("order_refunded", PublishResultDeadLetter)
	m.IncPublish("", PublishResultRetry)

	counter := func(eventType, result string) float64 {
		return read(t, m.publish.WithLabelValues(eventType, result)).GetCounter().GetValue()
	}
	assert.Equal(t, 2.0, counter("order_cancelled", PublishResultPublished))
	assert.Equal(t, 1.0, counter("order_refunded", PublishResultDeadLetter))
	assert.Equal(t, 1.0, counter("unknown", PublishResultRetry))
}

func TestNilOutboxMetricsIsNoop(t *testing.T) {
	var m *OutboxMetrics
	m.IncPublish("order_deleted", PublishResultPublished)
	NewOutboxMetrics(nil).IncPublish("order_deleted", PublishResultRetry)
}
