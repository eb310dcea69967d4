package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
)

const (
	WorkflowCancel = "cancel_order"
	WorkflowDelete = "delete_order"
	WorkflowRefund = "process_refund"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailure  = "failure"
)

// WorkflowMetrics times order workflows and counts their outcomes. A nil
// *WorkflowMetrics drops every observation.
type WorkflowMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	followup *prometheus.CounterVec
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return nil
	}
	m := &WorkflowMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "order_workflow_duration_seconds",
			Help:    "Duration of order workflows in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"workflow"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_workflow_total",
			Help: "Order workflow executions by outcome.",
		}, []string{"workflow", "outcome"}),
		followup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_followup_failures_total",
			Help: "Best-effort cancellation steps that failed.",
		}, []string{"effect"}),
	}
	reg.MustRegister(m.duration, m.outcomes, m.followup)
	return m
}

// Outcome classifies a workflow result: 4xx-class errors are rejections,
// everything that would surface as a 5xx is a failure.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case pkgerrors.ServerFault(err):
		return OutcomeFailure
	default:
		return OutcomeRejected
	}
}

// Track records one finished workflow run.
func (m *WorkflowMetrics) Track(workflow string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(label(workflow)).Observe(time.Since(started).Seconds())
	m.outcomes.WithLabelValues(label(workflow), Outcome(err)).Inc()
}

// IncFollowupFailure counts a failed followup effect such as
// inventory_restore or refund.
func (m *WorkflowMetrics) IncFollowupFailure(effect string) {
	if m == nil {
		return
	}
	m.followup.WithLabelValues(label(effect)).Inc()
}

func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
