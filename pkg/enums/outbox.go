package enums

type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

type OutboxEventType string

const (
	EventOrderCancelled      OutboxEventType = "order_cancelled"
	EventOrderDeleted        OutboxEventType = "order_deleted"
	EventOrderRefunded       OutboxEventType = "order_refunded"
	EventOrderRefundFailed   OutboxEventType = "order_refund_failed"
	EventOrderFollowupFailed OutboxEventType = "order_followup_failed"
)

var OutboxEventTypes = []OutboxEventType{
	EventOrderCancelled, EventOrderDeleted, EventOrderRefunded,
	EventOrderRefundFailed, EventOrderFollowupFailed,
}

// OutboxDLQErrorReason records why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
