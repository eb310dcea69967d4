package main

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	"github.com/ayurkart/storefront-backend/pkg/metrics"
	"github.com/ayurkart/storefront-backend/pkg/outbox/registry"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// verdict is what happened to one row; settle turns it into writes.
type verdict struct {
	outcome outcome
	reason  enums.OutboxDLQErrorReason
	err     error
	topic   string
	eventID string
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) verdict {
	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}

	v := verdict{topic: resolved.Descriptor.Topic, eventID: resolved.Envelope.EventID}
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err = r.topics.Publish(publishCtx, v.topic, orderMessage(row, resolved.Envelope.EventID))

	switch {
	case err == nil:
		v.outcome = outcomePublished
	case registry.IsPermanent(err) || permanentStatus(err):
		v.outcome, v.reason, v.err = outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable, err
	case row.AttemptCount+1 >= r.maxAttempts:
		v.outcome, v.reason = outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts
		v.err = fmt.Errorf("max publish attempts reached: %w", err)
	default:
		v.outcome, v.err = outcomeRetry, err
	}
	return v
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, v verdict) error {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_id":      v.eventID,
		"event_type":    row.EventType,
		"order_id":      row.AggregateID.String(),
		"topic":         v.topic,
		"attempt_count": row.AttemptCount,
	})

	switch v.outcome {
	case outcomePublished:
		if err := r.events.MarkPublished(tx, row.ID, r.now()); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.IncPublish(string(row.EventType), metrics.PublishResultPublished)
		r.logg.Info(logCtx, "outbox event published")

	case outcomeRetry:
		if err := r.events.RecordFailure(tx, row.ID, v.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, err)
		}
		r.metrics.IncPublish(string(row.EventType), metrics.PublishResultRetry)
		r.logg.WarnErr(logCtx, "outbox publish failed, will retry", v.err)

	case outcomeDeadLetter:
		msg := v.err.Error()
		entry := models.OutboxDLQ{
			EventID:       row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			ErrorReason:   v.reason,
			ErrorMessage:  &msg,
			AttemptCount:  row.AttemptCount,
			FailedAt:      r.now(),
		}
		if err := r.deadLetters.Bury(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", row.ID, err)
		}
		if err := r.events.Retire(tx, row.ID, v.err, r.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, err)
		}
		r.metrics.IncPublish(string(row.EventType), metrics.PublishResultDeadLetter)
		r.logg.WarnErr(r.logg.WithField(logCtx, "error_reason", v.reason), "outbox event dead-lettered", v.err)
	}
	return nil
}

// orderMessage forwards the stored envelope verbatim. Attributes let
// subscribers filter without decoding the body.
func orderMessage(row models.OutboxEvent, eventID string) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"order_id":       row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

// permanentStatus reports gRPC failures a retry cannot fix, such as a
// deleted topic or revoked publish permission.
func permanentStatus(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.NotFound, codes.PermissionDenied, codes.InvalidArgument, codes.Unauthenticated:
		return true
	}
	return false
}
