package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	"github.com/ayurkart/storefront-backend/pkg/outbox"
	"github.com/ayurkart/storefront-backend/pkg/outbox/payloads"
)

// Descriptor routes one event type to a topic and knows how to decode its data.
type Descriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// Resolved is an outbox row whose envelope and typed payload decoded cleanly.
type Resolved struct {
	Descriptor Descriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// Registry knows every order event the publisher is allowed to send.
type Registry struct {
	byType map[enums.OutboxEventType]Descriptor
}

// New builds the registry for the configured orders topic.
func New(cfg config.PubSubConfig) (*Registry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	topic := cfg.OrdersTopic
	descriptors := []Descriptor{
		orderEvent[payloads.OrderCancelledEvent](enums.EventOrderCancelled, topic),
		orderEvent[payloads.OrderDeletedEvent](enums.EventOrderDeleted, topic),
		orderEvent[payloads.OrderRefundedEvent](enums.EventOrderRefunded, topic),
		orderEvent[payloads.OrderRefundFailedEvent](enums.EventOrderRefundFailed, topic),
		orderEvent[payloads.OrderFollowupFailedEvent](enums.EventOrderFollowupFailed, topic),
	}
	r := &Registry{byType: make(map[enums.OutboxEventType]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		r.byType[d.EventType] = d
	}
	return r, nil
}

func orderEvent[T any](eventType enums.OutboxEventType, topic string) Descriptor {
	return Descriptor{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			v := new(T)
			if err := json.Unmarshal(raw, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is permanent: the same row will never decode differently.
func (r *Registry) Resolve(event models.OutboxEvent) (*Resolved, error) {
	d, ok := r.byType[event.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if d.AggregateType != event.AggregateType {
		return nil, Permanent(fmt.Errorf("aggregate mismatch: expected %s got %s", d.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("payload missing for %s", event.EventType))
	}
	payload, err := d.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &Resolved{Descriptor: d, Envelope: env, Payload: payload}, nil
}

// PermanentError marks a publish failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent publish failure"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so IsPermanent reports true for it.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
