package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

const envelopeVersion = 1

// DomainEvent is a state change a workflow wants announced once its
// transaction commits. Data is marshalled into the envelope.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit writes event on tx. It becomes visible to the relay only if tx commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	if !slices.Contains(enums.OutboxEventTypes, event.EventType) {
		return fmt.Errorf("outbox: unknown event type %q", event.EventType)
	}
	envelope, err := s.envelope(event)
	if err != nil {
		return fmt.Errorf("outbox: encode %s: %w", event.EventType, err)
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("outbox: encode envelope: %w", err)
	}

	row := &models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       raw,
	}
	if err := s.repo.Append(tx, row); err != nil {
		return err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

func (s *Service) envelope(event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, err
	}
	at := event.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	return PayloadEnvelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: at.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}
