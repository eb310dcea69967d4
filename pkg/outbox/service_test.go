package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db"
	"github.com/ayurkart/storefront-backend/pkg/db/dbtest"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
)

func queuedRows(t *testing.T, client *db.Client) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Order("created_at").Find(&rows).Error)
	return rows
}

func TestEmitStoresEnvelope(t *testing.T) {
	client := dbtest.New(t)
	svc := NewService(NewRepository(client.DB()), nil)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	orderID, actor := uuid.New(), uuid.New()

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: actor, Role: "customer"},
			Data:          map[string]string{"reason": "changed mind"},
		})
	}))

	rows := queuedRows(t, client)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, envelopeVersion, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.True(t, fixed.Equal(env.OccurredAt))
	assert.Equal(t, actor, env.Actor.UserID)
	assert.JSONEq(t, `{"reason":"changed mind"}`, string(env.Data))
}

func TestEmitDiscardedWhenTransactionRollsBack(t *testing.T) {
	client := dbtest.New(t)
	svc := NewService(NewRepository(client.DB()), nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}))
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Empty(t, queuedRows(t, client))
}

func TestEmitRejectsMissingTxAndBadData(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	assert.ErrorIs(t, svc.Emit(context.Background(), nil, DomainEvent{}), errNoTx)

	client := dbtest.New(t)
	svc = NewService(NewRepository(client.DB()), nil)
	err := svc.Emit(context.Background(), client.DB(), DomainEvent{EventType: enums.EventOrderRefunded, Data: make(chan int)})
	assert.Error(t, err)

	err = svc.Emit(context.Background(), client.DB(), DomainEvent{EventType: "order_shipped"})
	assert.ErrorContains(t, err, "unknown event type")
}

func TestRelayLifecycle(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	dlq := NewDLQRepository(client.DB())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Append(client.DB(), &models.OutboxEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}))
	}

	claim := func(limit int) []models.OutboxEvent {
		var rows []models.OutboxEvent
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			rows, err = repo.Claim(tx, limit, 3)
			return err
		}))
		return rows
	}

	rows := claim(10)
	require.Len(t, rows, 3)
	assert.Len(t, claim(2), 2, "limit is honoured")

	published, retried, buried := rows[0], rows[1], rows[2]
	cause := errors.New("topic missing")
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.MarkPublished(tx, published.ID, time.Now()); err != nil {
			return err
		}
		if err := repo.RecordFailure(tx, retried.ID, errors.New("unavailable")); err != nil {
			return err
		}
		msg := cause.Error()
		entry := models.OutboxDLQ{
			EventID:       buried.ID,
			EventType:     buried.EventType,
			AggregateType: buried.AggregateType,
			AggregateID:   buried.AggregateID,
			Payload:       buried.Payload,
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
			FailedAt:      time.Now(),
		}
		if err := dlq.Bury(tx, entry); err != nil {
			return err
		}
		if err := dlq.Bury(tx, entry); err != nil {
			return err
		}
		return repo.Retire(tx, buried.ID, cause, 3)
	}))

	remaining := claim(10)
	require.Len(t, remaining, 1)
	assert.Equal(t, retried.ID, remaining[0].ID)
	assert.Equal(t, 1, remaining[0].AttemptCount)
	require.NotNil(t, remaining[0].LastError)
	assert.Equal(t, "unavailable", *remaining[0].LastError)

	entries, err := dlq.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1, "burying twice keeps one entry")
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entries[0].ErrorReason)
}

func TestBuryClipsLongErrors(t *testing.T) {
	client := dbtest.New(t)
	dlq := NewDLQRepository(client.DB())
	long := string(make([]byte, maxDLQErrorLen*2))
	require.NoError(t, dlq.Bury(client.DB(), models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
		FailedAt:      time.Now(),
	}))

	entries, err := dlq.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, *entries[0].ErrorMessage, maxDLQErrorLen)
}
