package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/metrics"
	"github.com/ayurkart/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxErrorBackoff    = 10 * time.Second
	maxJitter          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
}

type deadLetterStore interface {
	Bury(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// topicPublisher is satisfied by *pubsub.Client.
type topicPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type publishCounter interface {
	IncPublish(eventType, result string)
}

// RelayParams wires the relay. Metrics and Now are optional.
type RelayParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	Events      eventStore
	DeadLetters deadLetterStore
	Resolver    eventResolver
	Topics      topicPublisher
	Metrics     publishCounter
	Now         func() time.Time
}

// Relay moves committed outbox rows to Pub/Sub. Rows are claimed with
// SKIP LOCKED so several relays can run side by side.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	events      eventStore
	deadLetters deadLetterStore
	resolver    eventResolver
	topics      topicPublisher
	metrics     publishCounter
	now         func() time.Time

	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Events == nil:
		return nil, errors.New("outbox repository is required")
	case p.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	case p.Resolver == nil:
		return nil, errors.New("event registry is required")
	case p.Topics == nil:
		return nil, errors.New("pubsub client is required")
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		events:      p.Events,
		deadLetters: p.DeadLetters,
		resolver:    p.Resolver,
		topics:      p.Topics,
		metrics:     p.Metrics,
		now:         p.Now,
		batchSize:   orDefault(p.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(p.Outbox.MaxAttempts, defaultMaxAttempts),
		poll:        p.Outbox.PollInterval,
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	if r.metrics == nil {
		r.metrics = metrics.NewOutboxMetrics(nil)
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run drains the outbox until ctx is cancelled. A full batch is followed by
// another drain straight away; otherwise the relay sleeps for the poll
// interval, backing off exponentially while drains keep failing.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.topics.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		n, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox drain failed", err)
			wait = min(wait*2, maxErrorBackoff)
		case n >= r.batchSize:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		if err := sleep(ctx, wait+rand.N(maxJitter)); err != nil {
			return err
		}
	}
}

// drain claims one batch and settles every row inside the same transaction,
// so marks and dead letters commit together with the row lock release.
func (r *Relay) drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.Claim(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := r.settle(ctx, tx, row, r.deliver(ctx, row)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
