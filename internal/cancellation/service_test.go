package cancellation

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/internal/inventory"
	"github.com/ayurkart/storefront-backend/internal/orders"
	"github.com/ayurkart/storefront-backend/internal/refunds"
	"github.com/ayurkart/storefront-backend/pkg/db"
	"github.com/ayurkart/storefront-backend/pkg/db/dbtest"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/outbox"
	"github.com/ayurkart/storefront-backend/pkg/square"
)

type recordingRefunder struct {
	calls []refunds.ProcessRefundInput
	err   error
}

func (r *recordingRefunder) ProcessRefund(ctx context.Context, input refunds.ProcessRefundInput) (*refunds.Result, error) {
	r.calls = append(r.calls, input)
	if r.err != nil {
		return nil, r.err
	}
	return &refunds.Result{OrderID: input.OrderID, RefundID: "rf_stub", Amount: input.Amount}, nil
}

type fakeGateway struct {
	calls []square.RefundParams
}

func (g *fakeGateway) RefundPayment(ctx context.Context, params square.RefundParams) (*square.RefundResult, error) {
	g.calls = append(g.calls, params)
	return &square.RefundResult{ID: "rf_live", Status: "COMPLETED", Raw: []byte(`{"refund":{"id":"rf_live"}}`)}, nil
}

type fixture struct {
	client  *db.Client
	logg    *logger.Logger
	repo    orders.Repository
	outbox  *outbox.Service
	restore inventory.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "cancellation-test", Output: io.Discard})
	restore, err := inventory.NewService(inventory.NewRepository(client.DB()), client)
	require.NoError(t, err)
	return &fixture{
		client:  client,
		logg:    logg,
		repo:    orders.NewRepository(client.DB()),
		outbox:  outbox.NewService(outbox.NewRepository(client.DB()), logg),
		restore: restore,
	}
}

func (f *fixture) service(t *testing.T, refunder Refunder) Service {
	t.Helper()
	return f.serviceWithRepo(t, f.repo, refunder)
}

func (f *fixture) serviceWithRepo(t *testing.T, repo orders.Repository, refunder Refunder) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repository: repo,
		Tx:         f.client,
		Outbox:     f.outbox,
		Inventory:  f.restore,
		Refunds:    refunder,
		Logger:     f.logg,
	})
	require.NoError(t, err)
	return svc
}

func (f *fixture) realRefunds(t *testing.T, gateway refunds.Gateway) refunds.Service {
	t.Helper()
	svc, err := refunds.NewService(refunds.ServiceParams{
		Repository: f.repo,
		Tx:         f.client,
		Outbox:     f.outbox,
		Gateway:    gateway,
		Logger:     f.logg,
	})
	require.NoError(t, err)
	return svc
}

func TestCancelOrderRestoresEachLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conn := f.client.DB()
	first := dbtest.CreateProduct(t, conn, "Brahmi", 10)
	second := dbtest.CreateProduct(t, conn, "Neem", 5)
	order := dbtest.CreateOrder(t, conn, dbtest.OrderFixture{
		Total: decimal.RequireFromString("350.00"),
		Lines: []dbtest.OrderLine{
			{ProductID: first.ID, Quantity: 2, Price: decimal.NewFromInt(50)},
			{ProductID: second.ID, Quantity: 3, Price: decimal.NewFromInt(83)},
		},
	})
	refunder := &recordingRefunder{}

	result, err := f.service(t, refunder).CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.NoError(t, err)
	assert.Equal(t, order.ID, result.OrderID)
	assert.Equal(t, 2, result.ItemsRestored)
	assert.Zero(t, result.RestoreFailures)

	assert.Equal(t, 12, dbtest.StockOf(t, conn, first.ID))
	assert.Equal(t, 8, dbtest.StockOf(t, conn, second.ID))
	assert.Equal(t, int64(2), dbtest.Count(t, conn, "inventory_movements", "reference_id = ? AND movement_type = ?", order.ID, enums.MovementIn))

	reloaded := dbtest.ReloadOrder(t, conn, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	require.NotNil(t, reloaded.CancellationReason)
	assert.Equal(t, "Order cancelled", *reloaded.CancellationReason)
	require.NotNil(t, reloaded.CancelledBy)
	assert.Equal(t, order.UserID, *reloaded.CancelledBy)

	assert.Empty(t, refunder.calls, "pending payment must not be refunded")
	assert.False(t, result.RefundAttempted)
	assert.Equal(t, int64(1), dbtest.Count(t, conn, "outbox_events", "event_type = ?", enums.EventOrderCancelled))
}

func TestCancelOrderUsesExplicitReasonAndCanceller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := dbtest.CreateOrder(t, f.client.DB(), dbtest.OrderFixture{Status: enums.OrderStatusProcessing, Total: decimal.NewFromInt(20)})
	admin := uuid.New()

	_, err := f.service(t, &recordingRefunder{}).CancelOrder(ctx, CancelOrderInput{
		OrderID:     order.ID,
		Reason:      "Out of stock at supplier",
		CancelledBy: &admin,
		ActorID:     uuid.New(),
	})
	require.NoError(t, err)

	reloaded := dbtest.ReloadOrder(t, f.client.DB(), order.ID)
	assert.Equal(t, "Out of stock at supplier", *reloaded.CancellationReason)
	assert.Equal(t, admin, *reloaded.CancelledBy)
}

func TestCancelOrderRejectsShippedAndDelivered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := dbtest.CreateProduct(t, f.client.DB(), "Tulsi", 4)

	for _, status := range []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusDelivered} {
		t.Run(string(status), func(t *testing.T) {
			order := dbtest.CreateOrder(t, f.client.DB(), dbtest.OrderFixture{
				Status:        status,
				PaymentStatus: enums.PaymentStatusCompleted,
				Total:         decimal.NewFromInt(60),
				Lines:         []dbtest.OrderLine{{ProductID: product.ID, Quantity: 1, Price: decimal.NewFromInt(60)}},
			})
			refunder := &recordingRefunder{}

			_, err := f.service(t, refunder).CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
			assert.Equal(t, map[string]any{"state": StateTerminalShipped}, pkgerrors.As(err).Details())

			reloaded := dbtest.ReloadOrder(t, f.client.DB(), order.ID)
			assert.Equal(t, status, reloaded.Status)
			assert.Nil(t, reloaded.CancelledAt)
			assert.Empty(t, refunder.calls)
		})
	}
	assert.Equal(t, 4, dbtest.StockOf(t, f.client.DB(), product.ID))
	assert.Equal(t, int64(0), dbtest.Count(t, f.client.DB(), "inventory_movements", ""))
}

func TestCancelOrderTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := dbtest.CreateProduct(t, f.client.DB(), "Shatavari", 1)
	order := dbtest.CreateOrder(t, f.client.DB(), dbtest.OrderFixture{
		Total: decimal.NewFromInt(15),
		Lines: []dbtest.OrderLine{{ProductID: product.ID, Quantity: 1, Price: decimal.NewFromInt(15)}},
	})
	svc := f.service(t, &recordingRefunder{})

	_, err := svc.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.NoError(t, err)
	before := dbtest.ReloadOrder(t, f.client.DB(), order.ID)

	_, err = svc.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, Reason: "again", ActorID: order.UserID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, map[string]any{"state": StateAlreadyCancelled}, pkgerrors.As(err).Details())

	after := dbtest.ReloadOrder(t, f.client.DB(), order.ID)
	assert.Equal(t, *before.CancellationReason, *after.CancellationReason)
	assert.Equal(t, 2, dbtest.StockOf(t, f.client.DB(), product.ID))
	assert.Equal(t, int64(1), dbtest.Count(t, f.client.DB(), "inventory_movements", ""))
}

func TestCancelOrderRefundsCompletedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conn := f.client.DB()
	order := dbtest.CreateOrder(t, conn, dbtest.OrderFixture{
		PaymentStatus: enums.PaymentStatusCompleted,
		Total:         decimal.RequireFromString("500.00"),
	})
	dbtest.CreateCapture(t, conn, order.ID, decimal.RequireFromString("500.00"), "pay_abc")
	gateway := &fakeGateway{}

	result, err := f.service(t, f.realRefunds(t, gateway)).CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.NoError(t, err)
	assert.True(t, result.RefundAttempted)
	assert.Equal(t, "rf_live", result.RefundID)
	assert.NoError(t, result.RefundError)

	require.Len(t, gateway.calls, 1)
	assert.True(t, gateway.calls[0].Amount.Equal(decimal.RequireFromString("500.00")))
	assert.Equal(t, "Order cancellation", gateway.calls[0].Reason)

	reloaded := dbtest.ReloadOrder(t, conn, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, enums.RefundStatusCompleted, reloaded.RefundStatus)

	var refundsRows []models.PaymentTransaction
	require.NoError(t, conn.Where("order_id = ? AND payment_method = ?", order.ID, refunds.PaymentMethod).Find(&refundsRows).Error)
	require.Len(t, refundsRows, 1)
	assert.True(t, refundsRows[0].Amount.Equal(decimal.RequireFromString("-500.00")))
}

func TestCancelOrderSucceedsWhenRefundFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := dbtest.CreateOrder(t, f.client.DB(), dbtest.OrderFixture{
		PaymentStatus: enums.PaymentStatusCompleted,
		Total:         decimal.NewFromInt(99),
	})
	refunder := &recordingRefunder{err: pkgerrors.New(pkgerrors.CodeRefundFailed, "refund failed")}

	result, err := f.service(t, refunder).CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.NoError(t, err)
	require.Len(t, refunder.calls, 1)
	assert.True(t, refunder.calls[0].Amount.Equal(decimal.NewFromInt(99)))
	assert.Error(t, result.RefundError)
	assert.Equal(t, enums.OrderStatusCancelled, dbtest.ReloadOrder(t, f.client.DB(), order.ID).Status)
	assert.Equal(t, int64(1), dbtest.Count(t, f.client.DB(), "outbox_events", "event_type = ?", enums.EventOrderFollowupFailed))
}

func TestCancelOrderContinuesPastRestoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conn := f.client.DB()
	kept := dbtest.CreateProduct(t, conn, "Guduchi", 3)
	order := dbtest.CreateOrder(t, conn, dbtest.OrderFixture{
		Total: decimal.NewFromInt(40),
		Lines: []dbtest.OrderLine{
			{ProductID: uuid.New(), Quantity: 1, Price: decimal.NewFromInt(20)},
			{ProductID: kept.ID, Quantity: 2, Price: decimal.NewFromInt(10)},
		},
	})

	result, err := f.service(t, &recordingRefunder{}).CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsRestored)
	assert.Equal(t, 1, result.RestoreFailures)
	assert.Equal(t, 5, dbtest.StockOf(t, conn, kept.ID))
	assert.Equal(t, enums.OrderStatusCancelled, dbtest.ReloadOrder(t, conn, order.ID).Status)
	assert.Equal(t, int64(1), dbtest.Count(t, conn, "outbox_events", "event_type = ?", enums.EventOrderFollowupFailed))
}

// staleRepo serves an order snapshot taken before a concurrent writer moved
// it. Reads inside the transaction see the current row.
type staleRepo struct {
	orders.Repository
	snapshot *models.Order
}

func (r *staleRepo) WithTx(tx *gorm.DB) orders.Repository {
	return r.Repository.WithTx(tx)
}

func (r *staleRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	copied := *r.snapshot
	return &copied, nil
}

func TestCancelOrderLosesRaceWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := dbtest.CreateProduct(t, f.client.DB(), "Amla", 7)
	order := dbtest.CreateOrder(t, f.client.DB(), dbtest.OrderFixture{
		Total: decimal.NewFromInt(30),
		Lines: []dbtest.OrderLine{{ProductID: product.ID, Quantity: 3, Price: decimal.NewFromInt(10)}},
	})
	snapshot, err := f.repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = f.service(t, &recordingRefunder{}).CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.NoError(t, err)

	_, err = f.serviceWithRepo(t, &staleRepo{Repository: f.repo, snapshot: snapshot}, &recordingRefunder{}).
		CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, map[string]any{"state": StateAlreadyCancelled}, pkgerrors.As(err).Details())
	assert.Equal(t, 10, dbtest.StockOf(t, f.client.DB(), product.ID), "loser must not restore stock again")
	assert.Equal(t, int64(1), dbtest.Count(t, f.client.DB(), "outbox_events", "event_type = ?", enums.EventOrderCancelled))
}

func TestCancelOrderReportsConcurrentShipment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := dbtest.CreateOrder(t, f.client.DB(), dbtest.OrderFixture{Total: decimal.NewFromInt(30)})
	snapshot, err := f.repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NoError(t, f.client.DB().Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", enums.OrderStatusShipped).Error)

	_, err = f.serviceWithRepo(t, &staleRepo{Repository: f.repo, snapshot: snapshot}, &recordingRefunder{}).
		CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, map[string]any{"state": StateTerminalShipped}, pkgerrors.As(err).Details())
	assert.Equal(t, enums.OrderStatusShipped, dbtest.ReloadOrder(t, f.client.DB(), order.ID).Status)
	assert.Zero(t, dbtest.Count(t, f.client.DB(), "outbox_events", "event_type = ?", enums.EventOrderCancelled))
}

type failingCancelRepo struct {
	orders.Repository
}

func (r *failingCancelRepo) WithTx(tx *gorm.DB) orders.Repository {
	return &failingCancelRepo{Repository: r.Repository.WithTx(tx)}
}

func (r *failingCancelRepo) CancelIfEligible(ctx context.Context, orderID uuid.UUID, update orders.CancelUpdate) (bool, error) {
	return false, errors.New("connection reset")
}

func TestCancelOrderUpdateFailureAbortsEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := dbtest.CreateProduct(t, f.client.DB(), "Moringa", 2)
	order := dbtest.CreateOrder(t, f.client.DB(), dbtest.OrderFixture{
		PaymentStatus: enums.PaymentStatusCompleted,
		Total:         decimal.NewFromInt(10),
		Lines:         []dbtest.OrderLine{{ProductID: product.ID, Quantity: 1, Price: decimal.NewFromInt(10)}},
	})
	refunder := &recordingRefunder{}

	_, err := f.serviceWithRepo(t, &failingCancelRepo{Repository: f.repo}, refunder).
		CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: order.UserID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUpdateFailed, pkgerrors.CodeOf(err))
	assert.Equal(t, 2, dbtest.StockOf(t, f.client.DB(), product.ID))
	assert.Empty(t, refunder.calls)
}

func TestCancelOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(t, &recordingRefunder{})

	_, err := svc.CancelOrder(ctx, CancelOrderInput{ActorID: uuid.New()})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	_, err = svc.CancelOrder(ctx, CancelOrderInput{OrderID: uuid.New()})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
	_, err = svc.CancelOrder(ctx, CancelOrderInput{OrderID: uuid.New(), ActorID: uuid.New()})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestCancelOrderRejectsDeletedOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := dbtest.CreateOrder(t, f.client.DB(), dbtest.OrderFixture{Status: enums.OrderStatusDeleted, Total: decimal.NewFromInt(1)})

	_, err := f.service(t, &recordingRefunder{}).CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, ActorID: uuid.New()})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, map[string]any{"state": StateAlreadyDeleted}, pkgerrors.As(err).Details())
}
