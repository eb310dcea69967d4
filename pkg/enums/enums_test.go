package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	cancellable := map[OrderStatus]bool{
		OrderStatusPending:    true,
		OrderStatusProcessing: true,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  false,
		OrderStatusDeleted:    false,
	}
	for status, want := range cancellable {
		assert.Equal(t, want, status.Cancellable(), status)
	}
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.True(t, OrderStatusDeleted.Terminal())
	assert.False(t, OrderStatusShipped.Terminal())
}

func TestParse(t *testing.T) {
	got, err := Parse("processing", RefundStatuses)
	require.NoError(t, err)
	assert.Equal(t, RefundStatusProcessing, got)

	mv, err := Parse("in", MovementTypes)
	require.NoError(t, err)
	assert.Equal(t, MovementIn, mv)

	_, err = Parse("lost", OrderStatuses)
	assert.ErrorContains(t, err, `"lost"`)
	_, err = Parse("paid", PaymentStatuses)
	assert.Error(t, err)
	_, err = Parse("order_shipped", OutboxEventTypes)
	assert.Error(t, err)
}

func TestUserRoleIsValid(t *testing.T) {
	assert.True(t, UserRoleAdmin.IsValid())
	assert.False(t, UserRole("root").IsValid())
}
