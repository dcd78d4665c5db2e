package domain

import (
	"testing"

	"github.com/mtalha0777/arfurniture/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Lifecycle(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusInProgress))
	assert.True(t, OrderStatusInProgress.CanTransitionTo(OrderStatusDelivered))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusCancelled))

	// no way back to pending, delivered is terminal
	assert.False(t, OrderStatusInProgress.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusDelivered.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusDelivered.CanTransitionTo(OrderStatusCancelled))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusInProgress))
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusDelivered))
}

func TestShipping_Missing(t *testing.T) {
	s := Shipping{Name: "Asha", Address: "  ", PostalCode: "560001"}
	assert.Equal(t, []string{"address", "phone"}, s.Missing())

	full := Shipping{Name: "Asha", Address: "12 MG Road", PostalCode: "560001", Phone: "9876543210"}
	assert.Empty(t, full.Missing())
}

func TestItemsForShop(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{ProductID: "sofa", ShopID: "shop-a", Price: 1000},
		{ProductID: "lamp", ShopID: "shop-b", Price: 500},
		{ProductID: "rug", ShopID: "shop-a", Price: 300},
	}}

	items := o.ItemsForShop("shop-a")
	assert.Len(t, items, 2)
	assert.Equal(t, "sofa", items[0].ProductID)
	assert.Equal(t, "rug", items[1].ProductID)
	assert.Empty(t, o.ItemsForShop("shop-c"))
}

func TestCartSnapshot_Subtotal(t *testing.T) {
	s := &CartSnapshot{Lines: []CartLine{{UnitPrice: 1000}, {UnitPrice: 500}}}
	subtotal, err := s.Subtotal()
	require.NoError(t, err)
	assert.EqualValues(t, 1500, subtotal)

	huge := &CartSnapshot{Lines: []CartLine{{UnitPrice: money.MaxAmount}, {UnitPrice: 1}}}
	_, err = huge.Subtotal()
	assert.ErrorIs(t, err, money.ErrOverflow)
	assert.False(t, s.IsEmpty())

	var empty *CartSnapshot
	assert.True(t, empty.IsEmpty())
}
