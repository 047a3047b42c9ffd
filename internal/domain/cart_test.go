package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(productID string, qty int, weight string) CartItem {
	return CartItem{
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: decimal.NewFromInt(10),
		Weight:    decimal.RequireFromString(weight),
	}
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestCart_AddOrIncrement(t *testing.T) {
	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cart := NewCart(GuestOwner("s1"), added)

	first := line("A", 2, "1.5")
	first.AddedAt = added
	cart.AddOrIncrement(first)

	refreshed := line("A", 1, "1.5")
	refreshed.ProductName = "Renamed"
	refreshed.AddedAt = added.Add(time.Hour)
	cart.AddOrIncrement(refreshed)
	cart.AddOrIncrement(line("B", 3, "0"))

	want := []CartItem{
		{ProductID: "A", ProductName: "Renamed", Quantity: 3, UnitPrice: decimal.NewFromInt(10), Weight: decimal.RequireFromString("1.5"), AddedAt: added},
		{ProductID: "B", Quantity: 3, UnitPrice: decimal.NewFromInt(10), Weight: decimal.Zero},
	}
	if diff := cmp.Diff(want, cart.Items, decimalEqual); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 6, cart.ItemCount())
	assert.Equal(t, "4.5", cart.TotalWeight().String())
}

func TestCart_SetQuantity(t *testing.T) {
	cart := NewCart(UserOwner("u1"), time.Now())

	cart.SetQuantity(line("A", 1, "0"), 4)
	cart.SetQuantity(line("A", 1, "0"), 4)
	item, ok := cart.Item("A")
	assert.True(t, ok)
	assert.Equal(t, 4, item.Quantity)
	assert.Len(t, cart.Items, 1)

	cart.SetQuantity(line("A", 1, "0"), 0)
	assert.True(t, cart.IsEmpty())

	// zero on a missing line is a no-op
	cart.SetQuantity(line("Z", 1, "0"), 0)
	assert.True(t, cart.IsEmpty())
}

func TestCart_RemoveItem(t *testing.T) {
	cart := NewCart(GuestOwner("s1"), time.Now())
	cart.AddOrIncrement(line("A", 1, "0"))
	cart.AddOrIncrement(line("B", 1, "0"))

	assert.True(t, cart.RemoveItem("A"))
	assert.False(t, cart.RemoveItem("A"))
	if diff := cmp.Diff([]string{"B"}, productIDs(cart)); diff != "" {
		t.Errorf("remaining lines (-want +got):\n%s", diff)
	}
}

func TestOwner(t *testing.T) {
	assert.ErrorIs(t, Owner{}.Validate(), ErrValidation)
	assert.NoError(t, GuestOwner("s1").Validate())
	assert.True(t, GuestOwner("s1").IsGuest())
	assert.False(t, UserOwner("u1").IsGuest())

	cart := NewCart(UserOwner("u1"), time.Now())
	assert.Equal(t, UserOwner("u1"), cart.Owner())
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "0.34", RoundMoney(decimal.RequireFromString("0.335")).String())
	assert.Equal(t, "-0.34", RoundMoney(decimal.RequireFromString("-0.335")).String())
	assert.True(t, NonNegative(decimal.NewFromInt(-5)).IsZero())
}

func productIDs(c *Cart) []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
