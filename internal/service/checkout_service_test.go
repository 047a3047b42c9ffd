package service

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAddress() domain.GuestAddress {
	return domain.GuestAddress{
		FullName:   gofakeit.Name(),
		Email:      gofakeit.Email(),
		Phone:      gofakeit.Phone(),
		Line1:      gofakeit.Street(),
		City:       gofakeit.City(),
		PostalCode: gofakeit.Zip(),
		Country:    gofakeit.CountryAbr(),
	}
}

// readyCheckout fills a guest cart and walks the session up to the summary.
func readyCheckout(t *testing.T, f *fixture, sessionID string) {
	t.Helper()
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, domain.GuestOwner(sessionID), "A", 2, "")
	require.NoError(t, err)
	_, err = f.checkout.SaveAddress(ctx, sessionID, fakeAddress())
	require.NoError(t, err)
	_, err = f.checkout.GetShippingOptions(ctx, sessionID)
	require.NoError(t, err)
	_, err = f.checkout.SelectShipping(ctx, sessionID, pricing.ExpressShipping)
	require.NoError(t, err)
}

func TestCheckout_SummaryMatchesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	readyCheckout(t, f, "s1")

	summary, err := f.checkout.GetSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "200.00", summary.Subtotal.StringFixed(2))
	assert.Equal(t, "99.90", summary.Shipping.StringFixed(2))
	assert.Equal(t, "36.00", summary.Tax.StringFixed(2))
	assert.Equal(t, "335.90", summary.Total.StringFixed(2))

	cart, err := f.carts.GetCart(ctx, domain.GuestOwner("s1"))
	require.NoError(t, err)
	assert.Equal(t, pricing.ExpressShipping, cart.ShippingOptionID)
	assert.True(t, summary.Total.Equal(cart.TotalAmount))

	session, err := f.store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session.Summary)
	assert.True(t, session.Summary.Total.Equal(summary.Total))
}

func TestCheckout_SummaryUsesLiveCartAndCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := domain.GuestOwner("s1")

	_, err := f.carts.AddItem(ctx, owner, "A", 2, "")
	require.NoError(t, err)
	_, err = f.carts.ApplyCoupon(ctx, owner, "TEN", "")
	require.NoError(t, err)

	summary, err := f.checkout.GetSummary(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, summary.Shipping.IsZero())
	assert.Equal(t, "20.00", summary.Discount.StringFixed(2))
	assert.Equal(t, "32.40", summary.Tax.StringFixed(2))
	assert.Equal(t, "212.40", summary.Total.StringFixed(2))

	_, err = f.carts.AddItem(ctx, owner, "B", 1, "")
	require.NoError(t, err)
	summary, err = f.checkout.GetSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "210.00", summary.Subtotal.StringFixed(2))
}

func TestCheckout_SessionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checkout.SaveAddress(ctx, "", fakeAddress())
	assert.ErrorIs(t, err, domain.ErrSessionRequired)

	bad := fakeAddress()
	bad.Email = "not-an-email"
	_, err = f.checkout.SaveAddress(ctx, "s1", bad)
	assert.ErrorIs(t, err, domain.ErrValidation)

	bad = fakeAddress()
	bad.City = " "
	_, err = f.checkout.SaveAddress(ctx, "s1", bad)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.checkout.GetShippingOptions(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.checkout.SelectShipping(ctx, "s1", pricing.StandardShipping)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "shipping options not requested")

	_, err = f.carts.AddItem(ctx, domain.GuestOwner("s1"), "B", 1, "")
	require.NoError(t, err)
	options, err := f.checkout.GetShippingOptions(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, options, 2)

	_, err = f.checkout.SelectShipping(ctx, "s1", "drone")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.checkout.SelectShipping(ctx, "s1", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFinalize_PaysAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	readyCheckout(t, f, "s1")

	result, err := f.checkout.Finalize(ctx, "s1", card(""))
	require.NoError(t, err)

	require.True(t, result.Payment.Success)
	assert.Equal(t, domain.OrderStatusPaid, result.Order.Status)
	assert.Equal(t, "335.90", result.Order.TotalAmount.StringFixed(2))
	assert.Equal(t, pricing.ExpressShipping, result.Order.ShippingOptionID)
	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, 2, result.Order.Items[0].Quantity)
	assert.Equal(t, "100.00", result.Order.Items[0].UnitPrice.StringFixed(2))

	assert.Equal(t, domain.OrderStatusPaid, f.orders.status(result.Order.ID))
	assert.False(t, f.mr.Exists("cart:session:s1"))
	assert.False(t, f.mr.Exists("checkout:session:s1"))
}

func TestFinalize_DeclineKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	readyCheckout(t, f, "s1")
	f.processor.decline = true

	result, err := f.checkout.Finalize(ctx, "s1", card(""))
	require.NoError(t, err)

	assert.False(t, result.Payment.Success)
	assert.Equal(t, domain.OrderStatusPaymentFailed, result.Order.Status)
	assert.True(t, f.mr.Exists("cart:session:s1"))
	assert.True(t, f.mr.Exists("checkout:session:s1"))

	// the customer retries the same order with another card
	f.processor.decline = false
	paid, err := f.payments.ProcessPayment(ctx, result.Order.ID, card("retry-1"))
	require.NoError(t, err)
	assert.True(t, paid.Success)
}

func TestFinalize_PreconditionsCheckedBeforePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checkout.Finalize(ctx, "s1", card(""))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.carts.AddItem(ctx, domain.GuestOwner("s1"), "A", 1, "")
	require.NoError(t, err)
	_, err = f.checkout.Finalize(ctx, "s1", card(""))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "address")

	_, err = f.checkout.Finalize(ctx, "", card(""))
	assert.ErrorIs(t, err, domain.ErrSessionRequired)

	assert.Zero(t, f.orders.count())
	assert.Zero(t, f.processor.chargeCount())
}

func TestFinalize_SameKeyCreatesOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	readyCheckout(t, f, "s1")

	first, err := f.checkout.Finalize(ctx, "s1", card("finalize-1"))
	require.NoError(t, err)
	second, err := f.checkout.Finalize(ctx, "s1", card("finalize-1"))
	require.NoError(t, err)

	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Payment, second.Payment)
	assert.Equal(t, 1, f.orders.count())
	assert.Equal(t, 1, f.processor.chargeCount())
}

func TestFinalize_OrderStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	readyCheckout(t, f, "s1")
	f.orders.createErr = errBoom

	_, err := f.checkout.Finalize(ctx, "s1", card("k"))
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, f.processor.chargeCount())
	assert.True(t, f.mr.Exists("cart:session:s1"))
	assert.False(t, f.mr.Exists("idempotency:finalize:s1:k"))
}
