package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
	"github.com/fjod/go_cart/cart-checkout/internal/payment"
	"github.com/fjod/go_cart/cart-checkout/internal/pricing"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockCatalog implements ProductCatalog and CouponCatalog.
type mockCatalog struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	coupons  map[string]*domain.Coupon
	err      error
	calls    int
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]*domain.Product{
			"A": {ID: "A", Name: "Alpha", SKU: "SKU-A", Price: dec("100.00"), StoreID: "store-1", StoreName: "Store One", Weight: dec("1.5")},
			"B": {ID: "B", Name: "Beta", SKU: "SKU-B", Price: dec("10.00"), StoreID: "store-1", StoreName: "Store One"},
			"C": {ID: "C", Name: "Gamma", SKU: "SKU-C", Price: dec("0.335"), StoreID: "store-2", StoreName: "Store Two"},
		},
		coupons: map[string]*domain.Coupon{
			"TEN":   {Code: "TEN", Kind: domain.CouponPercent, Value: dec("10"), Active: true},
			"BIG":   {Code: "BIG", Kind: domain.CouponFixed, Value: dec("50"), MinSubtotal: dec("500"), Active: true},
			"OFF":   {Code: "OFF", Kind: domain.CouponFixed, Value: dec("5"), Active: false},
			"FIFTY": {Code: "FIFTY", Kind: domain.CouponFixed, Value: dec("50"), Active: true},
		},
	}
}

func (m *mockCatalog) GetByID(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.NotFoundf("product %s", productID)
	}
	cp := *p
	return &cp, nil
}

func (m *mockCatalog) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.coupons[code]
	if !ok {
		return nil, domain.NotFoundf("coupon %s", code)
	}
	cp := *c
	return &cp, nil
}

func (m *mockCatalog) setPrice(productID string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[productID].Price = price
}

// mockOrders is an in-memory repository.OrderRepository.
type mockOrders struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	payments  []*domain.Payment
	refunds   []*repository.Refund
	createErr error
	recordErr error
	refundErr error
}

func newMockOrders() *mockOrders {
	return &mockOrders{orders: map[uuid.UUID]*domain.Order{}}
}

func (m *mockOrders) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrders) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) RecordPayment(_ context.Context, p *domain.Payment, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	o, ok := m.orders[p.OrderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != from {
		return repository.ErrStatusChanged
	}
	o.Status = to
	cp := *p
	m.payments = append(m.payments, &cp)
	return nil
}

func (m *mockOrders) GetLatestSuccessfulPayment(_ context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.payments) - 1; i >= 0; i-- {
		p := m.payments[i]
		if p.OrderID == orderID && (p.Status == domain.PaymentStatusSucceeded || p.Status == domain.PaymentStatusRefunded) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (m *mockOrders) RecordRefund(_ context.Context, r *repository.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refundErr != nil {
		return m.refundErr
	}
	o, ok := m.orders[r.OrderID]
	if !ok || o.Status != domain.OrderStatusPaid {
		return repository.ErrStatusChanged
	}
	o.Status = domain.OrderStatusRefunded
	m.refunds = append(m.refunds, r)
	return nil
}

func (m *mockOrders) GetStatusHistory(context.Context, uuid.UUID) ([]domain.OrderStatusChange, error) {
	return nil, nil
}

func (m *mockOrders) status(id uuid.UUID) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *mockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// mockProcessor implements payment.Processor and counts gateway calls.
type mockProcessor struct {
	mu        sync.Mutex
	charges   int
	refunds   int
	decline   bool
	chargeErr error
	refundErr error
	delay     time.Duration
}

func (m *mockProcessor) Charge(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges++
	if m.chargeErr != nil {
		return nil, m.chargeErr
	}
	if m.decline {
		return &payment.ChargeResult{Success: false, TransactionID: "txn-declined", ErrorMessage: "insufficient funds"}, nil
	}
	return &payment.ChargeResult{Success: true, TransactionID: "txn-" + req.OrderID}, nil
}

func (m *mockProcessor) Refund(_ context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds++
	if m.refundErr != nil {
		return nil, m.refundErr
	}
	return &payment.RefundResult{Success: true, RefundTransactionID: "rfnd-" + req.TransactionID}, nil
}

func (m *mockProcessor) refundCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refunds
}

func (m *mockProcessor) chargeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.charges
}

// failingCache wraps a cache and fails or interleaves its conditional writes.
type failingCache struct {
	cache.CartCache
	casErr error
	// beforeCAS runs between the service's read and its conditional write
	beforeCAS func()
}

func (f *failingCache) conditional() error {
	if f.beforeCAS != nil {
		f.beforeCAS()
	}
	return f.casErr
}

func (f *failingCache) CompareAndSwap(ctx context.Context, cart *domain.Cart, expectedFingerprint string) error {
	if err := f.conditional(); err != nil {
		return err
	}
	return f.CartCache.CompareAndSwap(ctx, cart, expectedFingerprint)
}

func (f *failingCache) SwapAndDelete(ctx context.Context, cart *domain.Cart, expectedFingerprint string, consumed domain.Owner, consumedFingerprint string) error {
	if err := f.conditional(); err != nil {
		return err
	}
	return f.CartCache.SwapAndDelete(ctx, cart, expectedFingerprint, consumed, consumedFingerprint)
}

func (f *failingCache) CompareAndDelete(ctx context.Context, owner domain.Owner, expectedFingerprint string) error {
	if err := f.conditional(); err != nil {
		return err
	}
	return f.CartCache.CompareAndDelete(ctx, owner, expectedFingerprint)
}

var errBoom = errors.New("boom")

type fixture struct {
	mr        *miniredis.Miniredis
	client    *redis.Client
	store     *cache.RedisCache
	locker    *lock.RedisLocker
	catalog   *mockCatalog
	orders    *mockOrders
	processor *mockProcessor
	carts     *CartService
	payments  *PaymentService
	checkout  *CheckoutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		mr:        mr,
		client:    client,
		store:     cache.NewRedisCache(client, cache.DefaultTTLs),
		locker:    lock.NewRedisLocker(client),
		catalog:   newMockCatalog(),
		orders:    newMockOrders(),
		processor: &mockProcessor{},
	}
	f.build(f.store)
	return f
}

func (f *fixture) build(carts cache.CartCache) {
	log := discardLogger()
	calc := pricing.NewCalculator(pricing.DefaultRateTable, pricing.NewFlatTax(pricing.DefaultTaxRate))
	gate := NewGate(f.store, f.locker, LockTimings{Lease: 5 * time.Second, Wait: 2 * time.Second}, log)

	f.carts = NewCartService(carts, f.catalog, f.catalog, calc, f.locker,
		LockTimings{Lease: 5 * time.Second, Wait: 2 * time.Second}, log)
	f.payments = NewPaymentService(f.orders, f.processor, gate, log)
	f.checkout = NewCheckoutService(f.carts, carts, f.store, pricing.DefaultRateTable,
		pricing.NewFlatTax(pricing.DefaultTaxRate), f.orders, f.payments, gate, "USD", log)
}
