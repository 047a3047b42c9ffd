package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/pricing"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinalizeResult is returned by Finalize and is the payload remembered for
// idempotent finalize retries.
type FinalizeResult struct {
	Order   *domain.Order         `json:"order"`
	Payment *domain.PaymentResult `json:"payment"`
}

// CheckoutService drives the guest checkout: address, shipping, summary and
// finalization into an order.
type CheckoutService struct {
	carts    *CartService
	sessions cache.SessionCache
	store    cache.CartCache
	shipping ShippingQuoter
	tax      TaxRate
	orders   repository.OrderRepository
	payments *PaymentService
	gate     *Gate
	currency string
	log      *slog.Logger
	now      func() time.Time
}

func NewCheckoutService(
	carts *CartService,
	store cache.CartCache,
	sessions cache.SessionCache,
	shipping ShippingQuoter,
	tax TaxRate,
	orders repository.OrderRepository,
	payments *PaymentService,
	gate *Gate,
	currency string,
	log *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		store:    store,
		sessions: sessions,
		shipping: shipping,
		tax:      tax,
		orders:   orders,
		payments: payments,
		gate:     gate,
		currency: currency,
		log:      log.With("component", "checkout-service"),
		now:      time.Now,
	}
}

func (s *CheckoutService) loadSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return domain.NewCheckoutSession(sessionID, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkout session: %w", err)
	}
	return session, nil
}

func (s *CheckoutService) saveSession(ctx context.Context, session *domain.CheckoutSession) error {
	session.UpdatedAt = s.now()
	if err := s.sessions.SetSession(ctx, session); err != nil {
		return fmt.Errorf("save checkout session: %w", err)
	}
	return nil
}

// guestCart reads the live cart without creating one.
func (s *CheckoutService) guestCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.store.Get(ctx, domain.GuestOwner(sessionID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return domain.NewCart(domain.GuestOwner(sessionID), s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart, nil
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.ErrSessionRequired
	}
	return nil
}

func (s *CheckoutService) SaveAddress(ctx context.Context, sessionID string, address domain.GuestAddress) (*domain.CheckoutSession, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Address = &address
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetShippingOptions quotes shipping for the cart and remembers the quote so
// a later selection is checked against what was offered.
func (s *CheckoutService) GetShippingOptions(ctx context.Context, sessionID string) ([]domain.ShippingOption, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	cart, err := s.guestCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.Validationf("cart is empty")
	}

	options, err := s.shipping.Options(ctx, cart.Items[0].StoreID, cart.ItemCount())
	if err != nil {
		return nil, external("shipping options", err)
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.ShippingOptions = options
	if session.SelectedShippingOption != nil {
		if _, ok := session.OfferedOption(session.SelectedShippingOption.ID); !ok {
			session.SelectedShippingOption = nil
		}
	}
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return options, nil
}

func (s *CheckoutService) SelectShipping(ctx context.Context, sessionID, optionID string) (*domain.CheckoutSession, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(optionID) == "" {
		return nil, domain.Validationf("shipping option id is required")
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(session.ShippingOptions) == 0 {
		return nil, domain.Validationf("shipping options not requested")
	}
	option, ok := session.OfferedOption(optionID)
	if !ok {
		return nil, domain.Validationf("shipping option %q was not offered", optionID)
	}

	session.SelectedShippingOption = &option
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}

	// keep the cart's own totals on the chosen option
	if _, err := s.carts.SetShippingOption(ctx, domain.GuestOwner(sessionID), option.ID); err != nil {
		s.log.WarnContext(ctx, "failed to reprice cart with selected shipping", "session_id", sessionID, "error", err)
	}
	return session, nil
}

// GetSummary prices the live cart with the selected shipping and stores the
// result in the session.
func (s *CheckoutService) GetSummary(ctx context.Context, sessionID string) (*domain.CheckoutSummary, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	cart, err := s.guestCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	summary := s.summarize(cart, session)
	session.Summary = &summary
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *CheckoutService) summarize(cart *domain.Cart, session *domain.CheckoutSession) domain.CheckoutSummary {
	subtotal := decimal.Zero
	for _, line := range cart.Items {
		subtotal = subtotal.Add(domain.RoundMoney(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))))
	}
	subtotal = domain.RoundMoney(subtotal)

	shipping := decimal.Zero
	if session.SelectedShippingOption != nil && !cart.IsEmpty() {
		shipping = session.SelectedShippingOption.Price
	}

	discount := domain.RoundMoney(cart.DiscountAmount.Add(pricing.CouponDiscount(cart.Coupon, subtotal)))
	tax := s.tax.On(domain.NonNegative(subtotal.Sub(discount)))

	return domain.CheckoutSummary{
		Subtotal: subtotal,
		Shipping: domain.RoundMoney(shipping),
		Discount: discount,
		Tax:      tax,
		Total:    domain.NonNegative(domain.RoundMoney(subtotal.Add(shipping).Add(tax).Sub(discount))),
	}
}

// Finalize turns the guest cart into an order and pays for it. The cart and
// session survive a declined payment so the customer can retry. With an
// idempotency key a retried finalize returns the first result instead of
// creating another order.
func (s *CheckoutService) Finalize(ctx context.Context, sessionID string, req domain.PaymentRequest) (*FinalizeResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Method) == "" {
		return nil, domain.Validationf("payment method is required")
	}

	var result FinalizeResult
	err := s.gate.Do(ctx, domain.ScopeFinalize, sessionID, req.IdempotencyKey, &result,
		func(ctx context.Context) (any, domain.Outcome, error) {
			return s.finalize(ctx, sessionID, req)
		})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *CheckoutService) finalize(ctx context.Context, sessionID string, req domain.PaymentRequest) (any, domain.Outcome, error) {
	cart, err := s.guestCart(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if cart.IsEmpty() {
		return nil, "", domain.Validationf("cart is empty")
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return nil, "", fmt.Errorf("load checkout session: %w", err)
	}
	if session == nil || session.Address == nil {
		return nil, "", domain.Validationf("shipping address is required")
	}

	summary := s.summarize(cart, session)
	now := s.now()
	order := &domain.Order{
		ID:              uuid.New(),
		SessionID:       sessionID,
		Status:          domain.OrderStatusNew,
		Items:           domain.ItemsFromCart(cart),
		Subtotal:        summary.Subtotal,
		ShippingAmount:  summary.Shipping,
		DiscountAmount:  summary.Discount,
		TaxAmount:       summary.Tax,
		TotalAmount:     summary.Total,
		Currency:        s.currency,
		CouponCode:      cart.CouponCode,
		ShippingAddress: *session.Address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if session.SelectedShippingOption != nil {
		order.ShippingOptionID = session.SelectedShippingOption.ID
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, "", fmt.Errorf("create order: %w", err)
	}
	s.log.InfoContext(ctx, "order created", "order_id", order.ID, "session_id", sessionID, "total", order.TotalAmount.StringFixed(2))

	paid, err := s.payments.ProcessPayment(ctx, order.ID, req)
	if err != nil {
		s.log.WarnContext(ctx, "payment not attempted, order left unpaid", "order_id", order.ID, "error", err)
		return nil, "", err
	}
	order.Status = paid.OrderStatus

	if !paid.Success {
		return FinalizeResult{Order: order, Payment: paid}, domain.OutcomeFailure, nil
	}

	if err := s.store.Delete(ctx, domain.GuestOwner(sessionID)); err != nil {
		s.log.ErrorContext(ctx, "failed to delete paid cart", "session_id", sessionID, "error", err)
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		s.log.ErrorContext(ctx, "failed to delete checkout session", "session_id", sessionID, "error", err)
	}
	return FinalizeResult{Order: order, Payment: paid}, domain.OutcomeSuccess, nil
}
