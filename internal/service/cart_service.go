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
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
)

type CartService struct {
	carts     cache.CartCache
	products  ProductCatalog
	coupons   CouponCatalog
	pricing   Recalculator
	locker    lock.Locker
	mergeLock LockTimings
	log       *slog.Logger
	now       func() time.Time
}

func NewCartService(
	carts cache.CartCache,
	products ProductCatalog,
	coupons CouponCatalog,
	pricing Recalculator,
	locker lock.Locker,
	mergeLock LockTimings,
	log *slog.Logger,
) *CartService {
	return &CartService{
		carts:     carts,
		products:  products,
		coupons:   coupons,
		pricing:   pricing,
		locker:    locker,
		mergeLock: mergeLock,
		log:       log.With("component", "cart-service"),
		now:       time.Now,
	}
}

// GetCart returns the owner's cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.getOrCreate(ctx, owner)
}

func (s *CartService) getOrCreate(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("load cart %s: %w", owner, err)
	}

	cart = domain.NewCart(owner, s.now())
	if err := s.pricing.Recalculate(ctx, cart); err != nil {
		return nil, err
	}
	created, err := s.carts.Create(ctx, cart)
	if err != nil {
		return nil, fmt.Errorf("create cart %s: %w", owner, err)
	}
	if created {
		return cart, nil
	}

	// lost the race to a concurrent first read
	cart, err = s.carts.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", owner, err)
	}
	return cart, nil
}

// mutate loads the cart, applies change, reprices and stores it. With an
// expected fingerprint the write is conditional on the fingerprint read.
func (s *CartService) mutate(ctx context.Context, owner domain.Owner, expectedFingerprint string, change func(*domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if expectedFingerprint != "" && cart.Fingerprint != expectedFingerprint {
		return nil, domain.ErrFingerprintMismatch
	}
	read := cart.Fingerprint

	if err := change(cart); err != nil {
		return nil, err
	}
	if err := s.pricing.Recalculate(ctx, cart); err != nil {
		return nil, err
	}

	if expectedFingerprint != "" {
		err = s.carts.CompareAndSwap(ctx, cart, read)
	} else {
		err = s.carts.Set(ctx, cart)
	}
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("save cart %s: %w", owner, err)
	}
	return cart, nil
}

func (s *CartService) lineFor(ctx context.Context, productID string, quantity int) (domain.CartItem, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return domain.CartItem{}, external("product lookup", err)
	}
	return domain.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		SKU:         product.SKU,
		UnitPrice:   product.Price,
		Quantity:    quantity,
		StoreID:     product.StoreID,
		StoreName:   product.StoreName,
		Weight:      product.Weight,
		AddedAt:     s.now(),
	}, nil
}

// AddItem adds quantity to the product's line, pricing it from the catalog.
func (s *CartService) AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int, expectedFingerprint string) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(productID) == "" {
		return nil, domain.Validationf("product_id is required")
	}
	if quantity <= 0 {
		return nil, domain.Validationf("quantity must be positive, got %d", quantity)
	}

	line, err := s.lineFor(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	cart, err := s.mutate(ctx, owner, expectedFingerprint, func(c *domain.Cart) error {
		c.AddOrIncrement(line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "item added", "owner", owner.String(), "product_id", productID, "quantity", quantity, "version", cart.Version)
	return cart, nil
}

// UpdateItem sets the line's quantity. Zero removes the line.
func (s *CartService) UpdateItem(ctx context.Context, owner domain.Owner, productID string, quantity int, expectedFingerprint string) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(productID) == "" {
		return nil, domain.Validationf("product_id is required")
	}
	if quantity < 0 {
		return nil, domain.Validationf("quantity must not be negative, got %d", quantity)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, owner, productID, expectedFingerprint)
	}

	line, err := s.lineFor(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, owner, expectedFingerprint, func(c *domain.Cart) error {
		c.SetQuantity(line, quantity)
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, owner domain.Owner, productID string, expectedFingerprint string) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, owner, expectedFingerprint, func(c *domain.Cart) error {
		if !c.RemoveItem(productID) {
			return domain.NotFoundf("product %s is not in the cart", productID)
		}
		return nil
	})
}

func (s *CartService) ApplyCoupon(ctx context.Context, owner domain.Owner, code string, expectedFingerprint string) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Validationf("coupon code is required")
	}

	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, external("coupon lookup", err)
	}
	if !coupon.Usable(s.now()) {
		return nil, domain.Validationf("coupon %s is not active", code)
	}

	return s.mutate(ctx, owner, expectedFingerprint, func(c *domain.Cart) error {
		if c.SubTotal.LessThan(coupon.MinSubtotal) {
			return domain.Validationf("coupon %s requires a subtotal of at least %s", code, coupon.MinSubtotal.StringFixed(2))
		}
		c.Coupon = coupon.Snapshot()
		return nil
	})
}

func (s *CartService) RemoveCoupon(ctx context.Context, owner domain.Owner, expectedFingerprint string) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, owner, expectedFingerprint, func(c *domain.Cart) error {
		c.Coupon = nil
		return nil
	})
}

// SetShippingOption records which shipping option the cart is priced with.
func (s *CartService) SetShippingOption(ctx context.Context, owner domain.Owner, optionID string) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, owner, "", func(c *domain.Cart) error {
		c.ShippingOptionID = optionID
		return nil
	})
}

// ClearCart drops the cart; the next read starts a fresh one.
func (s *CartService) ClearCart(ctx context.Context, owner domain.Owner, expectedFingerprint string) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if expectedFingerprint == "" {
		if err := s.carts.Delete(ctx, owner); err != nil {
			return fmt.Errorf("delete cart %s: %w", owner, err)
		}
		return nil
	}
	if err := s.carts.CompareAndDelete(ctx, owner, expectedFingerprint); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return err
		}
		return fmt.Errorf("delete cart %s: %w", owner, err)
	}
	return nil
}
