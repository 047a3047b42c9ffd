package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
	"github.com/shopspring/decimal"
)

type ProductCatalog interface {
	GetByID(ctx context.Context, productID string) (*domain.Product, error)
}

type CouponCatalog interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

type Recalculator interface {
	Recalculate(ctx context.Context, cart *domain.Cart) error
}

type ShippingQuoter interface {
	Options(ctx context.Context, storeID string, totalItems int) ([]domain.ShippingOption, error)
}

type TaxRate interface {
	On(amount decimal.Decimal) decimal.Decimal
}

// LockTimings bounds how long a lock is held and how long to wait for it.
type LockTimings struct {
	Lease time.Duration
	Wait  time.Duration
}

var (
	DefaultMergeLock   = LockTimings{Lease: 30 * time.Second, Wait: 10 * time.Second}
	DefaultPaymentLock = LockTimings{Lease: 60 * time.Second, Wait: 10 * time.Second}
)

func acquire(ctx context.Context, locker lock.Locker, key string, t LockTimings) (*lock.Handle, error) {
	h, err := locker.Acquire(ctx, key, t.Lease, t.Wait)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, domain.ErrLockBusy
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return h, nil
}

// detach keeps work going after the caller goes away, bounded by the lease.
func detach(ctx context.Context, t LockTimings) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), t.Lease)
}

// external marks a collaborator failure unless it already carries a domain kind.
func external(what string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrExternal, what, err)
}
