package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	// Create stores cart only if no cart exists for its owner yet.
	Create(ctx context.Context, cart *domain.Cart) (bool, error)
	Set(ctx context.Context, cart *domain.Cart) error
	// CompareAndSwap stores cart only if the stored fingerprint still equals
	// expectedFingerprint, otherwise it returns domain.ErrFingerprintMismatch.
	CompareAndSwap(ctx context.Context, cart *domain.Cart, expectedFingerprint string) error
	// SwapAndDelete is CompareAndSwap that also deletes the cart of consumed
	// in the same transaction, provided it still has consumedFingerprint.
	SwapAndDelete(ctx context.Context, cart *domain.Cart, expectedFingerprint string, consumed domain.Owner, consumedFingerprint string) error
	// CompareAndDelete deletes the owner's cart only if its fingerprint still
	// equals expectedFingerprint.
	CompareAndDelete(ctx context.Context, owner domain.Owner, expectedFingerprint string) error
	Delete(ctx context.Context, owner domain.Owner) error
}

type SessionCache interface {
	GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
	SetSession(ctx context.Context, session *domain.CheckoutSession) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, scope domain.IdempotencyScope, subjectID, key string) (*domain.IdempotencyRecord, error)
	// PutRecord writes rec unless a record already exists, in which case the
	// stored record is returned and rec is discarded.
	PutRecord(ctx context.Context, rec *domain.IdempotencyRecord) (*domain.IdempotencyRecord, error)
}

var ErrCacheMiss = errors.New("cache miss")
