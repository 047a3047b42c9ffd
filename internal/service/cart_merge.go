package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
)

// MergeCarts folds the guest cart of sessionID into the cart of userID at most
// once. observedFingerprint is the user cart fingerprint the caller based its
// decision on; when empty the current one is read before locking. The guest
// cart is deleted in the same write that stores the merged cart. Guest lines
// are re-priced from the catalog as they are folded.
func (s *CartService) MergeCarts(ctx context.Context, sessionID, userID, observedFingerprint string) (*domain.Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrSessionRequired
	}
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Validationf("user id is required to merge carts")
	}
	guestOwner := domain.GuestOwner(sessionID)
	userOwner := domain.UserOwner(userID)

	if observedFingerprint == "" {
		current, err := s.getOrCreate(ctx, userOwner)
		if err != nil {
			return nil, err
		}
		observedFingerprint = current.Fingerprint
	}

	h, err := acquire(ctx, s.locker, "cart-merge:"+userID, s.mergeLock)
	if err != nil {
		if errors.Is(err, domain.ErrLockBusy) {
			s.log.WarnContext(ctx, "merge lock busy", "user_id", userID, "session_id", sessionID)
		}
		return nil, err
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), h); err != nil {
			s.log.WarnContext(ctx, "failed to release merge lock", "user_id", userID, "error", err)
		}
	}()

	ctx, cancel := detach(ctx, s.mergeLock)
	defer cancel()

	guest, err := s.carts.Get(ctx, guestOwner)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	user, err := s.getOrCreate(ctx, userOwner)
	if err != nil {
		return nil, err
	}

	if guest == nil || guest.IsEmpty() {
		// nothing left to fold, most likely a concurrent merge already did it
		return user, nil
	}
	if user.Fingerprint != observedFingerprint {
		return nil, domain.Conflictf("user cart changed since it was read")
	}

	fresh := user.Fingerprint
	for _, guestLine := range guest.Items {
		line, err := s.lineFor(ctx, guestLine.ProductID, guestLine.Quantity)
		if errors.Is(err, domain.ErrNotFound) {
			s.log.WarnContext(ctx, "dropping unavailable product from guest cart",
				"user_id", userID, "session_id", sessionID, "product_id", guestLine.ProductID)
			continue
		}
		if err != nil {
			return nil, err
		}
		line.AddedAt = guestLine.AddedAt
		user.AddOrIncrement(line)
	}
	if user.Coupon == nil && guest.Coupon != nil {
		user.Coupon = guest.Coupon
	}
	if err := s.pricing.Recalculate(ctx, user); err != nil {
		return nil, err
	}
	// the guest cart goes in the same transaction, so a stored merge never
	// leaves it behind to be folded twice
	if err := s.carts.SwapAndDelete(ctx, user, fresh, guestOwner, guest.Fingerprint); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("save merged cart: %w", err)
	}

	s.log.InfoContext(ctx, "carts merged",
		"user_id", userID, "session_id", sessionID, "lines", len(guest.Items), "version", user.Version)
	return user, nil
}
