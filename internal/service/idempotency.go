package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
)

// gatedFunc performs the guarded work. A non-nil error means nothing worth
// remembering happened and the caller may simply retry.
type gatedFunc func(ctx context.Context) (any, domain.Outcome, error)

// Gate makes a call at most once per (scope, subject, key). Attempts for one
// subject are serialised with a lock so the lookup and the write of the
// outcome cannot interleave with another attempt.
type Gate struct {
	store  cache.IdempotencyStore
	locker lock.Locker
	timing LockTimings
	log    *slog.Logger
	now    func() time.Time
}

func NewGate(store cache.IdempotencyStore, locker lock.Locker, timing LockTimings, log *slog.Logger) *Gate {
	return &Gate{
		store:  store,
		locker: locker,
		timing: timing,
		log:    log,
		now:    time.Now,
	}
}

// Do runs fn under the subject lock and decodes the outcome into out. Without
// a key the call is serialised but not remembered. The value handed back is
// always decoded from the stored payload, so a replay and the first call are
// indistinguishable to the caller.
func (g *Gate) Do(ctx context.Context, scope domain.IdempotencyScope, subjectID, key string, out any, fn gatedFunc) error {
	h, err := acquire(ctx, g.locker, string(scope)+":"+subjectID, g.timing)
	if err != nil {
		return err
	}
	defer func() {
		if err := g.locker.Release(context.WithoutCancel(ctx), h); err != nil {
			g.log.WarnContext(ctx, "failed to release lock", "key", h.Key, "error", err)
		}
	}()

	ctx, cancel := detach(ctx, g.timing)
	defer cancel()

	if key != "" {
		rec, err := g.store.GetRecord(ctx, scope, subjectID, key)
		switch {
		case err == nil:
			g.log.InfoContext(ctx, "replaying idempotent outcome",
				"scope", scope, "subject", subjectID, "outcome", rec.Outcome)
			return decodePayload(rec.Payload, out)
		case !errors.Is(err, cache.ErrCacheMiss):
			return fmt.Errorf("idempotency lookup: %w", err)
		}
	}

	value, outcome, err := fn(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s outcome: %w", scope, err)
	}

	if key != "" {
		stored, err := g.store.PutRecord(ctx, &domain.IdempotencyRecord{
			Scope:     scope,
			SubjectID: subjectID,
			Key:       key,
			Outcome:   outcome,
			Payload:   payload,
			CreatedAt: g.now(),
		})
		if err != nil {
			// the call already happened; failing here would invite a second one
			g.log.ErrorContext(ctx, "failed to store idempotent outcome",
				"scope", scope, "subject", subjectID, "error", err)
		} else {
			payload = stored.Payload
		}
	}

	return decodePayload(payload, out)
}

func decodePayload(payload json.RawMessage, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode stored outcome: %w", err)
	}
	return nil
}
