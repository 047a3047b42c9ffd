package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/redis/go-redis/v9"
)

type TTLs struct {
	Cart        time.Duration
	Session     time.Duration
	Idempotency time.Duration
}

var DefaultTTLs = TTLs{
	Cart:        12 * time.Hour,
	Session:     6 * time.Hour,
	Idempotency: 10 * time.Minute,
}

func NewRedisCache(client *redis.Client, ttls TTLs) *RedisCache {
	return &RedisCache{
		client: client,
		ttls:   ttls,
	}
}

// RedisCache keeps carts, checkout sessions and idempotency records as JSON
// values. Cart TTL slides on every read and write.
type RedisCache struct {
	client *redis.Client
	ttls   TTLs
}

func (r RedisCache) Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	key := cartKey(owner)

	data, err := r.client.GetEx(ctx, key, r.ttls.Cart).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err2 := json.Unmarshal(data, &cart); err2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
	}

	return &cart, nil
}

func (r RedisCache) Create(ctx context.Context, cart *domain.Cart) (bool, error) {
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return false, fmt.Errorf("marshal cart failed: %w", err)
	}

	created, err := r.client.SetNX(ctx, cartKey(cart.Owner()), jsonCart, r.ttls.Cart).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return created, nil
}

func (r RedisCache) Set(ctx context.Context, cart *domain.Cart) error {
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, cartKey(cart.Owner()), jsonCart, r.ttls.Cart).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) CompareAndSwap(ctx context.Context, cart *domain.Cart, expectedFingerprint string) error {
	key := cartKey(cart.Owner())
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	return r.ifFingerprints(ctx, []fingerprintGuard{{key, expectedFingerprint}}, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, key, jsonCart, r.ttls.Cart)
	})
}

func (r RedisCache) SwapAndDelete(ctx context.Context, cart *domain.Cart, expectedFingerprint string, consumed domain.Owner, consumedFingerprint string) error {
	key := cartKey(cart.Owner())
	consumedKey := cartKey(consumed)
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	guards := []fingerprintGuard{{key, expectedFingerprint}, {consumedKey, consumedFingerprint}}
	return r.ifFingerprints(ctx, guards, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, key, jsonCart, r.ttls.Cart)
		pipe.Del(ctx, consumedKey)
	})
}

func (r RedisCache) CompareAndDelete(ctx context.Context, owner domain.Owner, expectedFingerprint string) error {
	key := cartKey(owner)
	return r.ifFingerprints(ctx, []fingerprintGuard{{key, expectedFingerprint}}, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, key)
	})
}

// fingerprintGuard requires the cart stored at key to carry fingerprint. An
// empty fingerprint requires the key to be absent.
type fingerprintGuard struct {
	key         string
	fingerprint string
}

// ifFingerprints runs write in a MULTI/EXEC only if every guard holds. The
// guarded keys are WATCHed, so a concurrent write to any of them aborts the
// transaction with ErrFingerprintMismatch.
func (r RedisCache) ifFingerprints(ctx context.Context, guards []fingerprintGuard, write func(redis.Pipeliner)) error {
	keys := make([]string, 0, len(guards))
	for _, g := range guards {
		keys = append(keys, g.key)
	}

	txf := func(tx *redis.Tx) error {
		for _, g := range guards {
			stored, err := storedFingerprint(ctx, tx, g.key)
			if err != nil {
				return err
			}
			if stored != g.fingerprint {
				return domain.ErrFingerprintMismatch
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrFingerprintMismatch
	}
	return err
}

func storedFingerprint(ctx context.Context, tx *redis.Tx, key string) (string, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	var current domain.Cart
	if err := json.Unmarshal(data, &current); err != nil {
		return "", fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return current.Fingerprint, nil
}

func (r RedisCache) Delete(ctx context.Context, owner domain.Owner) error {
	if err := r.client.Del(ctx, cartKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func (r RedisCache) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var session domain.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session failed: %w", err)
	}
	return &session, nil
}

func (r RedisCache) SetSession(ctx context.Context, session *domain.CheckoutSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal checkout session failed: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.SessionID), data, r.ttls.Session).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r RedisCache) GetRecord(ctx context.Context, scope domain.IdempotencyScope, subjectID, key string) (*domain.IdempotencyRecord, error) {
	data, err := r.client.Get(ctx, idempotencyKey(scope, subjectID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rec domain.IdempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency record failed: %w", err)
	}
	return &rec, nil
}

func (r RedisCache) PutRecord(ctx context.Context, rec *domain.IdempotencyRecord) (*domain.IdempotencyRecord, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record failed: %w", err)
	}

	key := idempotencyKey(rec.Scope, rec.SubjectID, rec.Key)
	written, err := r.client.SetNX(ctx, key, data, r.ttls.Idempotency).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx failed: %w", err)
	}
	if written {
		return rec, nil
	}
	return r.GetRecord(ctx, rec.Scope, rec.SubjectID, rec.Key)
}

func cartKey(owner domain.Owner) string {
	return fmt.Sprintf("cart:%s", owner.Key())
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("checkout:session:%s", sessionID)
}

func idempotencyKey(scope domain.IdempotencyScope, subjectID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s:%s", scope, subjectID, key)
}
