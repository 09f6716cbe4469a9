package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

// RedisCartStore хранит документ корзины под ключом cart:<id>.
// Запись идёт через WATCH/MULTI, поэтому конкурентная запись даёт ErrVersionConflict, а не потерю позиций.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

var _ CartStore = (*RedisCartStore)(nil)

func (r *RedisCartStore) Load(ctx context.Context, cartID string) (CartState, error) {
	data, err := r.client.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return emptyCartState(), nil
	}
	if err != nil {
		return emptyCartState(), fmt.Errorf("redis get failed: %w", err)
	}
	return decodeCartState(data)
}

func (r *RedisCartStore) Save(ctx context.Context, cartID string, expectedVersion int64, items []domain.CartLineItem) (CartState, error) {
	key := cartKey(cartID)
	var saved CartState

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get failed: %w", err)
		}
		if storedVersion(current) != expectedVersion {
			return ErrVersionConflict
		}

		payload, err := encodeCartState(CartState{Version: expectedVersion + 1, Items: items})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		saved, err = decodeCartState(payload)
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return CartState{}, ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return CartState{}, err
		}
		return CartState{}, fmt.Errorf("redis set failed: %w", err)
	}
	return saved, nil
}

func cartKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}
