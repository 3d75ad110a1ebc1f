package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/kv"
)

type storeRepo struct {
	store kv.Store
	keys  kv.Keys
	now   func() time.Time
}

func NewStore(store kv.Store, keys kv.Keys) Repository {
	return &storeRepo{store: store, keys: keys, now: time.Now}
}

func (r *storeRepo) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.store.Get(ctx, r.keys.Cart(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.StoreErr("get cart", err)
	}
	return decode(data), nil
}

func (r *storeRepo) Update(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	var (
		result *domain.Cart
		fnErr  error
	)
	err := r.store.Update(ctx, r.keys.Cart(userID), TTL, func(current []byte) ([]byte, error) {
		c := decode(current)
		if fnErr = fn(c); fnErr != nil {
			return nil, fnErr
		}
		c.Recalculate()
		c.UpdatedAt = r.now().UTC()
		result = c
		return json.Marshal(c)
	})
	if err != nil {
		if fnErr != nil && errors.Is(err, fnErr) {
			return nil, fnErr
		}
		return nil, domain.StoreErr("update cart", err)
	}
	return result, nil
}

func (r *storeRepo) Delete(ctx context.Context, userID string) error {
	if err := r.store.Delete(ctx, r.keys.Cart(userID)); err != nil {
		return domain.StoreErr("delete cart", err)
	}
	return nil
}

// decode never fails: a missing or corrupt record reads as an empty cart.
func decode(data []byte) *domain.Cart {
	c := &domain.Cart{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, c); err != nil {
			c = &domain.Cart{}
		}
	}
	c.Normalize()
	return c
}
