package discount

import (
	"context"
	"errors"
	"strconv"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/kv"
)

type storeRepo struct {
	store kv.Store
	keys  kv.Keys
}

func NewStore(store kv.Store, keys kv.Keys) Repository {
	return &storeRepo{store: store, keys: keys}
}

func (r *storeRepo) Get(ctx context.Context) (float64, error) {
	data, err := r.store.Get(ctx, r.keys.Discount())
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.StoreErr("get discount", err)
	}
	pct, err := strconv.ParseFloat(string(data), 64)
	if err != nil || pct < 0 || pct > 100 {
		return 0, nil
	}
	return pct, nil
}

func (r *storeRepo) Set(ctx context.Context, percentage float64) error {
	if err := r.store.Set(ctx, r.keys.Discount(), []byte(strconv.FormatFloat(percentage, 'f', -1, 64)), 0); err != nil {
		return domain.StoreErr("set discount", err)
	}
	return nil
}

func (r *storeRepo) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, r.keys.Discount()); err != nil {
		return domain.StoreErr("clear discount", err)
	}
	return nil
}
