package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

func (r *storeRepo) Create(ctx context.Context, o *domain.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	ok, err := r.store.SetNX(ctx, r.keys.Order(o.ID), data, ActiveTTL)
	if err != nil {
		return domain.StoreErr("create order", err)
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return r.Reindex(ctx, o)
}

// Reindex adds o to the active and branch indexes. Set adds are idempotent,
// so it is safe to repeat after a partially failed Create.
func (r *storeRepo) Reindex(ctx context.Context, o *domain.Order) error {
	if err := r.store.SAdd(ctx, r.keys.ActiveOrders(), o.ID); err != nil {
		return domain.StoreErr("index order", err)
	}
	if err := r.store.SAdd(ctx, r.keys.BranchOrders(o.Branch), o.ID); err != nil {
		return domain.StoreErr("index order by branch", err)
	}
	return nil
}

func (r *storeRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.load(ctx, r.keys.Order(id), "get order")
}

func (r *storeRepo) GetArchived(ctx context.Context, id string) (*domain.Order, error) {
	return r.load(ctx, r.keys.ArchivedOrder(id), "get archived order")
}

func (r *storeRepo) load(ctx context.Context, key, op string) (*domain.Order, error) {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.StoreErr(op, err)
	}
	var o domain.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, domain.StoreErr(op, fmt.Errorf("decode %s: %w", key, err))
	}
	return &o, nil
}

func (r *storeRepo) Update(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	var (
		result *domain.Order
		fnErr  error
	)
	err := r.store.Update(ctx, r.keys.Order(id), kv.KeepTTL, func(current []byte) ([]byte, error) {
		if current == nil {
			fnErr = domain.ErrNotFound
			return nil, fnErr
		}
		var o domain.Order
		if err := json.Unmarshal(current, &o); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", id, err)
		}
		if fnErr = fn(&o); fnErr != nil {
			return nil, fnErr
		}
		result = &o
		return json.Marshal(&o)
	})
	if err != nil {
		if fnErr != nil && errors.Is(err, fnErr) {
			return nil, fnErr
		}
		return nil, domain.StoreErr("update order", err)
	}
	return result, nil
}

func (r *storeRepo) Archive(ctx context.Context, o *domain.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.keys.ArchivedOrder(o.ID), data, 0); err != nil {
		return domain.StoreErr("archive order", err)
	}
	if err := r.store.SAdd(ctx, r.keys.ArchivedOrders(), o.ID); err != nil {
		return domain.StoreErr("index archived order", err)
	}
	if err := r.store.Delete(ctx, r.keys.Order(o.ID)); err != nil {
		return domain.StoreErr("remove active order", err)
	}
	if err := r.store.SRem(ctx, r.keys.ActiveOrders(), o.ID); err != nil {
		return domain.StoreErr("unindex order", err)
	}
	if err := r.store.SRem(ctx, r.keys.BranchOrders(o.Branch), o.ID); err != nil {
		return domain.StoreErr("unindex order by branch", err)
	}
	return nil
}

func (r *storeRepo) ListActive(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, r.keys.ActiveOrders())
}

func (r *storeRepo) ListByBranch(ctx context.Context, branch string) ([]domain.Order, error) {
	return r.list(ctx, r.keys.BranchOrders(branch))
}

// list resolves an index, dropping ids whose order has expired.
func (r *storeRepo) list(ctx context.Context, index string) ([]domain.Order, error) {
	ids, err := r.store.SMembers(ctx, index)
	if err != nil {
		return nil, domain.StoreErr("list orders", err)
	}
	out := make([]domain.Order, 0, len(ids))
	var stale []string
	for _, id := range ids {
		o, err := r.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if len(stale) > 0 {
		if err := r.store.SRem(ctx, index, stale...); err != nil {
			return out, domain.StoreErr("prune order index", err)
		}
	}
	return out, nil
}

func (r *storeRepo) CreatePending(ctx context.Context, p *domain.PendingOrder) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ok, err := r.store.SetNX(ctx, r.keys.PendingOrder(p.ID), data, PendingTTL)
	if err != nil {
		return domain.StoreErr("create pending order", err)
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	expiry := p.CreatedAt.Add(PendingTTL)
	if err := r.store.ZAdd(ctx, r.keys.PendingOrders(), p.ID, float64(expiry.Unix())); err != nil {
		return domain.StoreErr("index pending order", err)
	}
	return nil
}

func (r *storeRepo) GetPending(ctx context.Context, id string) (*domain.PendingOrder, error) {
	data, err := r.store.Get(ctx, r.keys.PendingOrder(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.StoreErr("get pending order", err)
	}
	var p domain.PendingOrder
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, domain.StoreErr("get pending order", err)
	}
	p.Cart.Normalize()
	return &p, nil
}

func (r *storeRepo) DeletePending(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.keys.PendingOrder(id)); err != nil {
		return domain.StoreErr("delete pending order", err)
	}
	if err := r.store.ZRem(ctx, r.keys.PendingOrders(), id); err != nil {
		return domain.StoreErr("unindex pending order", err)
	}
	return nil
}

func (r *storeRepo) ExpiredPending(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := r.store.ZRangeByScore(ctx, r.keys.PendingOrders(), float64(now.Unix()))
	if err != nil {
		return nil, domain.StoreErr("scan pending orders", err)
	}
	var expired []string
	for _, id := range ids {
		_, err := r.store.Get(ctx, r.keys.PendingOrder(id))
		if err == nil {
			// The record outlived its index score; leave it for the next sweep.
			continue
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return expired, domain.StoreErr("check pending order", err)
		}
		expired = append(expired, id)
	}
	if len(expired) > 0 {
		if err := r.store.ZRem(ctx, r.keys.PendingOrders(), expired...); err != nil {
			return expired, domain.StoreErr("unindex pending orders", err)
		}
	}
	return expired, nil
}
