package state

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
}

func NewStore(store kv.Store, keys kv.Keys) Repository {
	return &storeRepo{store: store, keys: keys}
}

func (r *storeRepo) Get(ctx context.Context, userID string) (*domain.ConversationState, error) {
	data, err := r.store.Get(ctx, r.keys.State(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.StoreErr("get state", err)
	}
	var st domain.ConversationState
	if err := json.Unmarshal(data, &st); err != nil {
		// Undecodable state is treated like an unknown step.
		return &domain.ConversationState{}, nil
	}
	if !st.Step.Valid() {
		st.Step = ""
	}
	return &st, nil
}

func (r *storeRepo) Save(ctx context.Context, userID string, st domain.ConversationState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.keys.State(userID), data, TTL); err != nil {
		return domain.StoreErr("save state", err)
	}
	return nil
}

func (r *storeRepo) Clear(ctx context.Context, userID string) error {
	if err := r.store.Delete(ctx, r.keys.State(userID)); err != nil {
		return domain.StoreErr("clear state", err)
	}
	return nil
}
