package reminder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
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

func (r *storeRepo) Schedule(ctx context.Context, rem domain.CartReminder) error {
	if err := r.store.ZAdd(ctx, r.keys.Reminders(), member(rem), float64(rem.ScheduledAt.Unix())); err != nil {
		return domain.StoreErr("schedule reminder", err)
	}
	return nil
}

func (r *storeRepo) Due(ctx context.Context, now time.Time) ([]domain.CartReminder, error) {
	members, err := r.store.ZRangeByScore(ctx, r.keys.Reminders(), float64(now.Unix()))
	if err != nil {
		return nil, domain.StoreErr("scan reminders", err)
	}
	out := make([]domain.CartReminder, 0, len(members))
	var corrupt []string
	for _, m := range members {
		rem, err := parseMember(m)
		if err != nil {
			corrupt = append(corrupt, m)
			continue
		}
		out = append(out, rem)
	}
	if len(corrupt) > 0 {
		if err := r.store.ZRem(ctx, r.keys.Reminders(), corrupt...); err != nil {
			return out, domain.StoreErr("drop corrupt reminders", err)
		}
	}
	return out, nil
}

func (r *storeRepo) Remove(ctx context.Context, rem domain.CartReminder) error {
	if err := r.store.ZRem(ctx, r.keys.Reminders(), member(rem)); err != nil {
		return domain.StoreErr("remove reminder", err)
	}
	return nil
}

// member encodes a reminder as orderID|userID|unixSeconds.
func member(rem domain.CartReminder) string {
	return fmt.Sprintf("%s|%s|%d", rem.OrderID, rem.UserID, rem.ScheduledAt.Unix())
}

func parseMember(m string) (domain.CartReminder, error) {
	parts := strings.Split(m, "|")
	if len(parts) != 3 {
		return domain.CartReminder{}, fmt.Errorf("malformed reminder %q", m)
	}
	sec, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return domain.CartReminder{}, fmt.Errorf("malformed reminder %q: %w", m, err)
	}
	return domain.CartReminder{
		OrderID:     parts[0],
		UserID:      parts[1],
		ScheduledAt: time.Unix(sec, 0).UTC(),
	}, nil
}
