package reminder

import (
	"context"
	"testing"
	"time"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/kv"
)

func TestScheduleDueRemove(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	repo := NewStore(mem, kv.Keys{Brand: "test"})
	base := time.Date(2025, 8, 8, 10, 0, 0, 0, time.UTC)

	early := domain.CartReminder{UserID: "u1", OrderID: "ORD1", ScheduledAt: base}
	late := domain.CartReminder{UserID: "u2", OrderID: "ORD2", ScheduledAt: base.Add(2 * time.Hour)}
	for _, r := range []domain.CartReminder{late, early} {
		if err := repo.Schedule(ctx, r); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	due, err := repo.Due(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0] != early {
		t.Fatalf("expected only early reminder, got %+v", due)
	}

	if err := repo.Remove(ctx, due[0]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	due, _ = repo.Due(ctx, base.Add(3*time.Hour))
	if len(due) != 1 || due[0].OrderID != "ORD2" {
		t.Fatalf("expected late reminder remaining, got %+v", due)
	}
}

func TestDueDropsCorruptMembers(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	keys := kv.Keys{Brand: "test"}
	repo := NewStore(mem, keys)

	_ = mem.ZAdd(ctx, keys.Reminders(), "garbage", 1)
	due, err := repo.Due(ctx, time.Now())
	if err != nil || len(due) != 0 {
		t.Fatalf("expected no reminders, got %+v (%v)", due, err)
	}
	left, _ := mem.ZRangeByScore(ctx, keys.Reminders(), 10)
	if len(left) != 0 {
		t.Fatalf("expected corrupt member dropped, got %v", left)
	}
}
