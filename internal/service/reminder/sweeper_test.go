package reminder

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/kv"
	orderrepo "chatcommerce/internal/repository/order"
	reminderrepo "chatcommerce/internal/repository/reminder"
)

type purgingStore struct {
	kv.Store
	purges int
}

func (p *purgingStore) PurgeExpired(context.Context) (int64, error) {
	p.purges++
	return 0, nil
}

type harness struct {
	sweeper   *Sweeper
	reminders reminderrepo.Repository
	orders    orderrepo.Repository
	store     *purgingStore
	logs      *bytes.Buffer
	clock     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	h := &harness{logs: &bytes.Buffer{}, clock: time.Date(2025, 8, 8, 4, 0, 0, 0, time.UTC)}
	h.store = &purgingStore{Store: kv.NewMemoryWithClock(func() time.Time { return h.clock })}
	keys := kv.Keys{Brand: "test"}
	h.reminders = reminderrepo.NewStore(h.store, keys)
	h.orders = orderrepo.NewStore(h.store, keys)
	h.sweeper = New(h.reminders, h.orders, h.store, log.New(h.logs, "", 0), Config{Location: kolkata})
	return h
}

func TestTickProcessesDueRemindersOnQuarterHour(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	due := domain.CartReminder{UserID: "u1", OrderID: "ORD1", ScheduledAt: h.clock.Add(-time.Minute)}
	later := domain.CartReminder{UserID: "u2", OrderID: "ORD2", ScheduledAt: h.clock.Add(time.Hour)}
	_ = h.reminders.Schedule(ctx, due)
	_ = h.reminders.Schedule(ctx, later)

	var processed []string
	h.sweeper.OnReminder(func(_ context.Context, r domain.CartReminder) error {
		processed = append(processed, r.OrderID)
		return nil
	})

	// 09:37 IST is not on the reminder cadence.
	h.sweeper.Tick(ctx, time.Date(2025, 8, 8, 4, 7, 0, 0, time.UTC))
	if len(processed) != 0 {
		t.Fatalf("expected no reminders processed off cadence, got %v", processed)
	}

	// 09:45 IST.
	h.sweeper.Tick(ctx, time.Date(2025, 8, 8, 4, 15, 0, 0, time.UTC))
	if len(processed) != 1 || processed[0] != "ORD1" {
		t.Fatalf("expected ORD1 processed, got %v", processed)
	}

	h.sweeper.Tick(ctx, time.Date(2025, 8, 8, 4, 30, 0, 0, time.UTC))
	if len(processed) != 1 {
		t.Fatalf("expected processed reminder removed, got %v", processed)
	}
	remaining, _ := h.reminders.Due(ctx, h.clock.Add(2*time.Hour))
	if len(remaining) != 1 || remaining[0].OrderID != "ORD2" {
		t.Fatalf("expected only ORD2 queued, got %+v", remaining)
	}
}

func TestTickKeepsReminderWhenHookFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.reminders.Schedule(ctx, domain.CartReminder{UserID: "u1", OrderID: "ORD1", ScheduledAt: h.clock})

	h.sweeper.OnReminder(func(context.Context, domain.CartReminder) error { return errors.New("send failed") })
	h.sweeper.Tick(ctx, time.Date(2025, 8, 8, 4, 15, 0, 0, time.UTC))

	remaining, _ := h.reminders.Due(ctx, h.clock.Add(time.Hour))
	if len(remaining) != 1 {
		t.Fatalf("expected reminder kept for retry, got %+v", remaining)
	}
	if !strings.Contains(h.logs.String(), "send failed") {
		t.Fatalf("expected hook failure logged, got %q", h.logs.String())
	}
}

func TestTickFiresDailyHookOncePerDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	fired := 0
	h.sweeper.OnDaily(func(context.Context, time.Time) { fired++ })

	// 10:00 IST is 04:30 UTC.
	at := time.Date(2025, 8, 8, 4, 30, 0, 0, time.UTC)
	h.sweeper.Tick(ctx, at)
	h.sweeper.Tick(ctx, at.Add(20*time.Second))
	h.sweeper.Tick(ctx, at.Add(time.Minute))
	if fired != 1 {
		t.Fatalf("expected daily hook once, got %d", fired)
	}

	h.sweeper.Tick(ctx, at.Add(24*time.Hour))
	if fired != 2 {
		t.Fatalf("expected daily hook on the next day, got %d", fired)
	}
}

func TestTickLogsExpiredPendingOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := &domain.PendingOrder{ID: "ORD20250808AAAA", UserID: "u1", CreatedAt: h.clock}
	if err := h.orders.CreatePending(ctx, p); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	h.sweeper.Tick(ctx, h.clock.Add(time.Minute))
	if strings.Contains(h.logs.String(), p.ID) {
		t.Fatalf("expected live pending order left alone, got %q", h.logs.String())
	}

	h.clock = h.clock.Add(orderrepo.PendingTTL + time.Minute)
	h.sweeper.Tick(ctx, h.clock)
	if !strings.Contains(h.logs.String(), "pending order "+p.ID+" expired") {
		t.Fatalf("expected expiry logged, got %q", h.logs.String())
	}

	h.logs.Reset()
	h.sweeper.Tick(ctx, h.clock.Add(time.Minute))
	if strings.Contains(h.logs.String(), p.ID) {
		t.Fatalf("expected expired pending order de-indexed, got %q", h.logs.String())
	}
}

func TestTickPurgesWhenStoreSupportsIt(t *testing.T) {
	h := newHarness(t)
	h.sweeper.Tick(context.Background(), h.clock)
	h.sweeper.Tick(context.Background(), h.clock.Add(time.Minute))
	if h.store.purges != 2 {
		t.Fatalf("expected purge on every tick, got %d", h.store.purges)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.sweeper.cfg.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.sweeper.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return after cancel")
	}
}
