// Package reminder runs the periodic background sweep: due cart reminders,
// the once-daily broadcast trigger and pending-order expiry bookkeeping.
package reminder

import (
	"context"
	"log"
	"time"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/kv"
)

const (
	DefaultInterval  = time.Minute
	DefaultDailyTime = "10:00"

	// reminderCadence is the minute-of-hour step on which reminders are scanned.
	reminderCadence = 15
)

type reminderQueue interface {
	Due(ctx context.Context, now time.Time) ([]domain.CartReminder, error)
	Remove(ctx context.Context, r domain.CartReminder) error
}

type pendingIndex interface {
	ExpiredPending(ctx context.Context, now time.Time) ([]string, error)
}

// ReminderHook processes one due reminder. A returned error keeps the
// reminder queued for the next scan.
type ReminderHook func(ctx context.Context, r domain.CartReminder) error

// DailyHook fires once per day at the configured time.
type DailyHook func(ctx context.Context, now time.Time)

type Config struct {
	Interval time.Duration
	// DailyTime is HH:MM in Location.
	DailyTime string
	Location  *time.Location
}

type Sweeper struct {
	reminders reminderQueue
	pending   pendingIndex
	store     kv.Store
	logger    *log.Logger
	cfg       Config

	onReminder ReminderHook
	onDaily    DailyHook

	lastDaily string
}

// New builds a sweeper. store may be nil; when it implements kv.Purger its
// expired rows are purged on every tick.
func New(reminders reminderQueue, pending pendingIndex, store kv.Store, logger *log.Logger, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.DailyTime == "" {
		cfg.DailyTime = DefaultDailyTime
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Sweeper{
		reminders: reminders,
		pending:   pending,
		store:     store,
		logger:    logger,
		cfg:       cfg,
	}
	s.onReminder = s.logReminder
	s.onDaily = s.logDaily
	return s
}

// OnReminder replaces the reminder hook.
func (s *Sweeper) OnReminder(h ReminderHook) {
	if h != nil {
		s.onReminder = h
	}
}

// OnDaily replaces the daily broadcast hook.
func (s *Sweeper) OnDaily(h DailyHook) {
	if h != nil {
		s.onDaily = h
	}
}

// Run ticks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.logger.Printf("sweeper started (interval %s, daily at %s %s)", s.cfg.Interval, s.cfg.DailyTime, s.cfg.Location)
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("sweeper stopped")
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick performs one sweep cycle at now.
func (s *Sweeper) Tick(ctx context.Context, now time.Time) {
	local := now.In(s.cfg.Location)
	if local.Minute()%reminderCadence == 0 {
		s.processReminders(ctx, now)
	}

	if local.Format("15:04") == s.cfg.DailyTime {
		day := local.Format("2006-01-02")
		if s.lastDaily != day {
			s.lastDaily = day
			s.onDaily(ctx, now)
		}
	}

	s.expirePending(ctx, now)

	if p, ok := s.store.(kv.Purger); ok {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			s.logger.Printf("purge expired keys: %v", err)
		} else if n > 0 {
			s.logger.Printf("purged %d expired keys", n)
		}
	}
}

func (s *Sweeper) processReminders(ctx context.Context, now time.Time) {
	due, err := s.reminders.Due(ctx, now)
	if err != nil {
		s.logger.Printf("scan reminders: %v", err)
	}
	for _, r := range due {
		if err := s.onReminder(ctx, r); err != nil {
			s.logger.Printf("process reminder for order %s: %v", r.OrderID, err)
			continue
		}
		if err := s.reminders.Remove(ctx, r); err != nil {
			s.logger.Printf("remove reminder for order %s: %v", r.OrderID, err)
		}
	}
}

func (s *Sweeper) expirePending(ctx context.Context, now time.Time) {
	if s.pending == nil {
		return
	}
	ids, err := s.pending.ExpiredPending(ctx, now)
	if err != nil {
		s.logger.Printf("scan expired pending orders: %v", err)
		return
	}
	for _, id := range ids {
		s.logger.Printf("pending order %s expired without payment", id)
	}
}

func (s *Sweeper) logReminder(_ context.Context, r domain.CartReminder) error {
	s.logger.Printf("cart reminder due for %s (order %s, scheduled %s)", r.UserID, r.OrderID, r.ScheduledAt.Format(time.RFC3339))
	return nil
}

func (s *Sweeper) logDaily(_ context.Context, now time.Time) {
	s.logger.Printf("daily reminder trigger at %s", now.In(s.cfg.Location).Format(time.RFC3339))
}
