package reminder

import (
	"context"
	"time"

	"chatcommerce/internal/domain"
)

type Repository interface {
	Schedule(ctx context.Context, r domain.CartReminder) error
	// Due returns reminders scheduled at or before now, earliest first.
	Due(ctx context.Context, now time.Time) ([]domain.CartReminder, error)
	Remove(ctx context.Context, r domain.CartReminder) error
}
