package discount

import "context"

// Repository stores the single brand-wide discount percentage.
type Repository interface {
	// Get returns 0 when no discount is set.
	Get(ctx context.Context) (float64, error)
	Set(ctx context.Context, percentage float64) error
	Clear(ctx context.Context) error
}
