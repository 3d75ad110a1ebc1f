package cart

import (
	"context"
	"time"

	"chatcommerce/internal/domain"
)

// TTL is the cart inactivity window; every mutation resets it.
const TTL = 24 * time.Hour

type Repository interface {
	// Get returns domain.ErrNotFound when the customer has no cart.
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	// Update atomically applies fn to the current cart (empty when missing)
	// and stores the result.
	Update(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error)
	Delete(ctx context.Context, userID string) error
}
