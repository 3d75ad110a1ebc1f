package state

import (
	"context"
	"time"

	"chatcommerce/internal/domain"
)

// TTL is the idle window after which a conversation resets.
const TTL = time.Hour

type Repository interface {
	// Get returns domain.ErrNotFound when the customer has no live state.
	Get(ctx context.Context, userID string) (*domain.ConversationState, error)
	Save(ctx context.Context, userID string, st domain.ConversationState) error
	Clear(ctx context.Context, userID string) error
}
