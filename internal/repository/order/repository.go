package order

import (
	"context"
	"time"

	"chatcommerce/internal/domain"
)

const (
	// ActiveTTL bounds how long an order stays in the active partition.
	ActiveTTL = 7 * 24 * time.Hour
	// PendingTTL bounds the window for an online payment to complete.
	PendingTTL = time.Hour
)

type Repository interface {
	// Create stores a new active order and its secondary indexes. It returns
	// domain.ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, o *domain.Order) error
	// Reindex restores the secondary indexes of an existing active order.
	Reindex(ctx context.Context, o *domain.Order) error
	// Get looks up an active order by id, returning domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Order, error)
	GetArchived(ctx context.Context, id string) (*domain.Order, error)
	// Update atomically applies fn to an active order, keeping its expiry.
	Update(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error)
	// Archive moves an order out of the active partition.
	Archive(ctx context.Context, o *domain.Order) error
	ListActive(ctx context.Context) ([]domain.Order, error)
	ListByBranch(ctx context.Context, branch string) ([]domain.Order, error)

	// CreatePending returns domain.ErrAlreadyExists when the id is taken.
	CreatePending(ctx context.Context, p *domain.PendingOrder) error
	GetPending(ctx context.Context, id string) (*domain.PendingOrder, error)
	DeletePending(ctx context.Context, id string) error
	// ExpiredPending returns ids of pending orders that lapsed before now
	// without being confirmed, and forgets them.
	ExpiredPending(ctx context.Context, now time.Time) ([]string, error)
}
