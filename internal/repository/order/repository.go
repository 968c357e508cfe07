package order

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// Tx is the set of writes that make up one checkout. Every call made
// through a Tx commits or rolls back together.
type Tx interface {
	NextOrderNumber(ctx context.Context, day time.Time) (string, error)
	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertItem(ctx context.Context, item *domain.OrderItem) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	ClearCartLines(ctx context.Context, customerID string, lineIDs []string) error
}

type Repository interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, id int64) (*domain.Order, error)
	ListForCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
}
