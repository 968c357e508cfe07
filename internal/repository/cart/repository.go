package cart

import (
	"context"

	"storefront/internal/domain"
)

// Repository stores persistent customer carts. Lines are always returned
// joined to the live product row.
type Repository interface {
	GetOrCreate(ctx context.Context, customerID string) (*domain.Cart, error)
	Lines(ctx context.Context, cartID int64) ([]domain.CartLine, error)
	Line(ctx context.Context, cartID int64, lineID string) (*domain.CartLine, error)
	LineByProduct(ctx context.Context, cartID, productID int64) (*domain.CartLine, error)
	InsertLine(ctx context.Context, cartID, productID int64, quantity int) error
	SetQuantity(ctx context.Context, cartID int64, lineID string, quantity int) error
	DeleteLine(ctx context.Context, cartID int64, lineID string) error
	Clear(ctx context.Context, cartID int64) error
}
