package product

import (
	"context"
	"time"

	"storefront/internal/domain"
)

const (
	// DefaultPerPage is the catalog page size.
	DefaultPerPage = 12
	// AdminPerPage is the back-office listing page size.
	AdminPerPage = 10
)

type ListFilter struct {
	CategorySlug  string
	SpecialOffers bool
	Search        string
	Page          int
	PerPage       int
	// Latest orders newest products first instead of by id.
	Latest bool
}

type Page struct {
	Items       []domain.Product `json:"data"`
	CurrentPage int              `json:"current_page"`
	LastPage    int              `json:"last_page"`
	PerPage     int              `json:"per_page"`
	Total       int              `json:"total"`
}

// Repository reads and writes catalog products. Soft-deleted products are
// invisible to every read.
type Repository interface {
	List(ctx context.Context, f ListFilter) (*Page, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Related(ctx context.Context, p domain.Product, limit int) ([]domain.Product, error)
	SpecialOffer(ctx context.Context, now time.Time) (*domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, p domain.Product) (*domain.Product, error)
	SoftDelete(ctx context.Context, id int64) error
	UpsertByName(ctx context.Context, p domain.Product) (*domain.Product, error)
}
