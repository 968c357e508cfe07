package customer

import (
	"context"

	"storefront/internal/domain"
)

// DefaultPerPage is the admin customer listing page size.
const DefaultPerPage = 20

// ListFilter narrows the admin customer listing. Search matches first
// name, last name or email.
type ListFilter struct {
	Search  string
	Page    int
	PerPage int
}

type Page struct {
	Items       []domain.Customer `json:"data"`
	CurrentPage int               `json:"current_page"`
	LastPage    int               `json:"last_page"`
	PerPage     int               `json:"per_page"`
	Total       int               `json:"total"`
}

// Repository persists and fetches customers.
type Repository interface {
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	List(ctx context.Context, f ListFilter) (*Page, error)
	Delete(ctx context.Context, id string) error
}
