package category

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"storefront/internal/repository/category"
	productrepo "storefront/internal/repository/product"
)

type productLister interface {
	List(ctx context.Context, f productrepo.ListFilter) (*productrepo.Page, error)
}

type Service struct {
	repo     category.Repository
	products productLister
}

// New builds the category service. products is usually the product
// service so listed products carry image URLs.
func New(repo category.Repository, products productLister) *Service {
	return &Service{repo: repo, products: products}
}

func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	return s.repo.List(ctx)
}

// Products pages through the live products of the category with slug.
func (s *Service) Products(ctx context.Context, slug string, page, perPage int) (*domain.Category, *productrepo.Page, error) {
	c, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.NotFound("category.products", "category", slug)
		}
		return nil, nil, err
	}
	items, err := s.products.List(ctx, productrepo.ListFilter{CategorySlug: c.Slug, Page: page, PerPage: perPage})
	if err != nil {
		return nil, nil, err
	}
	return c, items, nil
}

func (s *Service) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	return s.repo.Upsert(ctx, c)
}
