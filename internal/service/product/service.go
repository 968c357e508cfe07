package product

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
	productrepo "storefront/internal/repository/product"
	"storefront/internal/validation"
)

// RelatedLimit is how many related products a product page shows.
const RelatedLimit = 4

type categoryLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
}

type Service struct {
	repo         productrepo.Repository
	categories   categoryLookup
	validator    *validation.Validator
	imageBaseURL string
	logger       *zap.Logger
	now          func() time.Time
}

func New(repo productrepo.Repository, categories categoryLookup, imageBaseURL string, logger *zap.Logger) *Service {
	return &Service{
		repo:         repo,
		categories:   categories,
		validator:    validation.New(),
		imageBaseURL: imageBaseURL,
		logger:       logging.OrNop(logger).Named("product"),
		now:          time.Now,
	}
}

func (s *Service) List(ctx context.Context, f productrepo.ListFilter) (*productrepo.Page, error) {
	page, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	s.decorateAll(page.Items)
	return page, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("product.get", id, err)
	}
	s.decorate(p)
	return p, nil
}

// Related returns up to RelatedLimit products from the same category.
func (s *Service) Related(ctx context.Context, p domain.Product) ([]domain.Product, error) {
	items, err := s.repo.Related(ctx, p, RelatedLimit)
	if err != nil {
		return nil, err
	}
	s.decorateAll(items)
	return items, nil
}

// SpecialOffer returns one active special offer, or nil when none is running.
func (s *Service) SpecialOffer(ctx context.Context) (*domain.Product, error) {
	p, err := s.repo.SpecialOffer(ctx, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s.decorate(p)
	return p, nil
}

// ProductInput is the admin payload for creating a product.
type ProductInput struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock" validate:"min=0"`
	Image          string          `json:"image" validate:"max=255"`
	CategoryID     int64           `json:"category_id" validate:"required"`
	IsSpecialOffer bool            `json:"is_special_offer"`
	OfferExpiresAt *time.Time      `json:"offer_expires_at"`
}

// ProductPatch updates only the fields that are set.
type ProductPatch struct {
	Name           *string          `json:"name" validate:"omitempty,max=255"`
	Description    *string          `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	Stock          *int             `json:"stock" validate:"omitempty,min=0"`
	Image          *string          `json:"image" validate:"omitempty,max=255"`
	CategoryID     *int64           `json:"category_id"`
	IsSpecialOffer *bool            `json:"is_special_offer"`
	OfferExpiresAt *time.Time       `json:"offer_expires_at"`
}

func (s *Service) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	const op = "product.create"
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(op, in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, domain.Invalid(op, "price", "must be at least 0")
	}
	if err := s.checkCategory(ctx, op, in.CategoryID); err != nil {
		return nil, err
	}
	p, err := s.repo.Create(ctx, domain.Product{
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		Stock:          in.Stock,
		Image:          in.Image,
		CategoryID:     in.CategoryID,
		IsSpecialOffer: in.IsSpecialOffer,
		OfferExpiresAt: in.OfferExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	s.decorate(p)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error) {
	const op = "product.update"
	if err := s.validator.Struct(op, patch); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(op, id, err)
	}

	next := *current
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.Invalid(op, "name", "is required")
		}
		next.Name = name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, domain.Invalid(op, "price", "must be at least 0")
		}
		next.Price = *patch.Price
	}
	if patch.Stock != nil {
		next.Stock = *patch.Stock
	}
	if patch.Image != nil {
		next.Image = *patch.Image
	}
	if patch.CategoryID != nil && *patch.CategoryID != current.CategoryID {
		if err := s.checkCategory(ctx, op, *patch.CategoryID); err != nil {
			return nil, err
		}
		next.CategoryID = *patch.CategoryID
	}
	if patch.IsSpecialOffer != nil {
		next.IsSpecialOffer = *patch.IsSpecialOffer
	}
	if patch.OfferExpiresAt != nil {
		next.OfferExpiresAt = patch.OfferExpiresAt
	}

	p, err := s.repo.Update(ctx, next)
	if err != nil {
		return nil, notFound(op, id, err)
	}
	s.decorate(p)
	return p, nil
}

// Delete soft-deletes a product. Past order items keep referencing it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return notFound("product.delete", id, err)
	}
	return nil
}

func (s *Service) checkCategory(ctx context.Context, op string, id int64) error {
	if _, err := s.categories.GetByID(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid(op, "category_id", "is invalid")
		}
		return err
	}
	return nil
}

func (s *Service) decorate(p *domain.Product) {
	p.ImageURL = domain.ImageURL(s.imageBaseURL, p.Image)
}

func (s *Service) decorateAll(items []domain.Product) {
	for i := range items {
		s.decorate(&items[i])
	}
}

func notFound(op string, id int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(op, "product", id)
	}
	return err
}
