package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"storefront/internal/domain"
	"storefront/internal/logging"
	categoryrepo "storefront/internal/repository/category"
	customerrepo "storefront/internal/repository/customer"
	productrepo "storefront/internal/repository/product"
)

// AdminEmail and AdminPassword identify the seeded back-office account.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "Password1234"
)

type productSeed struct {
	Name        string
	Description string
	Price       string
}

type categorySeed struct {
	Name     string
	Slug     string
	Products []productSeed
}

var catalog = []categorySeed{
	{Name: "Electronics", Slug: "electronics", Products: []productSeed{
		{"Quantum Pro 4K Smart TV", "65-inch 4K UHD Smart TV with Quantum Dot technology", "1299.99"},
		{"Nexus 5G Smartphone", "Flagship smartphone with 108MP camera", "899.99"},
		{"Blaze Wireless Earbuds", "True wireless earbuds with active noise cancellation", "149.99"},
		{"Mechanical Keyboard Pro", "RGB keyboard with Cherry MX switches", "129.99"},
	}},
	{Name: "Clothing", Slug: "clothing", Products: []productSeed{
		{"Premium Cashmere Sweater", "100% pure cashmere sweater", "149.99"},
		{"Slim Fit Dress Shirt", "Non-iron cotton dress shirt", "59.99"},
		{"Denim Jacket", "Vintage wash denim jacket", "89.99"},
		{"Winter Parka", "Waterproof parka with faux fur trim", "249.99"},
	}},
	{Name: "Home & Garden", Slug: "home-garden", Products: []productSeed{
		{"Smart Air Purifier", "HEPA air purifier with smart sensors", "299.99"},
		{"Ceramic Cookware Set", "10-piece non-toxic ceramic set", "199.99"},
		{"French Press Coffee Maker", "Stainless steel 34oz press", "29.99"},
		{"Indoor Herb Garden Kit", "Hydroponic system with LED grow lights", "39.99"},
	}},
	{Name: "Books", Slug: "books", Products: []productSeed{
		{"The Silent Echo Hardcover", "Bestselling mystery novel", "24.99"},
		{"Space Exploration Guide", "Complete visual encyclopedia", "39.99"},
	}},
	{Name: "Sports & Outdoors", Slug: "sports-outdoors", Products: []productSeed{
		{"Trail Running Backpack", "Lightweight 20L pack with hydration sleeve", "79.99"},
		{"Adjustable Dumbbell Set", "Space-saving dumbbells from 5 to 52.5 lbs", "299.99"},
	}},
}

// Apply inserts demo categories, products and an admin account. It is
// idempotent: rows are matched by slug, product name and email.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	logger = logging.OrNop(logger).Named("seed")
	categories := categoryrepo.NewPostgres(pool)
	products := productrepo.NewPostgres(pool, logger)
	customers := customerrepo.NewPostgres(pool, logger)

	now := time.Now().UTC()
	n := 0
	for _, cs := range catalog {
		c, err := categories.Upsert(ctx, domain.Category{Name: cs.Name, Slug: cs.Slug})
		if err != nil {
			return fmt.Errorf("upsert category %s: %w", cs.Slug, err)
		}
		for i, ps := range cs.Products {
			n++
			p := domain.Product{
				Name:        ps.Name,
				Description: ps.Description,
				Price:       decimal.RequireFromString(ps.Price),
				Stock:       10 + (n*7)%40,
				Image:       fmt.Sprintf("products/%s-%d.jpg", cs.Slug, i+1),
				CategoryID:  c.ID,
			}
			// Every third product runs as a special offer; half of those expire.
			if n%3 == 0 {
				p.IsSpecialOffer = true
				if n%2 == 0 {
					expires := now.AddDate(0, 0, 7+n)
					p.OfferExpiresAt = &expires
				}
			}
			if _, err := products.UpsertByName(ctx, p); err != nil {
				return fmt.Errorf("upsert product %s: %w", ps.Name, err)
			}
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	_, err = customers.Create(ctx, domain.Customer{Email: AdminEmail, PasswordHash: string(hash), FirstName: "Admin", LastName: "Admin"})
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("create admin: %w", err)
	}

	logger.Info("seeded catalog", zap.Int("categories", len(catalog)), zap.Int("products", n))
	return nil
}
