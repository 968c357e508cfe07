package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("product_repo")}
}

const productColumns = `
p.id, p.name, p.description, p.price, p.stock, p.image, p.category_id,
p.is_special_offer, p.offer_expires_at, p.created_at, p.updated_at,
c.id, c.name, c.slug, c.created_at`

const productFrom = `
FROM products p
JOIN categories c ON c.id = p.category_id`

func (r *postgresRepo) List(ctx context.Context, f ListFilter) (*Page, error) {
	if f.PerPage <= 0 {
		f.PerPage = DefaultPerPage
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	where := []string{"p.deleted_at IS NULL"}
	var args []any
	if f.CategorySlug != "" {
		args = append(args, f.CategorySlug)
		where = append(where, fmt.Sprintf("c.slug = $%d", len(args)))
	}
	if f.SpecialOffers {
		where = append(where, "p.is_special_offer")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		where = append(where, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*)"+productFrom+cond, args...).Scan(&total); err != nil {
		r.logger.Error("count products", zap.Error(err))
		return nil, err
	}

	order := " ORDER BY p.id ASC"
	if f.Latest {
		order = " ORDER BY p.created_at DESC, p.id DESC"
	}
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	q := "SELECT" + productColumns + productFrom + cond + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	items, err := r.query(ctx, q, args...)
	if err != nil {
		r.logger.Error("list products", zap.Error(err))
		return nil, err
	}

	lastPage := (total + f.PerPage - 1) / f.PerPage
	if lastPage < 1 {
		lastPage = 1
	}
	r.logger.Debug("listed products", zap.Int("page", f.Page), zap.Int("count", len(items)), zap.Int("total", total))
	return &Page{Items: items, CurrentPage: f.Page, LastPage: lastPage, PerPage: f.PerPage, Total: total}, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	q := "SELECT" + productColumns + productFrom + " WHERE p.id = $1 AND p.deleted_at IS NULL"
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Debug("product not found", zap.Int64("id", id))
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Related(ctx context.Context, p domain.Product, limit int) ([]domain.Product, error) {
	q := "SELECT" + productColumns + productFrom + `
 WHERE p.category_id = $1 AND p.id <> $2 AND p.deleted_at IS NULL
 ORDER BY random()
 LIMIT $3`
	return r.query(ctx, q, p.CategoryID, p.ID, limit)
}

func (r *postgresRepo) SpecialOffer(ctx context.Context, now time.Time) (*domain.Product, error) {
	q := "SELECT" + productColumns + productFrom + `
 WHERE p.is_special_offer AND p.deleted_at IS NULL
   AND (p.offer_expires_at IS NULL OR p.offer_expires_at > $1)
 ORDER BY random()
 LIMIT 1`
	return scanProduct(r.pool.QueryRow(ctx, q, now))
}

func (r *postgresRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (name, description, price, stock, image, category_id, is_special_offer, offer_expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, q, p.Name, p.Description, p.Price, p.Stock, p.Image, p.CategoryID, p.IsSpecialOffer, p.OfferExpiresAt).Scan(&id)
	if err != nil {
		r.logger.Error("create product", zap.String("name", p.Name), zap.Error(err))
		return nil, mapWriteErr(err)
	}
	r.logger.Info("created product", zap.Int64("id", id), zap.String("name", p.Name))
	return r.GetByID(ctx, id)
}

func (r *postgresRepo) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const q = `
UPDATE products
SET name = $2, description = $3, price = $4, stock = $5, image = $6, category_id = $7,
    is_special_offer = $8, offer_expires_at = $9, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, q, p.ID, p.Name, p.Description, p.Price, p.Stock, p.Image, p.CategoryID, p.IsSpecialOffer, p.OfferExpiresAt)
	if err != nil {
		r.logger.Error("update product", zap.Int64("id", p.ID), zap.Error(err))
		return nil, mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, p.ID)
}

func (r *postgresRepo) SoftDelete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE products SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		r.logger.Error("delete product", zap.Int64("id", id), zap.Error(err))
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.Info("deleted product", zap.Int64("id", id))
	return nil
}

// UpsertByName inserts p or refreshes the live product with the same name.
func (r *postgresRepo) UpsertByName(ctx context.Context, p domain.Product) (*domain.Product, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM products WHERE name = $1 AND deleted_at IS NULL ORDER BY id LIMIT 1`, p.Name).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return r.Create(ctx, p)
	case err != nil:
		return nil, err
	}
	p.ID = id
	return r.Update(ctx, p)
}

func (r *postgresRepo) query(ctx context.Context, q string, args ...any) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var c domain.Category
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.CategoryID,
		&p.IsSpecialOffer, &p.OfferExpiresAt, &p.CreatedAt, &p.UpdatedAt,
		&c.ID, &c.Name, &c.Slug, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Category = &c
	return &p, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return domain.Invalid("product.save", "category_id", "The selected category is invalid.")
		case "23514":
			return domain.Invalid("product.save", pgErr.ConstraintName, "violates a check constraint")
		}
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
