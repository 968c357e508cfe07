package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"storefront/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

// GetOrCreate returns the customer's cart, creating it on first use. The
// unique customer_id constraint keeps it at one cart per customer.
func (r *postgresRepo) GetOrCreate(ctx context.Context, customerID string) (*domain.Cart, error) {
	const q = `
INSERT INTO carts (customer_id)
VALUES ($1)
ON CONFLICT (customer_id) DO UPDATE SET customer_id = EXCLUDED.customer_id
RETURNING id, customer_id::text, created_at, updated_at
`
	var c domain.Cart
	if err := r.pool.QueryRow(ctx, q, customerID).Scan(&c.ID, &c.CustomerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

const lineSelect = `
SELECT ci.id::text, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
       p.id, p.name, p.description, p.price, p.stock, p.image, p.category_id,
       p.is_special_offer, p.offer_expires_at, p.created_at, p.updated_at
FROM cart_items ci
JOIN products p ON p.id = ci.product_id AND p.deleted_at IS NULL
`

func (r *postgresRepo) Lines(ctx context.Context, cartID int64) ([]domain.CartLine, error) {
	rows, err := r.pool.Query(ctx, lineSelect+`WHERE ci.cart_id = $1 ORDER BY ci.created_at ASC, ci.id ASC`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.CartLine{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) Line(ctx context.Context, cartID int64, lineID string) (*domain.CartLine, error) {
	if _, err := uuid.Parse(lineID); err != nil {
		return nil, domain.ErrNotFound
	}
	return scanLine(r.pool.QueryRow(ctx, lineSelect+`WHERE ci.cart_id = $1 AND ci.id = $2`, cartID, lineID))
}

func (r *postgresRepo) LineByProduct(ctx context.Context, cartID, productID int64) (*domain.CartLine, error) {
	return scanLine(r.pool.QueryRow(ctx, lineSelect+`WHERE ci.cart_id = $1 AND ci.product_id = $2`, cartID, productID))
}

func (r *postgresRepo) InsertLine(ctx context.Context, cartID, productID int64, quantity int) error {
	const q = `
INSERT INTO cart_items (cart_id, product_id, quantity)
VALUES ($1, $2, $3)
`
	if _, err := r.pool.Exec(ctx, q, cartID, productID, quantity); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return r.touch(ctx, cartID)
}

func (r *postgresRepo) SetQuantity(ctx context.Context, cartID int64, lineID string, quantity int) error {
	if _, err := uuid.Parse(lineID); err != nil {
		return domain.ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `
UPDATE cart_items
SET quantity = $3, updated_at = now()
WHERE cart_id = $1 AND id = $2
`, cartID, lineID, quantity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return r.touch(ctx, cartID)
}

// DeleteLine removes a line. Deleting a line that does not exist is not an error.
func (r *postgresRepo) DeleteLine(ctx context.Context, cartID int64, lineID string) error {
	if _, err := uuid.Parse(lineID); err != nil {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, lineID); err != nil {
		return err
	}
	return r.touch(ctx, cartID)
}

func (r *postgresRepo) Clear(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	return r.touch(ctx, cartID)
}

func (r *postgresRepo) touch(ctx context.Context, cartID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	return err
}

func scanLine(row pgx.Row) (*domain.CartLine, error) {
	var l domain.CartLine
	p := &l.Product
	err := row.Scan(
		&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.CategoryID,
		&p.IsSpecialOffer, &p.OfferExpiresAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}
