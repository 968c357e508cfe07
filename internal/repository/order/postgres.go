package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("order_repo")}
}

func (r *postgresRepo) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

// NextOrderNumber bumps the per-day counter. The counter is seeded from the
// highest number already issued for the day, and the row lock it takes
// serializes concurrent checkouts until commit.
func (t *pgTx) NextOrderNumber(ctx context.Context, day time.Time) (string, error) {
	const q = `
WITH issued AS (
    SELECT COALESCE(MAX(substring(order_number FROM 14)::int), 0) AS max_seq
    FROM orders
    WHERE order_number LIKE $2 || '%'
      AND substring(order_number FROM 14) ~ '^[0-9]+$'
)
INSERT INTO order_sequences (day, last_value)
SELECT $1::date, max_seq + 1 FROM issued
ON CONFLICT (day) DO UPDATE
SET last_value = GREATEST(order_sequences.last_value + 1, EXCLUDED.last_value)
RETURNING last_value
`
	var seq int
	if err := t.tx.QueryRow(ctx, q, day.Format("2006-01-02"), domain.OrderNumberPrefix(day)).Scan(&seq); err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return domain.FormatOrderNumber(day, seq), nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	const q = `
INSERT INTO orders (
    customer_id, order_number, status, subtotal, tax, shipping, total,
    payment_method, payment_status, billing_address, shipping_address, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, created_at
`
	err := t.tx.QueryRow(ctx, q,
		o.CustomerID, o.OrderNumber, o.Status, o.Subtotal, o.Tax, o.Shipping, o.Total,
		o.PaymentMethod, o.PaymentStatus, o.BillingAddress, o.ShippingAddress, o.Notes,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *pgTx) InsertItem(ctx context.Context, item *domain.OrderItem) error {
	const q = `
INSERT INTO order_items (order_id, product_id, quantity, price)
VALUES ($1, $2, $3, $4)
RETURNING id
`
	if err := t.tx.QueryRow(ctx, q, item.OrderID, item.ProductID, item.Quantity, item.Price).Scan(&item.ID); err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

// DecrementStock only succeeds while enough stock remains.
func (t *pgTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	cmd, err := t.tx.Exec(ctx, `
UPDATE products
SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2 AND deleted_at IS NULL
`, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, domain.ErrInsufficientStock)
	}
	return nil
}

// ClearCartLines deletes the given lines from the customer's cart. Lines
// added after the order's snapshot was taken stay in the cart.
func (t *pgTx) ClearCartLines(ctx context.Context, customerID string, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
DELETE FROM cart_items
WHERE cart_id IN (SELECT id FROM carts WHERE customer_id = $1)
  AND id::text = ANY($2::text[])
`, customerID, lineIDs)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

const orderColumns = `
id, customer_id::text, order_number, status, subtotal, tax, shipping, total,
payment_method, payment_status, billing_address, shipping_address, notes, created_at`

func (r *postgresRepo) Get(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, o.ID)
	if err != nil {
		r.logger.Error("load order items", zap.Int64("order_id", o.ID), zap.Error(err))
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *postgresRepo) ListForCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

func (r *postgresRepo) items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	const q = `
SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price,
       p.id, p.name, p.description, p.price, p.stock, p.image, p.category_id,
       p.is_special_offer, p.offer_expires_at, p.created_at, p.updated_at
FROM order_items oi
JOIN products p ON p.id = oi.product_id
WHERE oi.order_id = $1
ORDER BY oi.id ASC
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		var p domain.Product
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.CategoryID,
			&p.IsSpecialOffer, &p.OfferExpiresAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Product = &p
		result = append(result, item)
	}
	return result, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.OrderNumber, &o.Status, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total,
		&o.PaymentMethod, &o.PaymentStatus, &o.BillingAddress, &o.ShippingAddress, &o.Notes, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}
