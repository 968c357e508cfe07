package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is the product data embedded in an anonymous cart line
// when it is created. It is never refreshed afterwards.
type ProductSnapshot struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
	Stock    int             `json:"stock"`
}

func SnapshotOf(p Product) ProductSnapshot {
	return ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price, ImageURL: p.ImageURL, Stock: p.Stock}
}

// AnonymousCart is the session-held cart document, read and written whole.
type AnonymousCart struct {
	Items     []AnonymousLine `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type AnonymousLine struct {
	ID        string          `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Product   ProductSnapshot `json:"product"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewAnonymousCart(now time.Time) *AnonymousCart {
	return &AnonymousCart{Items: []AnonymousLine{}, CreatedAt: now, UpdatedAt: now}
}

func (c *AnonymousCart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// Cart is the persistent cart row of a customer.
type Cart struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CartLine is a persistent cart line joined to the live product row.
type CartLine struct {
	ID        string    `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartSnapshot is the normalized cart projection. It has the same shape
// whether it came from a session document or a persistent cart.
type CartSnapshot struct {
	ID         *int64          `json:"id"`
	CustomerID *string         `json:"customer_id"`
	Items      []SnapshotLine  `json:"items"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"item_count"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type SnapshotLine struct {
	ID        string          `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Product   ProductSnapshot `json:"product"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s CartSnapshot) Empty() bool {
	return len(s.Items) == 0
}

// NewSnapshotLine prices a line as unit price times quantity.
func NewSnapshotLine(id string, product ProductSnapshot, quantity int, createdAt, updatedAt time.Time) SnapshotLine {
	return SnapshotLine{
		ID:        id,
		ProductID: product.ID,
		Quantity:  quantity,
		Product:   product,
		Subtotal:  product.Price.Mul(decimal.NewFromInt(int64(quantity))),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// Totals fills Total and ItemCount from the lines.
func (s *CartSnapshot) Totals() {
	s.Total = decimal.Zero
	s.ItemCount = 0
	for _, line := range s.Items {
		s.Total = s.Total.Add(line.Subtotal)
		s.ItemCount += line.Quantity
	}
}
