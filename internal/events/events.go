// Package events publishes domain events for other services.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"storefront/internal/domain"
)

// OrderPlacedType is the routing type carried by order.placed messages.
const OrderPlacedType = "order.placed"

type OrderPlaced struct {
	Type        string            `json:"type"`
	OrderID     int64             `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	CustomerID  *string           `json:"customer_id"`
	Total       decimal.Decimal   `json:"total"`
	Items       []OrderPlacedItem `json:"items"`
	PlacedAt    time.Time         `json:"placed_at"`
}

type OrderPlacedItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func NewOrderPlaced(o *domain.Order) OrderPlaced {
	msg := OrderPlaced{
		Type:        OrderPlacedType,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Total:       o.Total,
		PlacedAt:    o.CreatedAt,
		Items:       make([]OrderPlacedItem, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		msg.Items = append(msg.Items, OrderPlacedItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	return msg
}

// Publisher delivers order events.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, msg OrderPlaced) error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }
