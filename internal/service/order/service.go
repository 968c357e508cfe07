package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	orderrepo "storefront/internal/repository/order"
	"storefront/internal/telemetry"
	"storefront/internal/validation"
)

// OrdersKey is the session key listing order ids placed by an anonymous
// visitor, so the visitor can open their confirmation page.
const OrdersKey = "orders"

type orderRepo interface {
	WithTx(ctx context.Context, fn func(tx orderrepo.Tx) error) error
	Get(ctx context.Context, id int64) (*domain.Order, error)
	ListForCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
}

type cartSource interface {
	Get(ctx context.Context, v domain.Visitor) (*domain.CartSnapshot, error)
	ForgetAnonymous(ctx context.Context, sessionID string) error
}

type sessionStore interface {
	Get(ctx context.Context, sessionID, key string, dst any) (bool, error)
	Put(ctx context.Context, sessionID, key string, value any) error
}

type Service struct {
	orders    orderRepo
	carts     cartSource
	sessions  sessionStore
	validator *validation.Validator
	publisher events.Publisher
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

type Deps struct {
	Orders    orderRepo
	Carts     cartSource
	Sessions  sessionStore
	Validator *validation.Validator
	Publisher events.Publisher
	Metrics   *telemetry.Metrics
	Logger    *zap.Logger
}

func New(d Deps) *Service {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	return &Service{
		orders:    d.Orders,
		carts:     d.Carts,
		sessions:  d.Sessions,
		validator: d.Validator,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		logger:    logging.OrNop(d.Logger).Named("order"),
		now:       time.Now,
	}
}

type PlaceOrderInput struct {
	Billing       domain.Address       `json:"billing_address" validate:"required"`
	Shipping      domain.Address       `json:"shipping_address" validate:"required"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"required,payment_method"`
	Notes         *string              `json:"notes" validate:"omitempty,max=1000"`
}

// PlaceOrder turns the visitor's cart into an order. The order, its items,
// the stock decrements and the cart clear commit together or not at all.
func (s *Service) PlaceOrder(ctx context.Context, v domain.Visitor, in PlaceOrderInput) (*domain.Order, error) {
	const op = "order.place"
	if err := s.validator.Struct(op, in); err != nil {
		s.metrics.CheckoutFailed(domain.EINVALID)
		return nil, err
	}

	snap, err := s.carts.Get(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("%s: load cart: %w", op, err)
	}
	if snap.Empty() {
		s.metrics.CheckoutFailed(domain.EEMPTYCART)
		return nil, domain.EmptyCart(op)
	}

	var customerID *string
	if v.Authenticated() {
		id := v.CustomerID
		customerID = &id
	}

	var placed *domain.Order
	err = s.orders.WithTx(ctx, func(tx orderrepo.Tx) error {
		o := &domain.Order{
			CustomerID:      customerID,
			Status:          domain.OrderPending,
			Subtotal:        snap.Total,
			Tax:             decimal.Zero,
			Shipping:        decimal.Zero,
			Total:           snap.Total,
			PaymentMethod:   in.PaymentMethod,
			PaymentStatus:   domain.PaymentPending,
			BillingAddress:  in.Billing,
			ShippingAddress: in.Shipping,
			Notes:           in.Notes,
		}
		number, err := tx.NextOrderNumber(ctx, s.now())
		if err != nil {
			return err
		}
		o.OrderNumber = number
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		o.Items = make([]domain.OrderItem, 0, len(snap.Items))
		lineIDs := make([]string, 0, len(snap.Items))
		for _, line := range snap.Items {
			item := domain.OrderItem{
				OrderID:   o.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.Product.Price,
			}
			if err := tx.InsertItem(ctx, &item); err != nil {
				return err
			}
			if err := tx.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			o.Items = append(o.Items, item)
			lineIDs = append(lineIDs, line.ID)
		}

		if customerID != nil {
			if err := tx.ClearCartLines(ctx, *customerID, lineIDs); err != nil {
				return err
			}
		}
		placed = o
		return nil
	})
	if err != nil {
		s.logger.Error("checkout rolled back", zap.Bool("authenticated", v.Authenticated()), zap.Error(err))
		s.metrics.CheckoutFailed(domain.ETXFAILED)
		return nil, domain.TransactionFailed(op, err)
	}

	if !v.Authenticated() {
		s.afterAnonymousCheckout(ctx, v.SessionID, placed.ID)
	}

	total, _ := placed.Total.Float64()
	s.metrics.OrderPlaced(string(placed.PaymentMethod), total, snap.ItemCount)
	if err := s.publisher.PublishOrderPlaced(ctx, events.NewOrderPlaced(placed)); err != nil {
		s.metrics.PublishFailed()
		s.logger.Warn("publish order event", zap.String("order_number", placed.OrderNumber), zap.Error(err))
	}
	s.logger.Info("order placed",
		zap.Int64("order_id", placed.ID),
		zap.String("order_number", placed.OrderNumber),
		zap.String("total", placed.Total.StringFixed(2)),
	)
	return placed, nil
}

// afterAnonymousCheckout drops the session cart and remembers the order in
// the session. Both happen after commit; failures are logged only.
func (s *Service) afterAnonymousCheckout(ctx context.Context, sessionID string, orderID int64) {
	if err := s.carts.ForgetAnonymous(ctx, sessionID); err != nil {
		s.logger.Warn("forget session cart after checkout", zap.Error(err))
	}
	if s.sessions == nil {
		return
	}
	var ids []int64
	if _, err := s.sessions.Get(ctx, sessionID, OrdersKey, &ids); err != nil {
		s.logger.Warn("load session orders", zap.Error(err))
	}
	if err := s.sessions.Put(ctx, sessionID, OrdersKey, append(ids, orderID)); err != nil {
		s.logger.Warn("remember session order", zap.Error(err))
	}
}

// Get loads an order with its items. Customers only see their own orders;
// anonymous visitors only see orders placed from their session.
func (s *Service) Get(ctx context.Context, v domain.Visitor, orderID int64) (*domain.Order, error) {
	const op = "order.get"
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "order", orderID)
		}
		return nil, err
	}
	if !s.visible(ctx, v, o) {
		return nil, domain.NotFound(op, "order", orderID)
	}
	return o, nil
}

func (s *Service) visible(ctx context.Context, v domain.Visitor, o *domain.Order) bool {
	if v.Authenticated() {
		return o.CustomerID != nil && *o.CustomerID == v.CustomerID
	}
	if o.CustomerID != nil || s.sessions == nil || v.SessionID == "" {
		return false
	}
	var ids []int64
	ok, err := s.sessions.Get(ctx, v.SessionID, OrdersKey, &ids)
	if err != nil {
		s.logger.Warn("load session orders", zap.Error(err))
		return false
	}
	return ok && slices.Contains(ids, o.ID)
}

func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.orders.ListForCustomer(ctx, customerID)
}
