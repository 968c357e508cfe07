package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/session"
	"storefront/internal/telemetry"
)

type cartRepo interface {
	GetOrCreate(ctx context.Context, customerID string) (*domain.Cart, error)
	Lines(ctx context.Context, cartID int64) ([]domain.CartLine, error)
	Line(ctx context.Context, cartID int64, lineID string) (*domain.CartLine, error)
	LineByProduct(ctx context.Context, cartID, productID int64) (*domain.CartLine, error)
	InsertLine(ctx context.Context, cartID, productID int64, quantity int) error
	SetQuantity(ctx context.Context, cartID int64, lineID string, quantity int) error
	DeleteLine(ctx context.Context, cartID int64, lineID string) error
	Clear(ctx context.Context, cartID int64) error
}

type productRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

type sessionStore interface {
	Get(ctx context.Context, sessionID, key string, dst any) (bool, error)
	Put(ctx context.Context, sessionID, key string, value any) error
	Forget(ctx context.Context, sessionID, key string) error
}

// Service resolves a visitor to their cart and applies the cart rules to
// either backing store.
type Service struct {
	carts     cartRepo
	products  productRepo
	sessions  sessionStore
	imageBase string
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

type Deps struct {
	Carts        cartRepo
	Products     productRepo
	Sessions     sessionStore
	ImageBaseURL string
	Logger       *zap.Logger
	Metrics      *telemetry.Metrics
}

func New(d Deps) *Service {
	return &Service{
		carts:     d.Carts,
		products:  d.Products,
		sessions:  d.Sessions,
		imageBase: d.ImageBaseURL,
		logger:    logging.OrNop(d.Logger).Named("cart"),
		metrics:   d.Metrics,
		now:       time.Now,
	}
}

func (s *Service) imageURL(path string) string {
	return domain.ImageURL(s.imageBase, path)
}

// Get returns the visitor's cart snapshot. An anonymous visitor without a
// cart gets an empty one; nothing is stored until the first mutation.
func (s *Service) Get(ctx context.Context, v domain.Visitor) (*domain.CartSnapshot, error) {
	if v.Authenticated() {
		cart, err := s.carts.GetOrCreate(ctx, v.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		lines, err := s.carts.Lines(ctx, cart.ID)
		if err != nil {
			return nil, fmt.Errorf("load cart lines: %w", err)
		}
		return s.persistentSnapshot(cart, lines), nil
	}
	cart, err := s.loadAnonymous(ctx, v.SessionID)
	if err != nil {
		return nil, err
	}
	return AnonymousSnapshot(cart), nil
}

// AddItem adds quantity units of a product. The quantity must be between 1
// and the product's current stock.
func (s *Service) AddItem(ctx context.Context, v domain.Visitor, productID int64, quantity int) (*domain.CartSnapshot, error) {
	const op = "cart.add"
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "product", productID)
		}
		return nil, err
	}
	if quantity < 1 {
		return nil, domain.Invalid(op, "quantity", "The quantity must be at least 1.")
	}
	if quantity > p.Stock {
		return nil, domain.Invalid(op, "quantity", fmt.Sprintf("The quantity may not be greater than %d.", p.Stock))
	}

	err = s.mutate(ctx, v, func(store lineStore) error {
		q, err := addLine(ctx, store, *p, quantity)
		if err == nil {
			s.logger.Debug("item added", zap.Int64("product_id", p.ID), zap.Int("quantity", q), zap.Bool("authenticated", v.Authenticated()))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ItemAdded(cartKind(v))
	return s.Get(ctx, v)
}

// UpdateItem sets a line's quantity, clamped to stock. A line whose stock
// has dropped to zero is removed.
func (s *Service) UpdateItem(ctx context.Context, v domain.Visitor, lineID string, quantity int) (*domain.CartSnapshot, error) {
	if quantity < 1 {
		return nil, domain.Invalid("cart.update", "quantity", "The quantity must be at least 1.")
	}
	err := s.mutate(ctx, v, func(store lineStore) error {
		_, err := updateLine(ctx, store, lineID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, v)
}

// RemoveItem deletes a line. Removing an unknown line succeeds.
func (s *Service) RemoveItem(ctx context.Context, v domain.Visitor, lineID string) (*domain.CartSnapshot, error) {
	err := s.mutate(ctx, v, func(store lineStore) error {
		return store.remove(ctx, lineID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, v)
}

// ItemCount is the total number of units in the visitor's cart.
func (s *Service) ItemCount(ctx context.Context, v domain.Visitor) (int, error) {
	snap, err := s.Get(ctx, v)
	if err != nil {
		return 0, err
	}
	return snap.ItemCount, nil
}

// Clear empties the visitor's cart.
func (s *Service) Clear(ctx context.Context, v domain.Visitor) error {
	if v.Authenticated() {
		cart, err := s.carts.GetOrCreate(ctx, v.CustomerID)
		if err != nil {
			return err
		}
		return s.carts.Clear(ctx, cart.ID)
	}
	return s.ForgetAnonymous(ctx, v.SessionID)
}

// ForgetAnonymous drops the session cart document.
func (s *Service) ForgetAnonymous(ctx context.Context, sessionID string) error {
	if err := s.sessions.Forget(ctx, sessionID, session.CartKey); err != nil {
		return fmt.Errorf("forget session cart: %w", err)
	}
	return nil
}

// mutate runs fn against the visitor's line store. Anonymous carts are
// loaded, mutated and written back as a whole.
func (s *Service) mutate(ctx context.Context, v domain.Visitor, fn func(lineStore) error) error {
	if v.Authenticated() {
		cart, err := s.carts.GetOrCreate(ctx, v.CustomerID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		return fn(&persistentLines{repo: s.carts, cartID: cart.ID})
	}

	cart, err := s.loadAnonymous(ctx, v.SessionID)
	if err != nil {
		return err
	}
	if err := fn(&anonymousLines{cart: cart, now: s.now(), imageURL: s.imageURL}); err != nil {
		return err
	}
	if err := s.sessions.Put(ctx, v.SessionID, session.CartKey, cart); err != nil {
		return fmt.Errorf("save session cart: %w", err)
	}
	return nil
}

// LoadAnonymous returns the session cart, or nil when the session has none.
func (s *Service) LoadAnonymous(ctx context.Context, sessionID string) (*domain.AnonymousCart, error) {
	if sessionID == "" {
		return nil, nil
	}
	var cart domain.AnonymousCart
	ok, err := s.sessions.Get(ctx, sessionID, session.CartKey, &cart)
	if err != nil {
		return nil, fmt.Errorf("load session cart: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if cart.Items == nil {
		cart.Items = []domain.AnonymousLine{}
	}
	return &cart, nil
}

func (s *Service) loadAnonymous(ctx context.Context, sessionID string) (*domain.AnonymousCart, error) {
	cart, err := s.LoadAnonymous(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = domain.NewAnonymousCart(s.now())
	}
	return cart, nil
}

func (s *Service) persistentSnapshot(cart *domain.Cart, lines []domain.CartLine) *domain.CartSnapshot {
	id := cart.ID
	customerID := cart.CustomerID
	snap := &domain.CartSnapshot{
		ID:         &id,
		CustomerID: &customerID,
		Items:      make([]domain.SnapshotLine, 0, len(lines)),
		CreatedAt:  cart.CreatedAt,
		UpdatedAt:  cart.UpdatedAt,
	}
	for _, l := range lines {
		p := l.Product
		p.ImageURL = s.imageURL(p.Image)
		snap.Items = append(snap.Items, domain.NewSnapshotLine(l.ID, domain.SnapshotOf(p), l.Quantity, l.CreatedAt, l.UpdatedAt))
	}
	snap.Totals()
	return snap
}

// AnonymousSnapshot projects a session cart, pricing lines from their
// embedded product snapshots.
func AnonymousSnapshot(cart *domain.AnonymousCart) *domain.CartSnapshot {
	snap := &domain.CartSnapshot{
		Items:     make([]domain.SnapshotLine, 0, len(cart.Items)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		snap.Items = append(snap.Items, domain.NewSnapshotLine(item.ID, item.Product, item.Quantity, item.CreatedAt, item.UpdatedAt))
	}
	snap.Totals()
	return snap
}

func cartKind(v domain.Visitor) string {
	if v.Authenticated() {
		return "persistent"
	}
	return "anonymous"
}
