package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"storefront/internal/domain"
)

// line is the storage-neutral view of a cart line the quantity rules work on.
// stock is the ceiling used when the line is updated directly: the embedded
// snapshot for anonymous carts, the live product for persistent ones.
type line struct {
	id       string
	quantity int
	stock    int
}

// lineStore is the storage behind one cart.
type lineStore interface {
	byProduct(ctx context.Context, productID int64) (*line, error)
	byID(ctx context.Context, lineID string) (*line, error)
	insert(ctx context.Context, p domain.Product, quantity int) error
	setQuantity(ctx context.Context, lineID string, quantity int) error
	remove(ctx context.Context, lineID string) error
}

func clampQuantity(stock, requested int) int {
	if requested > stock {
		return stock
	}
	return requested
}

// addLine adds quantity of p to the cart: an existing line grows to
// min(stock, existing+quantity), a new line starts at min(stock, quantity).
// It returns the resulting line quantity; zero means no line remains.
func addLine(ctx context.Context, store lineStore, p domain.Product, quantity int) (int, error) {
	existing, err := store.byProduct(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		q := clampQuantity(p.Stock, existing.quantity+quantity)
		return q, applyQuantity(ctx, store, existing.id, q)
	}
	q := clampQuantity(p.Stock, quantity)
	if q <= 0 {
		return 0, nil
	}
	return q, store.insert(ctx, p, q)
}

// updateLine sets a line to min(stock, quantity).
func updateLine(ctx context.Context, store lineStore, lineID string, quantity int) (int, error) {
	l, err := store.byID(ctx, lineID)
	if err != nil {
		return 0, err
	}
	q := clampQuantity(l.stock, quantity)
	return q, applyQuantity(ctx, store, l.id, q)
}

// applyQuantity writes q, removing the line when stock has run out.
func applyQuantity(ctx context.Context, store lineStore, lineID string, q int) error {
	if q <= 0 {
		return store.remove(ctx, lineID)
	}
	return store.setQuantity(ctx, lineID, q)
}

// anonymousLines mutates a session cart document in place. The caller
// persists the document afterwards.
type anonymousLines struct {
	cart     *domain.AnonymousCart
	now      time.Time
	imageURL func(path string) string
}

func (a *anonymousLines) index(match func(domain.AnonymousLine) bool) int {
	for i, item := range a.cart.Items {
		if match(item) {
			return i
		}
	}
	return -1
}

func (a *anonymousLines) byProduct(_ context.Context, productID int64) (*line, error) {
	i := a.index(func(l domain.AnonymousLine) bool { return l.ProductID == productID })
	if i < 0 {
		return nil, nil
	}
	item := a.cart.Items[i]
	return &line{id: item.ID, quantity: item.Quantity, stock: item.Product.Stock}, nil
}

func (a *anonymousLines) byID(_ context.Context, lineID string) (*line, error) {
	i := a.index(func(l domain.AnonymousLine) bool { return l.ID == lineID })
	if i < 0 {
		return nil, domain.NotFound("cart.line", "cart item", lineID)
	}
	item := a.cart.Items[i]
	return &line{id: item.ID, quantity: item.Quantity, stock: item.Product.Stock}, nil
}

func (a *anonymousLines) insert(_ context.Context, p domain.Product, quantity int) error {
	p.ImageURL = a.imageURL(p.Image)
	a.cart.Items = append(a.cart.Items, domain.AnonymousLine{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		Quantity:  quantity,
		Product:   domain.SnapshotOf(p),
		CreatedAt: a.now,
		UpdatedAt: a.now,
	})
	a.cart.UpdatedAt = a.now
	return nil
}

func (a *anonymousLines) setQuantity(_ context.Context, lineID string, quantity int) error {
	i := a.index(func(l domain.AnonymousLine) bool { return l.ID == lineID })
	if i < 0 {
		return domain.NotFound("cart.line", "cart item", lineID)
	}
	a.cart.Items[i].Quantity = quantity
	a.cart.Items[i].UpdatedAt = a.now
	a.cart.UpdatedAt = a.now
	return nil
}

func (a *anonymousLines) remove(_ context.Context, lineID string) error {
	i := a.index(func(l domain.AnonymousLine) bool { return l.ID == lineID })
	if i < 0 {
		return nil
	}
	a.cart.Items = append(a.cart.Items[:i], a.cart.Items[i+1:]...)
	a.cart.UpdatedAt = a.now
	return nil
}

// persistentLines works against a customer's cart rows.
type persistentLines struct {
	repo   cartRepo
	cartID int64
}

func (p *persistentLines) byProduct(ctx context.Context, productID int64) (*line, error) {
	l, err := p.repo.LineByProduct(ctx, p.cartID, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line{id: l.ID, quantity: l.Quantity, stock: l.Product.Stock}, nil
}

func (p *persistentLines) byID(ctx context.Context, lineID string) (*line, error) {
	l, err := p.repo.Line(ctx, p.cartID, lineID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("cart.line", "cart item", lineID)
	}
	if err != nil {
		return nil, err
	}
	return &line{id: l.ID, quantity: l.Quantity, stock: l.Product.Stock}, nil
}

func (p *persistentLines) insert(ctx context.Context, product domain.Product, quantity int) error {
	return p.repo.InsertLine(ctx, p.cartID, product.ID, quantity)
}

func (p *persistentLines) setQuantity(ctx context.Context, lineID string, quantity int) error {
	return p.repo.SetQuantity(ctx, p.cartID, lineID, quantity)
}

func (p *persistentLines) remove(ctx context.Context, lineID string) error {
	return p.repo.DeleteLine(ctx, p.cartID, lineID)
}
