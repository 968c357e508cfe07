package cart

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"storefront/internal/domain"
)

// MergeResult reports how many anonymous lines were folded in.
type MergeResult struct {
	Merged  int `json:"merged"`
	Skipped int `json:"skipped"`
}

// Merge folds an anonymous cart into the customer's persistent cart using
// the same additive-then-clamp rule as AddItem. Each line is handled on its
// own: a missing or sold-out product or a failed write skips that line and
// keeps the lines already merged. Merging the same cart twice against unchanged stock
// leaves the cart at its stock ceiling.
func (s *Service) Merge(ctx context.Context, anon *domain.AnonymousCart, customerID string) (MergeResult, error) {
	var res MergeResult
	if anon.Empty() {
		return res, nil
	}
	cart, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return res, fmt.Errorf("load customer cart: %w", err)
	}
	store := &persistentLines{repo: s.carts, cartID: cart.ID}

	for _, item := range anon.Items {
		log := s.logger.With(zap.String("customer_id", customerID), zap.Int64("product_id", item.ProductID))
		p, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Warn("merge: product lookup failed", zap.Error(err))
			}
			res.Skipped++
			continue
		}
		q, err := addLine(ctx, store, *p, item.Quantity)
		if err != nil {
			log.Warn("merge: line failed", zap.Error(err))
			res.Skipped++
			continue
		}
		if q == 0 {
			log.Debug("merge: product out of stock")
			res.Skipped++
			continue
		}
		res.Merged++
	}

	s.metrics.Merged(res.Skipped)
	s.logger.Info("merged anonymous cart", zap.String("customer_id", customerID), zap.Int("merged", res.Merged), zap.Int("skipped", res.Skipped))
	return res, nil
}

// MergeSession merges the session's cart, if any, into the customer's cart
// and then drops it from the session. The session cart is only dropped
// once every line has been processed.
func (s *Service) MergeSession(ctx context.Context, sessionID, customerID string) (MergeResult, error) {
	anon, err := s.LoadAnonymous(ctx, sessionID)
	if err != nil {
		return MergeResult{}, err
	}
	if anon.Empty() {
		return MergeResult{}, nil
	}
	res, err := s.Merge(ctx, anon, customerID)
	if err != nil {
		return res, err
	}
	if err := s.ForgetAnonymous(ctx, sessionID); err != nil {
		return res, err
	}
	return res, nil
}
