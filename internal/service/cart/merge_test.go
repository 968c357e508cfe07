package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront/internal/domain"
	"storefront/internal/session"
	"storefront/internal/telemetry"
)

func anonymousCart(lines map[int64]int) *domain.AnonymousCart {
	now := time.Now()
	cart := domain.NewAnonymousCart(now)
	for productID, qty := range lines {
		cart.Items = append(cart.Items, domain.AnonymousLine{ID: "l", ProductID: productID, Quantity: qty, CreatedAt: now, UpdatedAt: now})
	}
	return cart
}

func TestMergeAddsThenClamps(t *testing.T) {
	f := newFixture()
	f.products.add(1, "10.00", 5)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, customer, 1, 4)
	require.NoError(t, err)

	res, err := f.svc.Merge(ctx, anonymousCart(map[int64]int{1: 2}), customer.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Merged: 1}, res)

	snap, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 5, quantityOf(t, snap, 1))
}

func TestMergeTwiceAtStockCeilingIsStable(t *testing.T) {
	f := newFixture()
	f.products.add(1, "10.00", 5)
	f.products.add(2, "3.00", 4)
	ctx := context.Background()
	anon := anonymousCart(map[int64]int{1: 5, 2: 4})

	_, err := f.svc.Merge(ctx, anon, customer.CustomerID)
	require.NoError(t, err)
	once, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)

	_, err = f.svc.Merge(ctx, anon, customer.CustomerID)
	require.NoError(t, err)
	twice, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)

	require.Len(t, twice.Items, len(once.Items))
	for _, l := range once.Items {
		assert.Equal(t, l.Quantity, quantityOf(t, twice, l.ProductID))
	}
}

func TestMergeNeverExceedsStock(t *testing.T) {
	f := newFixture()
	f.products.add(1, "10.00", 5)
	ctx := context.Background()
	anon := anonymousCart(map[int64]int{1: 3})

	for i := 0; i < 3; i++ {
		_, err := f.svc.Merge(ctx, anon, customer.CustomerID)
		require.NoError(t, err)
	}
	snap, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 5, quantityOf(t, snap, 1))
}

func TestMergeSessionTwiceMergesOnce(t *testing.T) {
	f := newFixture()
	f.products.add(1, "10.00", 9)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, guest, 1, 2)
	require.NoError(t, err)

	_, err = f.svc.MergeSession(ctx, guest.SessionID, customer.CustomerID)
	require.NoError(t, err)
	res, err := f.svc.MergeSession(ctx, guest.SessionID, customer.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{}, res)

	snap, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 2, quantityOf(t, snap, 1))
}

func TestMergeSkipsMissingProducts(t *testing.T) {
	f := newFixture()
	f.products.add(1, "10.00", 5)
	ctx := context.Background()

	res, err := f.svc.Merge(ctx, anonymousCart(map[int64]int{1: 1, 404: 2}), customer.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Merged: 1, Skipped: 1}, res)

	snap, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(1), snap.Items[0].ProductID)
}

func TestMergeCountsSoldOutProductsAsSkipped(t *testing.T) {
	f := newFixture()
	metrics := telemetry.NewMetrics("test", prometheus.NewRegistry())
	f.svc.metrics = metrics
	f.products.add(1, "10.00", 5)
	f.products.add(2, "10.00", 0)
	ctx := context.Background()

	res, err := f.svc.Merge(ctx, anonymousCart(map[int64]int{1: 2, 2: 3}), customer.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Merged: 1, Skipped: 1}, res)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CartMergeSkipped))

	snap, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 0, quantityOf(t, snap, 2))
}

func TestMergeKeepsEarlierLinesWhenOneFails(t *testing.T) {
	f := newFixture()
	f.products.add(1, "10.00", 5)
	f.products.add(2, "10.00", 5)
	f.carts.insertErrs[2] = errors.New("connection reset")
	ctx := context.Background()

	res, err := f.svc.Merge(ctx, anonymousCart(map[int64]int{1: 1, 2: 1}), customer.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, 1, res.Skipped)

	snap, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 1, quantityOf(t, snap, 1))
}

func TestMergeSessionForgetsSessionCart(t *testing.T) {
	f := newFixture()
	f.products.add(1, "10.00", 5)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, guest, 1, 2)
	require.NoError(t, err)

	res, err := f.svc.MergeSession(ctx, guest.SessionID, customer.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merged)

	var stored domain.AnonymousCart
	ok, err := f.sessions.Get(ctx, guest.SessionID, session.CartKey, &stored)
	require.NoError(t, err)
	assert.False(t, ok, "session cart should be forgotten after merge")

	snap, err := f.svc.Get(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 2, quantityOf(t, snap, 1))
}

func TestMergeSessionWithoutCartIsNoop(t *testing.T) {
	f := newFixture()
	res, err := f.svc.MergeSession(context.Background(), "fresh", customer.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{}, res)
	assert.Empty(t, f.carts.carts, "no persistent cart should be created")
}
