package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	customerID := dbtest.Customer(t, pool, "ada@example.com")
	repo := NewPostgres(pool)

	now := time.Now()
	if err := repo.Create(ctx, Token{Token: "live", CustomerID: customerID, Kind: KindAccess, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, Token{Token: "stale", CustomerID: customerID, Kind: KindRefresh, ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("Create stale: %v", err)
	}
	if err := repo.Create(ctx, Token{Token: "live", CustomerID: customerID, Kind: KindAccess, ExpiresAt: now}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected duplicate token error, got %v", err)
	}

	got, err := repo.Get(ctx, "live")
	if err != nil || got.CustomerID != customerID || got.Kind != KindAccess {
		t.Fatalf("Get: %+v %v", got, err)
	}

	n, err := repo.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired: %d %v", n, err)
	}
	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "live"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
