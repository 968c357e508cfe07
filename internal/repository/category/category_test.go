package category

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)

	repo := NewPostgres(pool)
	for _, c := range []domain.Category{{Name: "Shoes", Slug: "shoes"}, {Name: "Bags", Slug: "bags"}} {
		if _, err := repo.Upsert(ctx, c); err != nil {
			t.Fatalf("upsert %s: %v", c.Slug, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Slug != "bags" {
		t.Fatalf("expected categories ordered by name, got %+v", list)
	}
}

func TestPostgres_UpsertUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)

	repo := NewPostgres(pool)
	first, err := repo.Upsert(ctx, domain.Category{Name: "Shoes", Slug: "shoes"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := repo.Upsert(ctx, domain.Category{Name: "Footwear", Slug: "shoes"})
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if second.ID != first.ID || second.Name != "Footwear" {
		t.Fatalf("expected same row renamed, got %+v", second)
	}

	got, err := repo.GetBySlug(ctx, "shoes")
	if err != nil || got.ID != first.ID {
		t.Fatalf("GetBySlug: %+v %v", got, err)
	}
	if _, err := repo.GetBySlug(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
