package customer

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	created, err := repo.Create(ctx, domain.Customer{Email: "Ada@Example.com", PasswordHash: "hash", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Email != "ada@example.com" {
		t.Fatalf("expected lower-cased email, got %q", created.Email)
	}

	byEmail, err := repo.GetByEmail(ctx, "ADA@example.com")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("GetByEmail: %+v %v", byEmail, err)
	}
	byID, err := repo.GetByID(ctx, created.ID)
	if err != nil || byID.Email != created.Email {
		t.Fatalf("GetByID: %+v %v", byID, err)
	}
	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}

	if _, err := repo.Create(ctx, domain.Customer{Email: "ada@example.com", PasswordHash: "hash"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected duplicate email to fail, got %v", err)
	}

	page, err := repo.List(ctx, ListFilter{})
	if err != nil || len(page.Items) != 1 || page.PerPage != DefaultPerPage {
		t.Fatalf("List: %+v %v", page, err)
	}
}

func TestPostgres_ListSearchAndPaging(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	for _, c := range []domain.Customer{
		{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"},
		{Email: "grace@example.com", FirstName: "Grace", LastName: "Hopper"},
		{Email: "alan@example.org", FirstName: "Alan", LastName: "Turing"},
		{Email: "ed@example.com", FirstName: "Edsger", LastName: "Dijkstra"},
	} {
		c.PasswordHash = "hash"
		if _, err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create %s: %v", c.Email, err)
		}
	}
	// Spread creation times so newest-first ordering is deterministic.
	if _, err := pool.Exec(ctx, `UPDATE customers SET created_at = now() - (ascii(email)::int * interval '1 minute')`); err != nil {
		t.Fatalf("backdate customers: %v", err)
	}

	page, err := repo.List(ctx, ListFilter{Search: "hop"})
	if err != nil {
		t.Fatalf("List by last name: %v", err)
	}
	if page.Total != 1 || page.Items[0].Email != "grace@example.com" {
		t.Fatalf("expected Grace only, got %+v", page)
	}

	page, err = repo.List(ctx, ListFilter{Search: "EXAMPLE.ORG"})
	if err != nil || page.Total != 1 || page.Items[0].FirstName != "Alan" {
		t.Fatalf("List by email: %+v %v", page, err)
	}

	page, err = repo.List(ctx, ListFilter{Search: "100%"})
	if err != nil || page.Total != 0 {
		t.Fatalf("expected no match for escaped wildcard, got %+v %v", page, err)
	}

	page, err = repo.List(ctx, ListFilter{Page: 2, PerPage: 3})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if page.Total != 4 || page.LastPage != 2 || page.CurrentPage != 2 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	// ascii('g') is the largest offset, so grace is the oldest.
	if page.Items[0].Email != "grace@example.com" {
		t.Fatalf("expected oldest customer last, got %s", page.Items[0].Email)
	}
}

func TestPostgres_Delete(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	customerID := dbtest.Customer(t, pool, "ada@example.com")
	if _, err := pool.Exec(ctx, `INSERT INTO carts (customer_id) VALUES ($1)`, customerID); err != nil {
		t.Fatalf("insert cart: %v", err)
	}

	if err := repo.Delete(ctx, customerID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, customerID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted customer to be gone, got %v", err)
	}
	var carts int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM carts WHERE customer_id = $1`, customerID).Scan(&carts); err != nil || carts != 0 {
		t.Fatalf("expected cart to cascade, got %d %v", carts, err)
	}

	if err := repo.Delete(ctx, customerID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := repo.Delete(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
}
