package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testCatalogService(t *testing.T, products *stubProductRepo, stock *memStockRepo) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products: products,
		Stock:    stock,
		Clock:    func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestCatalogServiceGetProduct(t *testing.T) {
	products := newStubProductRepo(activeProduct("prod-1", 900))
	stock := newMemStockRepo(map[string]int{"prod-1": 6})
	svc := testCatalogService(t, products, stock)

	product, err := svc.GetProduct(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if product.StockHint != 6 {
		t.Fatalf("expected stock hint 6, got %d", product.StockHint)
	}

	if _, err := svc.GetProduct(context.Background(), "prod-ghost"); !errors.Is(err, ErrCatalogProductNotFound) {
		t.Fatalf("expected ErrCatalogProductNotFound, got %v", err)
	}
	if _, err := svc.GetProduct(context.Background(), " "); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
	}
}

func TestCatalogServiceListProductsActiveOnly(t *testing.T) {
	retired := activeProduct("prod-2", 300)
	retired.IsActive = false
	svc := testCatalogService(t, newStubProductRepo(activeProduct("prod-1", 100), retired), newMemStockRepo(nil))

	page, err := svc.ListProducts(context.Background(), ProductListFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "prod-1" {
		t.Fatalf("expected only prod-1, got %+v", page.Items)
	}
}

func TestCatalogServiceUpsertProductSeedsStock(t *testing.T) {
	products := newStubProductRepo()
	stock := newMemStockRepo(nil)
	svc := testCatalogService(t, products, stock)

	initial := 25
	product, err := svc.UpsertProduct(context.Background(), UpsertProductCommand{
		ID:           "prod-1",
		SKU:          "SKU-1",
		Name:         "Walnut Desk Shelf",
		Price:        15900,
		DiscountPct:  10,
		IsActive:     true,
		InitialStock: &initial,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if product.StockHint != 25 {
		t.Fatalf("expected stock hint 25, got %d", product.StockHint)
	}
	if stock.quantity("prod-1") != 25 {
		t.Fatalf("expected ledger seeded to 25, got %d", stock.quantity("prod-1"))
	}
	if product.FinalPrice() != 14310 {
		t.Fatalf("expected discounted price 14310, got %d", product.FinalPrice())
	}
}

func TestCatalogServiceUpsertValidation(t *testing.T) {
	svc := testCatalogService(t, newStubProductRepo(), newMemStockRepo(nil))
	ctx := context.Background()

	cases := []UpsertProductCommand{
		{ID: "", Name: "x", Price: 1},
		{ID: "p", Name: " ", Price: 1},
		{ID: "p", Name: "x", Price: -1},
		{ID: "p", Name: "x", Price: 1, DiscountPct: 101},
	}
	for i, cmd := range cases {
		if _, err := svc.UpsertProduct(ctx, cmd); !errors.Is(err, ErrCatalogInvalidInput) {
			t.Fatalf("case %d: expected ErrCatalogInvalidInput, got %v", i, err)
		}
	}
}
