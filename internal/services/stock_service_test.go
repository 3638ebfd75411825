package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testStockService(t *testing.T, repo *memStockRepo, events *captureEvents) StockService {
	t.Helper()
	svc, err := NewStockService(StockServiceDeps{
		Stock:  repo,
		Events: events,
		Clock:  func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new stock service: %v", err)
	}
	return svc
}

func TestStockServiceAvailable(t *testing.T) {
	svc := testStockService(t, newMemStockRepo(map[string]int{"prod-1": 7}), nil)
	ctx := context.Background()

	available, err := svc.Available(ctx, "prod-1")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available != 7 {
		t.Fatalf("expected 7, got %d", available)
	}

	// Untracked products read as zero, not as an error.
	available, err = svc.Available(ctx, "prod-unknown")
	if err != nil {
		t.Fatalf("available unknown: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected 0 for unknown product, got %d", available)
	}

	if _, err := svc.Available(ctx, "  "); !errors.Is(err, ErrStockInvalidInput) {
		t.Fatalf("expected ErrStockInvalidInput, got %v", err)
	}
}

func TestStockServiceDecrement(t *testing.T) {
	repo := newMemStockRepo(map[string]int{"prod-1": 5})
	events := &captureEvents{}
	svc := testStockService(t, repo, events)
	ctx := context.Background()

	entry, err := svc.Decrement(ctx, StockAdjustCommand{ProductID: "prod-1", Amount: 3, Reason: "checkout"})
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if entry.Quantity != 2 {
		t.Fatalf("expected 2 left, got %d", entry.Quantity)
	}

	if _, err := svc.Decrement(ctx, StockAdjustCommand{ProductID: "prod-1", Amount: 3}); !errors.Is(err, ErrStockInsufficient) {
		t.Fatalf("expected ErrStockInsufficient, got %v", err)
	}
	if repo.quantity("prod-1") != 2 {
		t.Fatalf("failed decrement must not change stock, got %d", repo.quantity("prod-1"))
	}

	if _, err := svc.Decrement(ctx, StockAdjustCommand{ProductID: "prod-unknown", Amount: 1}); !errors.Is(err, ErrStockInsufficient) {
		t.Fatalf("expected ErrStockInsufficient for untracked product, got %v", err)
	}
	if _, err := svc.Decrement(ctx, StockAdjustCommand{ProductID: "prod-1", Amount: 0}); !errors.Is(err, ErrStockInvalidInput) {
		t.Fatalf("expected ErrStockInvalidInput for zero amount, got %v", err)
	}

	if len(events.stockEvents) != 1 {
		t.Fatalf("expected one event for the successful decrement, got %d", len(events.stockEvents))
	}
	event := events.stockEvents[0]
	if event.Event != "stock.decremented" || event.Delta != -3 || event.Quantity != 2 || event.Reason != "checkout" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestStockServiceIncrementCreatesEntry(t *testing.T) {
	repo := newMemStockRepo(nil)
	events := &captureEvents{}
	svc := testStockService(t, repo, events)

	entry, err := svc.Increment(context.Background(), StockAdjustCommand{ProductID: "prod-new", Amount: 4, Reason: "restock"})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if entry.Quantity != 4 {
		t.Fatalf("expected 4, got %d", entry.Quantity)
	}
	if len(events.stockEvents) != 1 || events.stockEvents[0].Event != "stock.incremented" {
		t.Fatalf("expected stock.incremented event, got %+v", events.stockEvents)
	}
}

func TestStockServiceSetQuantity(t *testing.T) {
	repo := newMemStockRepo(map[string]int{"prod-1": 2})
	events := &captureEvents{}
	svc := testStockService(t, repo, events)
	ctx := context.Background()

	entry, err := svc.SetQuantity(ctx, StockSetCommand{ProductID: "prod-1", Quantity: 9, Reason: "audit"})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if entry.Quantity != 9 {
		t.Fatalf("expected 9, got %d", entry.Quantity)
	}
	if _, err := svc.SetQuantity(ctx, StockSetCommand{ProductID: "prod-1", Quantity: -1}); !errors.Is(err, ErrStockInvalidInput) {
		t.Fatalf("expected ErrStockInvalidInput, got %v", err)
	}

	if len(events.stockEvents) != 1 {
		t.Fatalf("expected one event, got %d", len(events.stockEvents))
	}
	if event := events.stockEvents[0]; event.Event != "stock.set" || event.Delta != 7 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestStockServicePublishFailureDoesNotFailOperation(t *testing.T) {
	repo := newMemStockRepo(map[string]int{"prod-1": 5})
	events := &captureEvents{publishErr: errors.New("broker down")}
	svc := testStockService(t, repo, events)

	if _, err := svc.Decrement(context.Background(), StockAdjustCommand{ProductID: "prod-1", Amount: 1}); err != nil {
		t.Fatalf("decrement should survive publish failure: %v", err)
	}
	if repo.quantity("prod-1") != 4 {
		t.Fatalf("expected stock 4, got %d", repo.quantity("prod-1"))
	}
}
