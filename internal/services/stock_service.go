package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumenmarket/api/internal/repositories"
)

var errStockLedgerRequired = errors.New("stock service: stock repository is required")

// ErrStockInvalidInput indicates the caller supplied invalid input.
var ErrStockInvalidInput = errors.New("stock service: invalid input")

// ErrStockUnavailable indicates the ledger backend cannot fulfil the request.
var ErrStockUnavailable = errors.New("stock service: unavailable")

// Stock event names emitted after successful ledger mutations.
const (
	stockEventDecremented = "stock.decremented"
	stockEventIncremented = "stock.incremented"
	stockEventSet         = "stock.set"
)

// StockServiceDeps wires the ledger and event dependencies for stock operations.
type StockServiceDeps struct {
	Stock  repositories.StockRepository
	Events EventPublisher
	Clock  func() time.Time
	Logger func(context.Context, string, map[string]any)
}

type stockService struct {
	stock  repositories.StockRepository
	events EventPublisher
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewStockService constructs a StockService enforcing dependency validation.
func NewStockService(deps StockServiceDeps) (StockService, error) {
	if deps.Stock == nil {
		return nil, errStockLedgerRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &stockService{
		stock:  deps.Stock,
		events: deps.Events,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Available reports the on-hand quantity for the product. Products the
// ledger has never seen report zero rather than an error.
func (s *stockService) Available(ctx context.Context, productID string) (int, error) {
	if s == nil || s.stock == nil {
		return 0, ErrStockUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return 0, fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}

	entry, err := s.stock.Get(ctx, productID)
	if err != nil {
		if isStockNotFound(err) {
			return 0, nil
		}
		return 0, s.translateStockError(err)
	}
	return entry.Quantity, nil
}

// Decrement consumes stock. An untracked product decrements like one with
// zero on hand, so the call fails with insufficient stock.
func (s *stockService) Decrement(ctx context.Context, cmd StockAdjustCommand) (StockEntry, error) {
	if s == nil || s.stock == nil {
		return StockEntry{}, ErrStockUnavailable
	}
	productID, err := validStockAdjustment(cmd.ProductID, cmd.Amount)
	if err != nil {
		return StockEntry{}, err
	}

	entry, err := s.stock.Decrement(ctx, productID, cmd.Amount)
	if err != nil {
		if isStockNotFound(err) {
			return StockEntry{}, fmt.Errorf("%w: %s has 0 available", ErrStockInsufficient, productID)
		}
		return StockEntry{}, s.translateStockError(err)
	}

	s.publishStockEvent(ctx, stockEventDecremented, entry.ProductID, -cmd.Amount, entry.Quantity, cmd.Reason)
	return entry, nil
}

// Increment returns stock to the ledger, creating the entry when absent.
func (s *stockService) Increment(ctx context.Context, cmd StockAdjustCommand) (StockEntry, error) {
	if s == nil || s.stock == nil {
		return StockEntry{}, ErrStockUnavailable
	}
	productID, err := validStockAdjustment(cmd.ProductID, cmd.Amount)
	if err != nil {
		return StockEntry{}, err
	}

	entry, err := s.stock.Increment(ctx, productID, cmd.Amount)
	if err != nil {
		return StockEntry{}, s.translateStockError(err)
	}

	s.publishStockEvent(ctx, stockEventIncremented, entry.ProductID, cmd.Amount, entry.Quantity, cmd.Reason)
	return entry, nil
}

// SetQuantity overwrites the on-hand quantity. Admin seeding path.
func (s *stockService) SetQuantity(ctx context.Context, cmd StockSetCommand) (StockEntry, error) {
	if s == nil || s.stock == nil {
		return StockEntry{}, ErrStockUnavailable
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return StockEntry{}, fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}
	if cmd.Quantity < 0 {
		return StockEntry{}, fmt.Errorf("%w: quantity must be >= 0", ErrStockInvalidInput)
	}

	previous := 0
	if existing, err := s.stock.Get(ctx, productID); err == nil {
		previous = existing.Quantity
	}

	entry, err := s.stock.SetQuantity(ctx, productID, cmd.Quantity)
	if err != nil {
		return StockEntry{}, s.translateStockError(err)
	}

	s.publishStockEvent(ctx, stockEventSet, entry.ProductID, entry.Quantity-previous, entry.Quantity, cmd.Reason)
	return entry, nil
}

func (s *stockService) publishStockEvent(ctx context.Context, event, productID string, delta, quantity int, reason string) {
	if s.events == nil {
		return
	}
	message := StockEventMessage{
		Event:      event,
		ProductID:  productID,
		Delta:      delta,
		Quantity:   quantity,
		Reason:     strings.TrimSpace(reason),
		OccurredAt: s.now(),
	}
	if _, err := s.events.PublishStockEvent(ctx, message); err != nil {
		s.logger(ctx, "stock event publish failed", map[string]any{
			"event":     event,
			"productId": productID,
			"error":     err.Error(),
		})
	}
}

func (s *stockService) translateStockError(err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorInsufficient:
			return fmt.Errorf("%w: %s", ErrStockInsufficient, stockErr.Message)
		case repositories.StockErrorInvalidInput:
			return fmt.Errorf("%w: %s", ErrStockInvalidInput, stockErr.Message)
		}
	}
	return ErrStockUnavailable
}

func validStockAdjustment(productID string, amount int) (string, error) {
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return "", fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrStockInvalidInput)
	}
	return trimmed, nil
}

func isStockNotFound(err error) bool {
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) && stockErr.Code == repositories.StockErrorNotFound {
		return true
	}
	return isRepoNotFound(err)
}
