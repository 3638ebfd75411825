package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

var errCatalogRepositoryRequired = errors.New("catalog service: product repository is required")

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog: invalid input")

// ErrCatalogProductNotFound indicates the product does not exist.
var ErrCatalogProductNotFound = errors.New("catalog: product not found")

// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
var ErrCatalogUnavailable = errors.New("catalog: unavailable")

const maxDiscountPct = 100

// CatalogServiceDeps wires the repositories for catalog operations.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
	Stock    repositories.StockRepository
	Clock    func() time.Time
}

type catalogService struct {
	products repositories.ProductRepository
	stock    repositories.StockRepository
	now      func() time.Time
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errCatalogRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &catalogService{
		products: deps.Products,
		stock:    deps.Stock,
		now:      func() time.Time { return clock().UTC() },
	}, nil
}

// GetProduct fetches a single product. The stock hint is refreshed from the
// ledger when available so storefront reads see a current number; the hint
// is advisory and only the ledger is authoritative.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	if s.stock != nil {
		if entry, err := s.stock.Get(ctx, product.ID); err == nil {
			product.StockHint = entry.Quantity
		}
	}
	return product, nil
}

// ListProducts returns a page of catalog products.
func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	if s == nil || s.products == nil {
		return domain.CursorPage[Product]{}, ErrCatalogUnavailable
	}
	if filter.Pagination.PageSize <= 0 {
		filter.Pagination.PageSize = listDefaultPageSize
	}
	if filter.Pagination.PageSize > listMaxPageSize {
		filter.Pagination.PageSize = listMaxPageSize
	}

	page, err := s.products.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Product]{}, s.translateRepoError(err)
	}
	return page, nil
}

// UpsertProduct creates or replaces a catalog product and optionally seeds
// its stock ledger entry. Admin path.
func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrCatalogInvalidInput)
	}
	if cmd.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must be >= 0", ErrCatalogInvalidInput)
	}
	if cmd.DiscountPct < 0 || cmd.DiscountPct > maxDiscountPct {
		return Product{}, fmt.Errorf("%w: discount must be between 0 and %d", ErrCatalogInvalidInput, maxDiscountPct)
	}
	if cmd.InitialStock != nil && *cmd.InitialStock < 0 {
		return Product{}, fmt.Errorf("%w: initial stock must be >= 0", ErrCatalogInvalidInput)
	}

	now := s.now()
	product := Product{
		ID:          id,
		SKU:         strings.TrimSpace(cmd.SKU),
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		ImageRef:    strings.TrimSpace(cmd.ImageRef),
		Price:       cmd.Price,
		DiscountPct: cmd.DiscountPct,
		IsActive:    cmd.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing, err := s.products.FindByID(ctx, id); err == nil {
		product.CreatedAt = existing.CreatedAt
	}

	if err := s.products.Upsert(ctx, product); err != nil {
		return Product{}, s.translateRepoError(err)
	}

	if cmd.InitialStock != nil && s.stock != nil {
		entry, err := s.stock.SetQuantity(ctx, id, *cmd.InitialStock)
		if err != nil {
			return Product{}, s.translateRepoError(err)
		}
		product.StockHint = entry.Quantity
	}
	return product, nil
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isRepoNotFound(err) {
		return ErrCatalogProductNotFound
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) && stockErr.Code == repositories.StockErrorInvalidInput {
		return fmt.Errorf("%w: %s", ErrCatalogInvalidInput, stockErr.Message)
	}
	return ErrCatalogUnavailable
}
