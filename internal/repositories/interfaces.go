package repositories

import (
	"context"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartStore
	Stock() StockRepository
	Orders() OrderRepository
	Products() ProductRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartStore persists ephemeral cart snapshots keyed by actor. Every Save
// replaces the full snapshot and refreshes the entry's TTL; Fetch returns a
// RepositoryError with IsNotFound once the entry has expired or never
// existed.
type CartStore interface {
	Fetch(ctx context.Context, owner domain.ActorRef) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Delete(ctx context.Context, owner domain.ActorRef) error
}

// StockRepository owns the authoritative per-product quantity. Decrement is
// an atomic conditional update: it must never allow two concurrent callers
// to both succeed when their combined amount exceeds availability.
type StockRepository interface {
	Get(ctx context.Context, productID string) (domain.StockEntry, error)
	Decrement(ctx context.Context, productID string, amount int) (domain.StockEntry, error)
	Increment(ctx context.Context, productID string, amount int) (domain.StockEntry, error)
	SetQuantity(ctx context.Context, productID string, quantity int) (domain.StockEntry, error)
}

// OrderRepository stores immutable order documents. There is no delete:
// cancellation is a status change applied through Update.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// ProductRepository reads the catalog used for price snapshots and
// availability checks, and seeds products for admin tooling.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	Upsert(ctx context.Context, product domain.Product) error
}

// CounterRepository issues monotonically increasing sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	Owner      domain.ActorRef
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type ProductListFilter struct {
	ActiveOnly bool
	Pagination domain.Pagination
}

// CounterConfig controls counter behaviour (step size, optional bounds).
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
