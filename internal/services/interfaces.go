package services

import (
	"context"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	ActorRef           = domain.ActorRef
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	MergeResult        = domain.MergeResult
	MergeLineOutcome   = domain.MergeLineOutcome
	StockEntry         = domain.StockEntry
	Product            = domain.Product
	Address            = domain.Address
	Order              = domain.Order
	OrderLine          = domain.OrderLine
	OrderStatus        = domain.OrderStatus
	StatusChange       = domain.StatusChange
	SystemHealthReport = domain.SystemHealthReport
)

// CartService manages mutable per-actor cart state. Reads never fail on a
// missing cart; they return an empty one. Mutations validate against the
// live catalog and refresh the cart's expiry.
type CartService interface {
	GetCart(ctx context.Context, actor ActorRef) (Cart, error)
	AddLine(ctx context.Context, cmd AddCartLineCommand) (Cart, error)
	UpdateLine(ctx context.Context, cmd UpdateCartLineCommand) (Cart, error)
	RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (Cart, error)
	ClearCart(ctx context.Context, actor ActorRef) error
	MergeCarts(ctx context.Context, cmd MergeCartsCommand) (MergeResult, error)
}

// StockService fronts the authoritative stock ledger. Decrement is the only
// path that consumes stock; it either applies fully or not at all.
type StockService interface {
	Available(ctx context.Context, productID string) (int, error)
	Decrement(ctx context.Context, cmd StockAdjustCommand) (StockEntry, error)
	Increment(ctx context.Context, cmd StockAdjustCommand) (StockEntry, error)
	SetQuantity(ctx context.Context, cmd StockSetCommand) (StockEntry, error)
}

// OrderService owns the order lifecycle: all-or-nothing assembly from the
// cart, status transitions, and cancellation with stock restore.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, query GetOrderQuery) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// CatalogService provides product reads for storefront surfaces and upserts
// for admin seeding.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// EventPublisher emits best-effort domain events after state changes. A
// publish failure never fails the triggering operation.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
	PublishStockEvent(ctx context.Context, message StockEventMessage) (string, error)
}

// OrderEventMessage is the payload emitted on order lifecycle changes.
type OrderEventMessage struct {
	Event       string    `json:"event"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	Status      string    `json:"status,omitempty"`
	Total       int64     `json:"total,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// StockEventMessage is the payload emitted on stock ledger changes.
type StockEventMessage struct {
	Event      string    `json:"event"`
	ProductID  string    `json:"productId"`
	Delta      int       `json:"delta"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Command and DTO definitions ------------------------------------------------

type AddCartLineCommand struct {
	Actor     ActorRef
	ProductID string
	Quantity  int
}

type UpdateCartLineCommand struct {
	Actor     ActorRef
	ProductID string
	Quantity  int
}

type RemoveCartLineCommand struct {
	Actor     ActorRef
	ProductID string
}

type MergeCartsCommand struct {
	Source ActorRef
	Target ActorRef
}

type StockAdjustCommand struct {
	ProductID string
	Amount    int
	Reason    string
}

type StockSetCommand struct {
	ProductID string
	Quantity  int
	Reason    string
}

type CreateOrderCommand struct {
	Actor           ActorRef
	ShippingAddress Address
	BillingAddress  *Address
	PaymentMethod   string
	Notes           *string
}

type GetOrderQuery struct {
	OrderID string
	Actor   ActorRef
	// Admin bypasses the owner check for back-office reads.
	Admin bool
}

type UpdateOrderStatusCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	Actor        ActorRef
	Note         string
	// Override allows admins to skip the forward-only transition table.
	Override bool
}

type CancelOrderCommand struct {
	OrderID string
	Actor   ActorRef
	Reason  string
	// Admin bypasses the owner check.
	Admin bool
}

type UpsertProductCommand struct {
	ID          string
	SKU         string
	Name        string
	Description string
	ImageRef    string
	Price       int64
	DiscountPct int
	IsActive    bool
	// InitialStock seeds the ledger when non-nil.
	InitialStock *int
}

type OrderListFilter = repositories.OrderListFilter

type ProductListFilter = repositories.ProductListFilter

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// IDGenerator mints identifiers for new entities.
type IDGenerator func() string
