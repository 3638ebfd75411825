package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// ActorRef identifies a cart/order owner. It carries either an authenticated
// user id or an anonymous session id; the engine never inspects which.
type ActorRef string

// String returns the raw actor key.
func (a ActorRef) String() string { return string(a) }

// IsZero reports whether the actor reference is empty.
func (a ActorRef) IsZero() bool { return a == "" }

// CartLine stores a single product entry within a cart. UnitPrice is
// snapshotted from the catalog's final price at add time and does not track
// later catalog changes.
type CartLine struct {
	ProductID string
	Name      string
	ImageRef  string
	Quantity  int
	UnitPrice int64
	AddedAt   time.Time
}

// Cart aggregates the mutable shopping cart state for one actor. Lines hold
// at most one entry per product id, in insertion order. Totals are
// recomputed before every persist; a quantity of zero is removal, never a
// stored line.
type Cart struct {
	Owner       ActorRef
	Lines       []CartLine
	TotalItems  int
	TotalAmount int64
	LastUpdated time.Time
	ExpiresAt   time.Time
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// LineIndex returns the index of the line for productID, or -1.
func (c Cart) LineIndex(productID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// StockEntry is the authoritative available quantity for one product. It is
// mutated only through the stock ledger's conditional writes and is never
// negative.
type StockEntry struct {
	ProductID string
	Quantity  int
	UpdatedAt time.Time
}

// Product is the catalog read model consumed for price snapshots and
// availability checks. StockHint mirrors the ledger for display only; the
// ledger remains authoritative for decrement and restore.
type Product struct {
	ID          string
	SKU         string
	Name        string
	Description string
	ImageRef    string
	Price       int64
	DiscountPct int
	IsActive    bool
	StockHint   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FinalPrice returns the discounted unit price in minor units.
func (p Product) FinalPrice() int64 {
	if p.DiscountPct <= 0 {
		return p.Price
	}
	if p.DiscountPct >= 100 {
		return 0
	}
	return p.Price - p.Price*int64(p.DiscountPct)/100
}

// Address stores a shipping or billing destination snapshot.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// PaymentStatus enumerates placeholder payment states recorded on orders.
type PaymentStatus string

const (
	// PaymentStatusPending indicates payment has not been captured yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates payment completed.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusRefunded indicates payment was returned after cancellation.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderPayment records the chosen payment method and its status placeholder.
type OrderPayment struct {
	Method string
	Status PaymentStatus
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was placed and awaits confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the order was accepted for fulfillment.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled and its stock restored. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderLine is a point-in-time copy of one cart line at assembly time,
// decoupled from both cart and catalog.
type OrderLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// StatusChange is one append-only entry in an order's status history.
type StatusChange struct {
	Status OrderStatus
	Note   string
	At     time.Time
}

// Order captures a placed order. Lines and monetary fields are immutable
// after creation; only status-shaped fields and terminal timestamps mutate.
// Orders are never deleted.
type Order struct {
	ID              string
	OrderNumber     string
	Owner           ActorRef
	Lines           []OrderLine
	ShippingAddress Address
	BillingAddress  *Address
	Payment         OrderPayment
	Subtotal        int64
	ShippingCost    int64
	Tax             int64
	Total           int64
	Status          OrderStatus
	StatusHistory   []StatusChange
	Notes           *string
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	CancelReason    *string
	// RestorePending lists product IDs whose stock return failed during
	// cancellation and still needs to be replayed.
	RestorePending []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Owner  ActorRef
	Status *OrderStatus
}

// MergeLineOutcome describes what happened to a single source line during a
// cart merge.
type MergeLineOutcome struct {
	ProductID string
	Quantity  int
	Merged    bool
	Reason    string
}

// MergeResult reports the per-line outcome of folding one cart into another.
// Skipped lines are surfaced here, never silently dropped.
type MergeResult struct {
	Cart  Cart
	Lines []MergeLineOutcome
}

// StockAdjustment pairs a product with a signed quantity change, used for
// event payloads and batch restore paths.
type StockAdjustment struct {
	ProductID string
	Delta     int
	Quantity  int
}

// Health status constants reported by dependency probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
