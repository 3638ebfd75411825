package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"

	orderIDPrefix = "ord_"

	orderNumberCounter       = "orders"
	defaultOrderNumberPrefix = "LM"

	listDefaultPageSize = 20
	listMaxPageSize     = 100
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderEmptyCart indicates checkout was attempted with nothing in the cart.
	ErrOrderEmptyCart = errors.New("order: cart is empty")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderNotCancellable indicates the order has progressed past the cancellation window.
	ErrOrderNotCancellable = errors.New("order: not cancellable")
	// ErrOrderAccessDenied indicates the caller does not own the order.
	ErrOrderAccessDenied = errors.New("order: access denied")
	// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// orderStateTransitions is the forward-only lifecycle. Cancellation is not
// listed; it goes through Cancel so stock is restored.
var orderStateTransitions = map[OrderStatus][]OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

var cancellableStatuses = []OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusConfirmed,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Carts        repositories.CartStore
	Products     repositories.ProductRepository
	Stock        repositories.StockRepository
	Counters     repositories.CounterRepository
	Events       EventPublisher
	Pricing      domain.CheckoutPricing
	NumberPrefix string
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	carts    repositories.CartStore
	products repositories.ProductRepository
	stock    repositories.StockRepository
	counters repositories.CounterRepository
	events   EventPublisher
	pricing  domain.CheckoutPricing
	prefix   string
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)

	// checkout serialises order assembly per actor so one actor cannot
	// race itself into a double decrement.
	checkout keyedMutex
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart store is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Stock == nil {
		return nil, errors.New("order service: stock repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	prefix := strings.TrimSpace(deps.NumberPrefix)
	if prefix == "" {
		prefix = defaultOrderNumberPrefix
	}

	return &orderService{
		orders:   deps.Orders,
		carts:    deps.Carts,
		products: deps.Products,
		stock:    deps.Stock,
		counters: deps.Counters,
		events:   deps.Events,
		pricing:  deps.Pricing,
		prefix:   prefix,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// CreateOrder assembles an order from the actor's cart. The operation is
// all or nothing: every line is validated against the live catalog, then
// stock is decremented line by line with full compensation on the first
// failure. Only after all decrements succeed is the order persisted and
// the cart cleared.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	actor, err := normaliseOrderActor(cmd.Actor)
	if err != nil {
		return Order{}, err
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}
	paymentMethod := strings.TrimSpace(cmd.PaymentMethod)
	if paymentMethod == "" {
		return Order{}, fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	}

	unlock := s.checkout.lock(actor.String())
	defer unlock()

	cart, err := s.carts.Fetch(ctx, actor)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrOrderEmptyCart
		}
		return Order{}, s.mapRepositoryError(err)
	}
	if cart.IsEmpty() {
		return Order{}, ErrOrderEmptyCart
	}

	// Validate every line before touching the ledger.
	for _, line := range cart.Lines {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if isRepoNotFound(err) {
				return Order{}, fmt.Errorf("%w: %s", ErrProductUnavailable, line.ProductID)
			}
			return Order{}, s.mapRepositoryError(err)
		}
		if !product.IsActive {
			return Order{}, fmt.Errorf("%w: %s", ErrProductUnavailable, line.ProductID)
		}
		if line.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: line %s has invalid quantity", ErrOrderInvalidInput, line.ProductID)
		}
		// Availability is re-checked by the atomic decrement below; this
		// pre-check rejects a doomed assembly before any line is taken.
		entry, err := s.stock.Get(ctx, line.ProductID)
		if err != nil {
			if isStockNotFound(err) || isRepoNotFound(err) {
				return Order{}, fmt.Errorf("%w: %s", ErrStockInsufficient, line.ProductID)
			}
			return Order{}, s.mapRepositoryError(err)
		}
		if entry.Quantity < line.Quantity {
			return Order{}, fmt.Errorf("%w: %s", ErrStockInsufficient, line.ProductID)
		}
	}

	// Consume stock line by line. The ledger decrement is atomic per line;
	// a failure rolls back every line already taken.
	decremented := make([]domain.CartLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if _, err := s.stock.Decrement(ctx, line.ProductID, line.Quantity); err != nil {
			s.compensate(ctx, decremented)
			if isStockInsufficient(err) || isStockNotFound(err) {
				return Order{}, fmt.Errorf("%w: %s", ErrStockInsufficient, line.ProductID)
			}
			return Order{}, s.mapRepositoryError(err)
		}
		decremented = append(decremented, line)
	}

	now := s.clock()
	orderNumber, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		s.compensate(ctx, decremented)
		return Order{}, s.mapRepositoryError(err)
	}

	order := s.assembleOrder(cart, cmd, actor, orderNumber, now)
	if err := s.orders.Insert(ctx, order); err != nil {
		s.compensate(ctx, decremented)
		return Order{}, s.mapRepositoryError(err)
	}

	// The order is committed; a stale cart is an inconvenience, not a
	// correctness problem, so a failed clear only logs.
	if err := s.carts.Delete(ctx, actor); err != nil {
		s.logger(ctx, "order.cart.clear.failed", map[string]any{
			"order": order.ID,
			"actor": actor.String(),
			"error": err.Error(),
		})
	}

	s.publishOrderEvent(ctx, OrderEventMessage{
		Event:       orderEventCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Actor:       actor.String(),
		Status:      string(order.Status),
		Total:       order.Total,
		OccurredAt:  now,
	})
	return order, nil
}

// GetOrder fetches a single order, enforcing ownership for non-admin reads.
func (s *orderService) GetOrder(ctx context.Context, query GetOrderQuery) (Order, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !query.Admin {
		actor, err := normaliseOrderActor(query.Actor)
		if err != nil {
			return Order{}, err
		}
		if order.Owner != actor {
			return Order{}, ErrOrderAccessDenied
		}
	}
	return order, nil
}

// ListOrders returns a page of orders matching the filter.
func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if filter.Pagination.PageSize <= 0 {
		filter.Pagination.PageSize = listDefaultPageSize
	}
	if filter.Pagination.PageSize > listMaxPageSize {
		filter.Pagination.PageSize = listMaxPageSize
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// UpdateStatus advances an order along the forward-only lifecycle. Admins
// may override the transition table; cancellation always goes through
// Cancel so stock is restored.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.TargetStatus))))
	if !isKnownStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}
	if target == domain.OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: cancellation must go through cancel", ErrOrderInvalidState)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.Status == target {
		return order, nil
	}
	if isTerminalStatus(order.Status) {
		return Order{}, fmt.Errorf("%w: order is %s", ErrOrderInvalidState, order.Status)
	}
	if !cmd.Override && !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.clock()
	previous := order.Status
	order.Status = target
	order.UpdatedAt = now
	if target == domain.OrderStatusDelivered {
		order.DeliveredAt = &now
	}
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		Status: target,
		Note:   strings.TrimSpace(cmd.Note),
		At:     now,
	})

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishOrderEvent(ctx, OrderEventMessage{
		Event:       orderEventStatusChanged,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Actor:       cmd.Actor.String(),
		Status:      string(order.Status),
		Total:       order.Total,
		OccurredAt:  now,
	})
	s.logger(ctx, "order.status.changed", map[string]any{
		"order": order.ID,
		"from":  string(previous),
		"to":    string(order.Status),
	})
	return order, nil
}

// Cancel terminates an order that has not yet entered fulfilment and
// returns every line's quantity to the stock ledger. Cancelling an order
// that is already cancelled or past the window fails; the restore never
// runs twice. Lines whose restore fails are recorded on the order as
// RestorePending for later replay.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !cmd.Admin {
		actor, err := normaliseOrderActor(cmd.Actor)
		if err != nil {
			return Order{}, err
		}
		if order.Owner != actor {
			return Order{}, ErrOrderAccessDenied
		}
	}
	if !isCancellable(order.Status) {
		return Order{}, fmt.Errorf("%w: order is %s", ErrOrderNotCancellable, order.Status)
	}

	now := s.clock()
	reason := strings.TrimSpace(cmd.Reason)

	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now
	if reason != "" {
		order.CancelReason = &reason
	}
	if order.Payment.Status == domain.PaymentStatusPaid {
		order.Payment.Status = domain.PaymentStatusRefunded
	}
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		Status: domain.OrderStatusCancelled,
		Note:   reason,
		At:     now,
	})

	// Persist the terminal state first so a crash mid-restore can never
	// leave a live order whose stock was already returned.
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	var restorePending []string
	for _, line := range order.Lines {
		if _, err := s.stock.Increment(ctx, line.ProductID, line.Quantity); err != nil {
			restorePending = append(restorePending, line.ProductID)
			s.logger(ctx, "order.cancel.restore.failed", map[string]any{
				"order":    order.ID,
				"product":  line.ProductID,
				"quantity": line.Quantity,
				"error":    err.Error(),
			})
		}
	}
	if len(restorePending) > 0 {
		// Record the shortfall on the order so the restore can be replayed;
		// the cancellation itself stands.
		order.RestorePending = restorePending
		if err := s.orders.Update(ctx, order); err != nil {
			s.logger(ctx, "order.cancel.restore.mark.failed", map[string]any{
				"order": order.ID,
				"error": err.Error(),
			})
		}
	}

	s.publishOrderEvent(ctx, OrderEventMessage{
		Event:       orderEventCancelled,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Actor:       cmd.Actor.String(),
		Status:      string(order.Status),
		Total:       order.Total,
		OccurredAt:  now,
	})
	return order, nil
}

func (s *orderService) assembleOrder(cart Cart, cmd CreateOrderCommand, actor ActorRef, orderNumber string, now time.Time) Order {
	lines := make([]domain.OrderLine, 0, len(cart.Lines))
	var subtotal int64
	for _, line := range cart.Lines {
		lineTotal := line.UnitPrice * int64(line.Quantity)
		subtotal += lineTotal
		lines = append(lines, domain.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: lineTotal,
		})
	}

	shipping := s.pricing.ShippingFor(subtotal)
	tax := s.pricing.TaxFor(subtotal)

	order := Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     orderNumber,
		Owner:           actor,
		Lines:           lines,
		ShippingAddress: cmd.ShippingAddress,
		BillingAddress:  cloneAddress(cmd.BillingAddress),
		Payment: domain.OrderPayment{
			Method: strings.TrimSpace(cmd.PaymentMethod),
			Status: domain.PaymentStatusPending,
		},
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal + shipping + tax,
		Status:       domain.OrderStatusPending,
		Notes:        cloneStringPtr(cmd.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
		StatusHistory: []domain.StatusChange{{
			Status: domain.OrderStatusPending,
			Note:   "order placed",
			At:     now,
		}},
	}
	return order
}

// compensate returns already-consumed stock after a failed assembly.
func (s *orderService) compensate(ctx context.Context, lines []domain.CartLine) {
	for _, line := range lines {
		if _, err := s.stock.Increment(ctx, line.ProductID, line.Quantity); err != nil {
			s.logger(ctx, "order.create.compensate.failed", map[string]any{
				"product":  line.ProductID,
				"quantity": line.Quantity,
				"error":    err.Error(),
			})
		}
	}
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%06d", s.prefix, now.Year(), seq), nil
}

func (s *orderService) publishOrderEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"event": message.Event,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	var counterErr *repositories.CounterError
	if errors.As(err, &counterErr) {
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return err
}

func canTransition(current, target OrderStatus) bool {
	for _, allowed := range orderStateTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

func isCancellable(status OrderStatus) bool {
	for _, allowed := range cancellableStatuses {
		if allowed == status {
			return true
		}
	}
	return false
}

func isTerminalStatus(status OrderStatus) bool {
	return status == domain.OrderStatusDelivered || status == domain.OrderStatusCancelled
}

func isKnownStatus(status OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusProcessing,
		domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}

func isStockInsufficient(err error) bool {
	var stockErr *repositories.StockError
	return errors.As(err, &stockErr) && stockErr.Code == repositories.StockErrorInsufficient
}

func normaliseOrderActor(actor ActorRef) (ActorRef, error) {
	trimmed := strings.TrimSpace(actor.String())
	if trimmed == "" {
		return "", fmt.Errorf("%w: actor is required", ErrOrderInvalidInput)
	}
	return ActorRef(trimmed), nil
}

func validateShippingAddress(addr Address) error {
	if strings.TrimSpace(addr.Recipient) == "" {
		return fmt.Errorf("%w: shipping recipient is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.Line1) == "" {
		return fmt.Errorf("%w: shipping address line is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.City) == "" {
		return fmt.Errorf("%w: shipping city is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		return fmt.Errorf("%w: shipping postal code is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.Country) == "" {
		return fmt.Errorf("%w: shipping country is required", ErrOrderInvalidInput)
	}
	return nil
}

func cloneAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	clone := *addr
	return &clone
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// keyedMutex hands out one mutex per key so unrelated actors never contend.
// Entries are reference counted and dropped once the last holder releases,
// keeping the map bounded by the number of in-flight checkouts.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (m *keyedMutex) lock(key string) func() {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*keyedLock)
	}
	entry, ok := m.locks[key]
	if !ok {
		entry = &keyedLock{}
		m.locks[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		m.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
