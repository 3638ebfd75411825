package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error { return &stubRepoError{msg: msg, notFound: true} }

// memCartStore is an in-memory repositories.CartStore with TTL semantics
// reduced to presence.
type memCartStore struct {
	mu    sync.Mutex
	carts map[domain.ActorRef]domain.Cart

	fetchErr  error
	saveErr   error
	deleteErr error
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: make(map[domain.ActorRef]domain.Cart)}
}

func (s *memCartStore) Fetch(_ context.Context, owner domain.ActorRef) (domain.Cart, error) {
	if s.fetchErr != nil {
		return domain.Cart{}, s.fetchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[owner]
	if !ok {
		return domain.Cart{}, notFoundErr(fmt.Sprintf("cart %s not found", owner))
	}
	return cart, nil
}

func (s *memCartStore) Save(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.saveErr != nil {
		return domain.Cart{}, s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.Owner] = cart
	return cart, nil
}

func (s *memCartStore) Delete(_ context.Context, owner domain.ActorRef) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, owner)
	return nil
}

// memStockRepo is an in-memory repositories.StockRepository whose Decrement
// is atomic under its mutex, mirroring the transactional backend.
type memStockRepo struct {
	mu         sync.Mutex
	quantities map[string]int

	decrements   int
	increments   int
	incrementErr error

	// beforeDecrement runs outside the mutex, letting tests shrink stock
	// between a read and the decrement like a racing buyer would.
	beforeDecrement func(productID string)
}

func newMemStockRepo(quantities map[string]int) *memStockRepo {
	qs := make(map[string]int, len(quantities))
	for id, q := range quantities {
		qs[id] = q
	}
	return &memStockRepo{quantities: qs}
}

func (s *memStockRepo) Get(_ context.Context, productID string) (domain.StockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quantity, ok := s.quantities[productID]
	if !ok {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorNotFound, fmt.Sprintf("stock %s not found", productID), nil)
	}
	return domain.StockEntry{ProductID: productID, Quantity: quantity, UpdatedAt: time.Now()}, nil
}

func (s *memStockRepo) Decrement(_ context.Context, productID string, amount int) (domain.StockEntry, error) {
	if s.beforeDecrement != nil {
		s.beforeDecrement(productID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	quantity, ok := s.quantities[productID]
	if !ok {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorNotFound, fmt.Sprintf("stock %s not found", productID), nil)
	}
	if quantity < amount {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorInsufficient, fmt.Sprintf("insufficient stock for %s", productID), nil)
	}
	s.quantities[productID] = quantity - amount
	s.decrements++
	return domain.StockEntry{ProductID: productID, Quantity: quantity - amount}, nil
}

func (s *memStockRepo) Increment(_ context.Context, productID string, amount int) (domain.StockEntry, error) {
	if s.incrementErr != nil {
		return domain.StockEntry{}, s.incrementErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantities[productID] += amount
	s.increments++
	return domain.StockEntry{ProductID: productID, Quantity: s.quantities[productID]}, nil
}

func (s *memStockRepo) SetQuantity(_ context.Context, productID string, quantity int) (domain.StockEntry, error) {
	if quantity < 0 {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorInvalidInput, "quantity must be >= 0", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantities[productID] = quantity
	return domain.StockEntry{ProductID: productID, Quantity: quantity}, nil
}

func (s *memStockRepo) quantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantities[productID]
}

type stubProductRepo struct {
	products map[string]domain.Product
}

func newStubProductRepo(products ...domain.Product) *stubProductRepo {
	repo := &stubProductRepo{products: make(map[string]domain.Product, len(products))}
	for _, product := range products {
		repo.products[product.ID] = product
	}
	return repo
}

func (s *stubProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr(fmt.Sprintf("product %s not found", productID))
	}
	return product, nil
}

func (s *stubProductRepo) List(_ context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	items := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if filter.ActiveOnly && !product.IsActive {
			continue
		}
		items = append(items, product)
	}
	return domain.CursorPage[domain.Product]{Items: items}, nil
}

func (s *stubProductRepo) Upsert(_ context.Context, product domain.Product) error {
	s.products[product.ID] = product
	return nil
}

type stubOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	insertErr error
	updateErr error
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: make(map[string]domain.Order)}
}

func (s *stubOrderRepo) Insert(_ context.Context, order domain.Order) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return &stubRepoError{msg: "duplicate order", conflict: true}
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderRepo) Update(_ context.Context, order domain.Order) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; !ok {
		return notFoundErr("order not found")
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundErr("order not found")
	}
	return order, nil
}

func (s *stubOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if filter.Owner != "" && order.Owner != filter.Owner {
			continue
		}
		items = append(items, order)
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

func (s *stubOrderRepo) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type stubCounterRepo struct {
	mu    sync.Mutex
	value int64
	err   error
}

func (s *stubCounterRepo) Next(_ context.Context, _ string, step int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if step <= 0 {
		step = 1
	}
	s.value += step
	return s.value, nil
}

func (s *stubCounterRepo) Configure(context.Context, string, repositories.CounterConfig) error {
	return errors.New("not implemented")
}

type captureEvents struct {
	mu          sync.Mutex
	orderEvents []OrderEventMessage
	stockEvents []StockEventMessage
	publishErr  error
}

func (c *captureEvents) PublishOrderEvent(_ context.Context, message OrderEventMessage) (string, error) {
	if c.publishErr != nil {
		return "", c.publishErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderEvents = append(c.orderEvents, message)
	return fmt.Sprintf("msg-%d", len(c.orderEvents)), nil
}

func (c *captureEvents) PublishStockEvent(_ context.Context, message StockEventMessage) (string, error) {
	if c.publishErr != nil {
		return "", c.publishErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stockEvents = append(c.stockEvents, message)
	return fmt.Sprintf("msg-%d", len(c.stockEvents)), nil
}
