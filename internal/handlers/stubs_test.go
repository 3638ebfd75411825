package handlers

import (
	"context"

	"github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/services"
)

type stubCartService struct {
	getCartFunc    func(ctx context.Context, actor domain.ActorRef) (domain.Cart, error)
	addLineFunc    func(ctx context.Context, cmd services.AddCartLineCommand) (domain.Cart, error)
	updateLineFunc func(ctx context.Context, cmd services.UpdateCartLineCommand) (domain.Cart, error)
	removeLineFunc func(ctx context.Context, cmd services.RemoveCartLineCommand) (domain.Cart, error)
	clearCartFunc  func(ctx context.Context, actor domain.ActorRef) error
	mergeFunc      func(ctx context.Context, cmd services.MergeCartsCommand) (domain.MergeResult, error)
}

func (s *stubCartService) GetCart(ctx context.Context, actor domain.ActorRef) (domain.Cart, error) {
	if s.getCartFunc == nil {
		return domain.Cart{Owner: actor}, nil
	}
	return s.getCartFunc(ctx, actor)
}

func (s *stubCartService) AddLine(ctx context.Context, cmd services.AddCartLineCommand) (domain.Cart, error) {
	if s.addLineFunc == nil {
		return domain.Cart{Owner: cmd.Actor}, nil
	}
	return s.addLineFunc(ctx, cmd)
}

func (s *stubCartService) UpdateLine(ctx context.Context, cmd services.UpdateCartLineCommand) (domain.Cart, error) {
	if s.updateLineFunc == nil {
		return domain.Cart{Owner: cmd.Actor}, nil
	}
	return s.updateLineFunc(ctx, cmd)
}

func (s *stubCartService) RemoveLine(ctx context.Context, cmd services.RemoveCartLineCommand) (domain.Cart, error) {
	if s.removeLineFunc == nil {
		return domain.Cart{Owner: cmd.Actor}, nil
	}
	return s.removeLineFunc(ctx, cmd)
}

func (s *stubCartService) ClearCart(ctx context.Context, actor domain.ActorRef) error {
	if s.clearCartFunc == nil {
		return nil
	}
	return s.clearCartFunc(ctx, actor)
}

func (s *stubCartService) MergeCarts(ctx context.Context, cmd services.MergeCartsCommand) (domain.MergeResult, error) {
	if s.mergeFunc == nil {
		return domain.MergeResult{Cart: domain.Cart{Owner: cmd.Target}}, nil
	}
	return s.mergeFunc(ctx, cmd)
}

type stubOrderService struct {
	createFunc       func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error)
	getFunc          func(ctx context.Context, query services.GetOrderQuery) (domain.Order, error)
	listFunc         func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[domain.Order], error)
	updateStatusFunc func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error)
	cancelFunc       func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createFunc == nil {
		return domain.Order{}, nil
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, query services.GetOrderQuery) (domain.Order, error) {
	if s.getFunc == nil {
		return domain.Order{}, nil
	}
	return s.getFunc(ctx, query)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Order]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
	if s.updateStatusFunc == nil {
		return domain.Order{}, nil
	}
	return s.updateStatusFunc(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	if s.cancelFunc == nil {
		return domain.Order{}, nil
	}
	return s.cancelFunc(ctx, cmd)
}

type stubCatalogService struct {
	getFunc    func(ctx context.Context, productID string) (domain.Product, error)
	listFunc   func(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[domain.Product], error)
	upsertFunc func(ctx context.Context, cmd services.UpsertProductCommand) (domain.Product, error)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if s.getFunc == nil {
		return domain.Product{}, nil
	}
	return s.getFunc(ctx, productID)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Product]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubCatalogService) UpsertProduct(ctx context.Context, cmd services.UpsertProductCommand) (domain.Product, error) {
	if s.upsertFunc == nil {
		return domain.Product{}, nil
	}
	return s.upsertFunc(ctx, cmd)
}

type stubStockService struct {
	availableFunc func(ctx context.Context, productID string) (int, error)
	decrementFunc func(ctx context.Context, cmd services.StockAdjustCommand) (domain.StockEntry, error)
	incrementFunc func(ctx context.Context, cmd services.StockAdjustCommand) (domain.StockEntry, error)
	setFunc       func(ctx context.Context, cmd services.StockSetCommand) (domain.StockEntry, error)
}

func (s *stubStockService) Available(ctx context.Context, productID string) (int, error) {
	if s.availableFunc == nil {
		return 0, nil
	}
	return s.availableFunc(ctx, productID)
}

func (s *stubStockService) Decrement(ctx context.Context, cmd services.StockAdjustCommand) (domain.StockEntry, error) {
	if s.decrementFunc == nil {
		return domain.StockEntry{}, nil
	}
	return s.decrementFunc(ctx, cmd)
}

func (s *stubStockService) Increment(ctx context.Context, cmd services.StockAdjustCommand) (domain.StockEntry, error) {
	if s.incrementFunc == nil {
		return domain.StockEntry{}, nil
	}
	return s.incrementFunc(ctx, cmd)
}

func (s *stubStockService) SetQuantity(ctx context.Context, cmd services.StockSetCommand) (domain.StockEntry, error) {
	if s.setFunc == nil {
		return domain.StockEntry{}, nil
	}
	return s.setFunc(ctx, cmd)
}

type stubSystemService struct {
	reportFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.reportFunc == nil {
		return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
	}
	return s.reportFunc(ctx)
}
