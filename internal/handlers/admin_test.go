package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/services"
)

func newAdminRouter(orders services.OrderService, catalog services.CatalogService, stock services.StockService) chi.Router {
	router := chi.NewRouter()
	router.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		NewAdminHandlers(orders, catalog, stock).Routes(r)
	})
	return router
}

func withAdminIdentity(req *http.Request) *http.Request {
	identity := &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestAdminHandlersRequireAdminRole(t *testing.T) {
	req := withUserIdentity(httptest.NewRequest(http.MethodGet, "/admin/orders", nil), "user-7")
	rr := httptest.NewRecorder()
	newAdminRouter(&stubOrderService{}, &stubCatalogService{}, &stubStockService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestAdminHandlersListOrdersAllOwners(t *testing.T) {
	service := &stubOrderService{
		listFunc: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			if !filter.Owner.IsZero() {
				t.Fatalf("expected unscoped listing, got owner %q", filter.Owner)
			}
			return domain.CursorPage[domain.Order]{Items: []domain.Order{sampleOrder("user-7")}}, nil
		},
	}

	req := withAdminIdentity(httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	rr := httptest.NewRecorder()
	newAdminRouter(service, &stubCatalogService{}, &stubStockService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersUpdateOrderStatus(t *testing.T) {
	service := &stubOrderService{
		updateStatusFunc: func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
			if cmd.OrderID != "ord_01HTEST" {
				t.Fatalf("unexpected order id %q", cmd.OrderID)
			}
			if cmd.TargetStatus != domain.OrderStatusConfirmed {
				t.Fatalf("unexpected target status %q", cmd.TargetStatus)
			}
			if cmd.Note != "payment verified" {
				t.Fatalf("unexpected note %q", cmd.Note)
			}
			if cmd.Override {
				t.Fatalf("override must default to false")
			}
			order := sampleOrder("user-7")
			order.Status = cmd.TargetStatus
			return order, nil
		},
	}

	body := strings.NewReader(`{"status":"confirmed","note":"payment verified"}`)
	req := withAdminIdentity(httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_01HTEST/status", body))
	rr := httptest.NewRecorder()
	newAdminRouter(service, &stubCatalogService{}, &stubStockService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.Status != string(domain.OrderStatusConfirmed) {
		t.Fatalf("unexpected status %q", resp.Order.Status)
	}
}

func TestAdminHandlersUpdateOrderStatusInvalidTransition(t *testing.T) {
	service := &stubOrderService{
		updateStatusFunc: func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidState
		},
	}

	body := strings.NewReader(`{"status":"delivered"}`)
	req := withAdminIdentity(httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_01HTEST/status", body))
	rr := httptest.NewRecorder()
	newAdminRouter(service, &stubCatalogService{}, &stubStockService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminHandlersCancelOrderSetsAdminFlag(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
			if !cmd.Admin {
				t.Fatalf("admin cancel must set the admin flag")
			}
			order := sampleOrder("user-7")
			order.Status = domain.OrderStatusCancelled
			return order, nil
		},
	}

	req := withAdminIdentity(httptest.NewRequest(http.MethodPost, "/admin/orders/ord_01HTEST/cancel", nil))
	rr := httptest.NewRecorder()
	newAdminRouter(service, &stubCatalogService{}, &stubStockService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersUpsertProduct(t *testing.T) {
	service := &stubCatalogService{
		upsertFunc: func(ctx context.Context, cmd services.UpsertProductCommand) (domain.Product, error) {
			if cmd.ID != "prod-1" {
				t.Fatalf("unexpected product id %q", cmd.ID)
			}
			if cmd.InitialStock == nil || *cmd.InitialStock != 25 {
				t.Fatalf("expected initial stock 25, got %+v", cmd.InitialStock)
			}
			return domain.Product{ID: cmd.ID, Name: cmd.Name, Price: cmd.Price, IsActive: cmd.IsActive, StockHint: 25}, nil
		},
	}

	body := strings.NewReader(`{"name":"Desk Lamp","price":4500,"isActive":true,"initialStock":25}`)
	req := withAdminIdentity(httptest.NewRequest(http.MethodPut, "/admin/products/prod-1", body))
	rr := httptest.NewRecorder()
	newAdminRouter(&stubOrderService{}, service, &stubStockService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Product.StockHint != 25 {
		t.Fatalf("unexpected stock hint %d", resp.Product.StockHint)
	}
}

func TestAdminHandlersSetStock(t *testing.T) {
	service := &stubStockService{
		setFunc: func(ctx context.Context, cmd services.StockSetCommand) (domain.StockEntry, error) {
			if cmd.ProductID != "prod-1" || cmd.Quantity != 40 || cmd.Reason != "restock" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return domain.StockEntry{ProductID: cmd.ProductID, Quantity: cmd.Quantity}, nil
		},
	}

	body := strings.NewReader(`{"quantity":40,"reason":"restock"}`)
	req := withAdminIdentity(httptest.NewRequest(http.MethodPut, "/admin/stock/prod-1", body))
	rr := httptest.NewRecorder()
	newAdminRouter(&stubOrderService{}, &stubCatalogService{}, service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp stockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stock.Quantity != 40 {
		t.Fatalf("unexpected quantity %d", resp.Stock.Quantity)
	}
}

func TestAdminHandlersDecrementStockInsufficient(t *testing.T) {
	service := &stubStockService{
		decrementFunc: func(ctx context.Context, cmd services.StockAdjustCommand) (domain.StockEntry, error) {
			return domain.StockEntry{}, services.ErrStockInsufficient
		},
	}

	body := strings.NewReader(`{"amount":5,"reason":"damage"}`)
	req := withAdminIdentity(httptest.NewRequest(http.MethodPost, "/admin/stock/prod-1/decrement", body))
	rr := httptest.NewRecorder()
	newAdminRouter(&stubOrderService{}, &stubCatalogService{}, service).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminHandlersIncrementStock(t *testing.T) {
	service := &stubStockService{
		incrementFunc: func(ctx context.Context, cmd services.StockAdjustCommand) (domain.StockEntry, error) {
			if cmd.Amount != 10 {
				t.Fatalf("unexpected amount %d", cmd.Amount)
			}
			return domain.StockEntry{ProductID: cmd.ProductID, Quantity: 17}, nil
		},
	}

	body := strings.NewReader(`{"amount":10,"reason":"return"}`)
	req := withAdminIdentity(httptest.NewRequest(http.MethodPost, "/admin/stock/prod-1/increment", body))
	rr := httptest.NewRecorder()
	newAdminRouter(&stubOrderService{}, &stubCatalogService{}, service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersGetStock(t *testing.T) {
	service := &stubStockService{
		availableFunc: func(ctx context.Context, productID string) (int, error) {
			if productID != "prod-1" {
				t.Fatalf("unexpected product id %q", productID)
			}
			return 7, nil
		},
	}

	req := withAdminIdentity(httptest.NewRequest(http.MethodGet, "/admin/stock/prod-1", nil))
	rr := httptest.NewRecorder()
	newAdminRouter(&stubOrderService{}, &stubCatalogService{}, service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp stockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stock.Quantity != 7 {
		t.Fatalf("unexpected quantity %d", resp.Stock.Quantity)
	}
}
