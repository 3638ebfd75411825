package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/services"
)

func newOrderRouter(service services.OrderService) chi.Router {
	router := chi.NewRouter()
	router.Route("/orders", NewOrderHandlers(service).Routes)
	return router
}

func sampleOrder(owner domain.ActorRef) domain.Order {
	created := time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:          "ord_01HTEST",
		OrderNumber: "LM-2026-000042",
		Owner:       owner,
		Lines: []domain.OrderLine{
			{ProductID: "prod-1", Name: "Desk Lamp", Quantity: 2, UnitPrice: 4500, LineTotal: 9000},
		},
		ShippingAddress: domain.Address{
			Recipient:  "A. Customer",
			Line1:      "1 Main St",
			City:       "Springfield",
			PostalCode: "12345",
			Country:    "US",
		},
		Payment:      domain.OrderPayment{Method: "card", Status: domain.PaymentStatusPending},
		Subtotal:     9000,
		ShippingCost: 500,
		Tax:          760,
		Total:        10260,
		Status:       domain.OrderStatusPending,
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusPending, Note: "order placed", At: created},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	service := &stubOrderService{
		createFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			if cmd.Actor != "user-7" {
				t.Fatalf("unexpected actor %q", cmd.Actor)
			}
			if cmd.ShippingAddress.Recipient != "A. Customer" {
				t.Fatalf("unexpected recipient %q", cmd.ShippingAddress.Recipient)
			}
			if cmd.PaymentMethod != "card" {
				t.Fatalf("unexpected payment method %q", cmd.PaymentMethod)
			}
			if cmd.Notes == nil || *cmd.Notes != "leave at door" {
				t.Fatalf("expected notes to be forwarded")
			}
			return sampleOrder(cmd.Actor), nil
		},
	}

	body := strings.NewReader(`{
		"shippingAddress": {"recipient":"A. Customer","line1":"1 Main St","city":"Springfield","postalCode":"12345","country":"US"},
		"paymentMethod": "card",
		"notes": "leave at door"
	}`)
	req := withUserIdentity(httptest.NewRequest(http.MethodPost, "/orders", body), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.OrderNumber != "LM-2026-000042" {
		t.Fatalf("unexpected order number %q", resp.Order.OrderNumber)
	}
	if resp.Order.Total != 10260 {
		t.Fatalf("unexpected total %d", resp.Order.Total)
	}
	if len(resp.Order.StatusHistory) != 1 {
		t.Fatalf("unexpected status history %+v", resp.Order.StatusHistory)
	}
}

func TestOrderHandlersCreateOrderRequiresShippingAddress(t *testing.T) {
	req := withUserIdentity(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"paymentMethod":"card"}`)), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(&stubOrderService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersCreateOrderEmptyCart(t *testing.T) {
	service := &stubOrderService{
		createFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderEmptyCart
		},
	}

	body := strings.NewReader(`{"shippingAddress":{"recipient":"A","line1":"1","city":"S","postalCode":"1","country":"US"}}`)
	req := withUserIdentity(httptest.NewRequest(http.MethodPost, "/orders", body), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "cart_empty" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestOrderHandlersCreateOrderInsufficientStock(t *testing.T) {
	service := &stubOrderService{
		createFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrStockInsufficient
		},
	}

	body := strings.NewReader(`{"shippingAddress":{"recipient":"A","line1":"1","city":"S","postalCode":"1","country":"US"}}`)
	req := withUserIdentity(httptest.NewRequest(http.MethodPost, "/orders", body), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersFiltersStatus(t *testing.T) {
	service := &stubOrderService{
		listFunc: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			if filter.Owner != "user-7" {
				t.Fatalf("unexpected owner %q", filter.Owner)
			}
			if len(filter.Status) != 2 || filter.Status[0] != domain.OrderStatusPending || filter.Status[1] != domain.OrderStatusShipped {
				t.Fatalf("unexpected status filter %+v", filter.Status)
			}
			if filter.Pagination.PageSize != 5 {
				t.Fatalf("unexpected page size %d", filter.Pagination.PageSize)
			}
			return domain.CursorPage[domain.Order]{
				Items:         []domain.Order{sampleOrder(filter.Owner)},
				NextPageToken: "next-token",
			}, nil
		},
	}

	req := withUserIdentity(httptest.NewRequest(http.MethodGet, "/orders?status=pending,shipped&pageSize=5", nil), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.NextPageToken != "next-token" {
		t.Fatalf("unexpected list response %+v", resp)
	}
}

func TestOrderHandlersListOrdersRejectsUnknownStatus(t *testing.T) {
	req := withUserIdentity(httptest.NewRequest(http.MethodGet, "/orders?status=bogus", nil), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(&stubOrderService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(ctx context.Context, query services.GetOrderQuery) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	}

	req := withUserIdentity(httptest.NewRequest(http.MethodGet, "/orders/ord_missing", nil), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderAccessDenied(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(ctx context.Context, query services.GetOrderQuery) (domain.Order, error) {
			if query.Admin {
				t.Fatalf("storefront reads must not set the admin flag")
			}
			return domain.Order{}, services.ErrOrderAccessDenied
		},
	}

	req := withUserIdentity(httptest.NewRequest(http.MethodGet, "/orders/ord_other", nil), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
			if cmd.OrderID != "ord_01HTEST" || cmd.Reason != "changed my mind" {
				t.Fatalf("unexpected cancel command %+v", cmd)
			}
			if cmd.Admin {
				t.Fatalf("storefront cancel must not set the admin flag")
			}
			order := sampleOrder(cmd.Actor)
			order.Status = domain.OrderStatusCancelled
			return order, nil
		},
	}

	body := strings.NewReader(`{"reason":"changed my mind"}`)
	req := withUserIdentity(httptest.NewRequest(http.MethodPost, "/orders/ord_01HTEST/cancel", body), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.Status != string(domain.OrderStatusCancelled) {
		t.Fatalf("unexpected status %q", resp.Order.Status)
	}
}

func TestOrderHandlersCancelNotCancellable(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotCancellable
		},
	}

	req := withUserIdentity(httptest.NewRequest(http.MethodPost, "/orders/ord_01HTEST/cancel", nil), "user-7")
	rr := httptest.NewRecorder()
	newOrderRouter(service).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}
