package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/auth"
	"github.com/lumenmarket/api/internal/platform/httpx"
	"github.com/lumenmarket/api/internal/services"
)

const maxAdminBodySize = 32 * 1024

// AdminHandlers exposes back-office endpoints for order management, catalog
// seeding, and direct stock ledger adjustments. All routes require the admin
// role.
type AdminHandlers struct {
	orders  services.OrderService
	catalog services.CatalogService
	stock   services.StockService
}

// NewAdminHandlers constructs the admin handler set.
func NewAdminHandlers(orders services.OrderService, catalog services.CatalogService, stock services.StockService) *AdminHandlers {
	return &AdminHandlers{
		orders:  orders,
		catalog: catalog,
		stock:   stock,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
	r.Post("/orders/{orderID}/cancel", h.cancelOrder)
	r.Get("/products", h.listProducts)
	r.Put("/products/{productID}", h.upsertProduct)
	r.Get("/stock/{productID}", h.getStock)
	r.Put("/stock/{productID}", h.setStock)
	r.Post("/stock/{productID}/increment", h.incrementStock)
	r.Post("/stock/{productID}/decrement", h.decrementStock)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	paging, err := paginationFromQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter := services.OrderListFilter{
		Owner:      domain.ActorRef(strings.TrimSpace(r.URL.Query().Get("owner"))),
		Pagination: paging,
	}
	statuses, err := orderStatusesFromQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.Status = statuses

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Actor:   adminActor(ctx),
		Admin:   true,
	})
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateOrderStatusRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:      strings.TrimSpace(chi.URLParam(r, "orderID")),
		TargetStatus: domain.OrderStatus(status),
		Actor:        adminActor(ctx),
		Note:         strings.TrimSpace(req.Note),
		Override:     req.Override,
	})
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxAdminBodySize)
	switch {
	case err == nil:
		if decodeErr := json.Unmarshal(body, &req); decodeErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Actor:   adminActor(ctx),
		Reason:  strings.TrimSpace(req.Reason),
		Admin:   true,
	})
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	paging, err := paginationFromQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.catalog.ListProducts(ctx, services.ProductListFilter{
		Pagination: paging,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildProductListResponse(page))
}

func (h *AdminHandlers) upsertProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertProductRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.UpsertProductCommand{
		ID:          strings.TrimSpace(chi.URLParam(r, "productID")),
		SKU:         strings.TrimSpace(req.SKU),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		ImageRef:    strings.TrimSpace(req.ImageRef),
		Price:       req.Price,
		DiscountPct: req.DiscountPct,
		IsActive:    req.IsActive,
	}
	if req.InitialStock != nil {
		stock := *req.InitialStock
		cmd.InitialStock = &stock
	}

	product, err := h.catalog.UpsertProduct(ctx, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stock_service_unavailable", "stock service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	available, err := h.stock.Available(ctx, productID)
	if err != nil {
		writeStockError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, stockResponse{Stock: stockPayload{
		ProductID: productID,
		Quantity:  available,
	}})
}

func (h *AdminHandlers) setStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stock_service_unavailable", "stock service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req setStockRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	entry, err := h.stock.SetQuantity(ctx, services.StockSetCommand{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		Quantity:  req.Quantity,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeStockError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, stockResponse{Stock: buildStockPayload(entry)})
}

func (h *AdminHandlers) incrementStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, false)
}

func (h *AdminHandlers) decrementStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, true)
}

func (h *AdminHandlers) adjustStock(w http.ResponseWriter, r *http.Request, decrement bool) {
	ctx := r.Context()
	if h.stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stock_service_unavailable", "stock service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req adjustStockRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.StockAdjustCommand{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		Amount:    req.Amount,
		Reason:    strings.TrimSpace(req.Reason),
	}

	var entry domain.StockEntry
	var err error
	if decrement {
		entry, err = h.stock.Decrement(ctx, cmd)
	} else {
		entry, err = h.stock.Increment(ctx, cmd)
	}
	if err != nil {
		writeStockError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, stockResponse{Stock: buildStockPayload(entry)})
}

func (h *AdminHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func writeStockError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrStockInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrStockInsufficient):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrStockUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("stock_service_unavailable", "stock service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("stock_error", "stock operation failed", http.StatusInternalServerError))
	}
}

// adminActor resolves the acting admin identity for audit notes on status
// history. Falls back to empty when middleware did not attach one.
func adminActor(ctx context.Context) domain.ActorRef {
	if actor, ok := auth.ActorFromContext(ctx); ok {
		return actor
	}
	return ""
}

type updateOrderStatusRequest struct {
	Status   string `json:"status"`
	Note     string `json:"note"`
	Override bool   `json:"override"`
}

type upsertProductRequest struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageRef     string `json:"imageRef"`
	Price        int64  `json:"price"`
	DiscountPct  int    `json:"discountPct"`
	IsActive     bool   `json:"isActive"`
	InitialStock *int   `json:"initialStock"`
}

type setStockRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type adjustStockRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

type stockResponse struct {
	Stock stockPayload `json:"stock"`
}

type stockPayload struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func buildStockPayload(entry domain.StockEntry) stockPayload {
	return stockPayload{
		ProductID: entry.ProductID,
		Quantity:  entry.Quantity,
		UpdatedAt: formatTime(entry.UpdatedAt),
	}
}
