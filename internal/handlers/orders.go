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

const maxOrderBodySize = 32 * 1024

// OrderHandlers exposes checkout and order lifecycle endpoints for the
// current actor.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs handlers backed by the provided order service.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.ShippingAddress == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shippingAddress is required", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		Actor:           actor,
		ShippingAddress: decodeAddressPayload(*req.ShippingAddress),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
	}
	if req.BillingAddress != nil {
		billing := decodeAddressPayload(*req.BillingAddress)
		cmd.BillingAddress = &billing
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		cmd.Notes = &notes
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	paging, err := paginationFromQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter := services.OrderListFilter{
		Owner:      actor,
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

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{OrderID: orderID, Actor: actor})
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderBodySize)
	switch {
	case err == nil:
		if decodeErr := json.Unmarshal(body, &req); decodeErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
		// A bare cancel without a reason is allowed.
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Actor:   actor,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireActor(ctx context.Context, w http.ResponseWriter) (domain.ActorRef, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	actor, ok := auth.ActorFromContext(ctx)
	if !ok || actor.IsZero() {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return actor, true
}

func writeOrderServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderAccessDenied):
		httpx.WriteError(ctx, w, httpx.NewError("order_access_denied", "order does not belong to the caller", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict))
	case errors.Is(err, services.ErrStockInsufficient):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotCancellable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_cancellable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

func orderStatusesFromQuery(r *http.Request) ([]domain.OrderStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]domain.OrderStatus, 0, len(parts))
	for _, part := range parts {
		status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(part)))
		if status == "" {
			continue
		}
		switch status {
		case domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusProcessing,
			domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled:
			statuses = append(statuses, status)
		default:
			return nil, errors.New("unknown order status: " + string(status))
		}
	}
	return statuses, nil
}

type createOrderRequest struct {
	ShippingAddress *addressPayload `json:"shippingAddress"`
	BillingAddress  *addressPayload `json:"billingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Notes           string          `json:"notes"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type orderPayload struct {
	ID              string                `json:"id"`
	OrderNumber     string                `json:"orderNumber"`
	Owner           string                `json:"owner"`
	Lines           []orderLinePayload    `json:"lines"`
	ShippingAddress addressPayload        `json:"shippingAddress"`
	BillingAddress  *addressPayload       `json:"billingAddress,omitempty"`
	Payment         orderPaymentPayload   `json:"payment"`
	Subtotal        int64                 `json:"subtotal"`
	ShippingCost    int64                 `json:"shippingCost"`
	Tax             int64                 `json:"tax"`
	Total           int64                 `json:"total"`
	Status          string                `json:"status"`
	StatusHistory   []statusChangePayload `json:"statusHistory"`
	Notes           string                `json:"notes,omitempty"`
	DeliveredAt     string                `json:"deliveredAt,omitempty"`
	CancelledAt     string                `json:"cancelledAt,omitempty"`
	CancelReason    string                `json:"cancelReason,omitempty"`
	RestorePending  []string              `json:"restorePending,omitempty"`
	CreatedAt       string                `json:"createdAt,omitempty"`
	UpdatedAt       string                `json:"updatedAt,omitempty"`
}

type orderLinePayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	LineTotal int64  `json:"lineTotal"`
}

type orderPaymentPayload struct {
	Method string `json:"method"`
	Status string `json:"status"`
}

type statusChangePayload struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
	At     string `json:"at"`
}

type addressPayload struct {
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func buildOrderListResponse(page domain.CursorPage[domain.Order]) orderListResponse {
	resp := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		resp.Orders = append(resp.Orders, buildOrderPayload(order))
	}
	return resp
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Owner:           order.Owner.String(),
		Lines:           make([]orderLinePayload, 0, len(order.Lines)),
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		Payment: orderPaymentPayload{
			Method: order.Payment.Method,
			Status: string(order.Payment.Status),
		},
		Subtotal:       order.Subtotal,
		ShippingCost:   order.ShippingCost,
		Tax:            order.Tax,
		Total:          order.Total,
		Status:         string(order.Status),
		StatusHistory:  make([]statusChangePayload, 0, len(order.StatusHistory)),
		DeliveredAt:    formatTimePointer(order.DeliveredAt),
		CancelledAt:    formatTimePointer(order.CancelledAt),
		RestorePending: order.RestorePending,
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
	}
	if order.BillingAddress != nil {
		billing := buildAddressPayload(*order.BillingAddress)
		payload.BillingAddress = &billing
	}
	if order.Notes != nil {
		payload.Notes = *order.Notes
	}
	if order.CancelReason != nil {
		payload.CancelReason = *order.CancelReason
	}
	for _, line := range order.Lines {
		payload.Lines = append(payload.Lines, orderLinePayload{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}
	for _, change := range order.StatusHistory {
		payload.StatusHistory = append(payload.StatusHistory, statusChangePayload{
			Status: string(change.Status),
			Note:   change.Note,
			At:     formatTime(change.At),
		})
	}
	return payload
}

func buildAddressPayload(addr domain.Address) addressPayload {
	payload := addressPayload{
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		City:       addr.City,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
	if addr.Line2 != nil {
		payload.Line2 = *addr.Line2
	}
	if addr.State != nil {
		payload.State = *addr.State
	}
	if addr.Phone != nil {
		payload.Phone = *addr.Phone
	}
	return payload
}

func decodeAddressPayload(payload addressPayload) domain.Address {
	addr := domain.Address{
		Recipient:  strings.TrimSpace(payload.Recipient),
		Line1:      strings.TrimSpace(payload.Line1),
		City:       strings.TrimSpace(payload.City),
		PostalCode: strings.TrimSpace(payload.PostalCode),
		Country:    strings.TrimSpace(payload.Country),
	}
	if value := strings.TrimSpace(payload.Line2); value != "" {
		addr.Line2 = &value
	}
	if value := strings.TrimSpace(payload.State); value != "" {
		addr.State = &value
	}
	if value := strings.TrimSpace(payload.Phone); value != "" {
		addr.Phone = &value
	}
	return addr
}
