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

const maxCartBodySize = 16 * 1024

// CartHandlers exposes cart endpoints for the current actor. The actor may be
// an authenticated user or an anonymous session; merge additionally requires
// an authenticated user as the surviving cart owner.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs handlers backed by the provided cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{productID}", h.updateItem)
	r.Delete("/items/{productID}", h.removeItem)
	r.With(auth.RequireUser()).Post("/merge", h.mergeCarts)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, actor)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	var req cartItemRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.AddLine(ctx, services.AddCartLineCommand{
		Actor:     actor,
		ProductID: strings.TrimSpace(req.ProductID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	var req cartQuantityRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateLine(ctx, services.UpdateCartLineCommand{
		Actor:     actor,
		ProductID: productID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.RemoveLine(ctx, services.RemoveCartLineCommand{
		Actor:     actor,
		ProductID: productID,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, actor); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) mergeCarts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req mergeCartRequest
	body, err := readLimitedBody(r, maxCartBodySize)
	switch {
	case err == nil:
		if decodeErr := json.Unmarshal(body, &req); decodeErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
		// Merge may name the source session via header instead of a body.
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	source := strings.TrimSpace(req.SessionID)
	if source == "" {
		source = strings.TrimSpace(r.Header.Get(auth.SessionHeader))
	}
	if source == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "source session id is required", http.StatusBadRequest))
		return
	}

	result, err := h.carts.MergeCarts(ctx, services.MergeCartsCommand{
		Source: domain.ActorRef(source),
		Target: identity.Actor(),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, result.Cart)
	writeJSONResponse(w, http.StatusOK, mergeCartResponse{
		Cart:  buildCartPayload(result.Cart),
		Lines: buildMergeOutcomes(result.Lines),
	})
}

func (h *CartHandlers) requireActor(ctx context.Context, w http.ResponseWriter) (domain.ActorRef, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	actor, ok := auth.ActorFromContext(ctx)
	if !ok || actor.IsZero() {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return actor, true
}

func (h *CartHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxCartBodySize)
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

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrQuantityInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartLineNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_line_not_found", "cart line not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is not available for purchase", http.StatusConflict))
	case errors.Is(err, services.ErrStockInsufficient):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart operation failed", http.StatusInternalServerError))
	}
}

func setCartResponseHeaders(w http.ResponseWriter, cart domain.Cart) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	if !cart.LastUpdated.IsZero() {
		w.Header().Set("Last-Modified", cart.LastUpdated.UTC().Format(http.TimeFormat))
	}
	if !cart.ExpiresAt.IsZero() {
		w.Header().Set("Expires", cart.ExpiresAt.UTC().Format(http.TimeFormat))
	}
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type mergeCartResponse struct {
	Cart  cartPayload        `json:"cart"`
	Lines []mergeLinePayload `json:"lines"`
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type mergeCartRequest struct {
	SessionID string `json:"sessionId"`
}

type cartPayload struct {
	Owner       string            `json:"owner"`
	Lines       []cartLinePayload `json:"lines"`
	TotalItems  int               `json:"totalItems"`
	TotalAmount int64             `json:"totalAmount"`
	LastUpdated string            `json:"lastUpdated,omitempty"`
	ExpiresAt   string            `json:"expiresAt,omitempty"`
}

type cartLinePayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	ImageRef  string `json:"imageRef,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	LineTotal int64  `json:"lineTotal"`
	AddedAt   string `json:"addedAt,omitempty"`
}

type mergeLinePayload struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Merged    bool   `json:"merged"`
	Reason    string `json:"reason,omitempty"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	payload := cartPayload{
		Owner:       cart.Owner.String(),
		Lines:       make([]cartLinePayload, 0, len(cart.Lines)),
		TotalItems:  cart.TotalItems,
		TotalAmount: cart.TotalAmount,
		LastUpdated: formatTime(cart.LastUpdated),
		ExpiresAt:   formatTime(cart.ExpiresAt),
	}
	for _, line := range cart.Lines {
		payload.Lines = append(payload.Lines, cartLinePayload{
			ProductID: line.ProductID,
			Name:      line.Name,
			ImageRef:  line.ImageRef,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.UnitPrice * int64(line.Quantity),
			AddedAt:   formatTime(line.AddedAt),
		})
	}
	return payload
}

func buildMergeOutcomes(lines []domain.MergeLineOutcome) []mergeLinePayload {
	out := make([]mergeLinePayload, 0, len(lines))
	for _, line := range lines {
		out = append(out, mergeLinePayload{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Merged:    line.Merged,
			Reason:    line.Reason,
		})
	}
	return out
}
