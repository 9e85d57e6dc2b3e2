package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uptownstitch/storefront/internal/domain"
	"github.com/uptownstitch/storefront/internal/service"
	"github.com/uptownstitch/storefront/pkg/httputil"
	"github.com/uptownstitch/storefront/pkg/validator"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request / response DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
// Price and display fields come from the catalog, never from the client.
type AddItemRequest struct {
	ProductID domain.ProductID `json:"product_id" validate:"required"`
}

// UpdateQuantityRequest is the JSON request body for setting a line's
// quantity. Zero or negative removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CountResponse feeds the navbar badge.
type CountResponse struct {
	LineCount int `json:"line_count"`
	ItemCount int `json:"item_count"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	snap := h.service.GetCart(r.Context(), sessionIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, snap)
}

// GetCount handles GET /api/v1/cart/count
func (h *CartHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	snap := h.service.GetCart(r.Context(), sessionIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, CountResponse{LineCount: snap.LineCount, ItemCount: snap.ItemCount})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	snap, err := h.service.AddItem(r.Context(), sessionIDFromContext(r.Context()), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, snap)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	productID := domain.ProductID(chi.URLParam(r, "productId"))
	snap, err := h.service.UpdateQuantity(r.Context(), sessionIDFromContext(r.Context()), productID, *req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, snap)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := domain.ProductID(chi.URLParam(r, "productId"))
	snap, err := h.service.RemoveItem(r.Context(), sessionIDFromContext(r.Context()), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, snap)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	snap := h.service.ClearCart(r.Context(), sessionIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, snap)
}

// decodeBody decodes and validates a JSON body into dst, writing a 400 and
// returning false when that fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
