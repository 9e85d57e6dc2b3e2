package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/uptownstitch/storefront/internal/domain"
	"github.com/uptownstitch/storefront/internal/service"
	"github.com/uptownstitch/storefront/pkg/httputil"
	"github.com/uptownstitch/storefront/pkg/validator"
)

// CheckoutHandler handles POST /api/v1/checkout.
type CheckoutHandler struct {
	carts    *service.CartService
	checkout *service.CheckoutService
	logger   *slog.Logger
}

func NewCheckoutHandler(carts *service.CartService, checkout *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{carts: carts, checkout: checkout, logger: logger}
}

// PlaceOrder validates the checkout form and submits the session's cart.
// Field-level problems come back as VALIDATION_ERROR with a fields map.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var form domain.CheckoutForm
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeJSON(r, &form); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	store := h.carts.Store(r.Context(), sessionIDFromContext(r.Context()))
	order, err := h.checkout.PlaceOrder(r.Context(), store, form)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, order)
}

// writeServiceError renders validation failures with their fields and
// everything else through httputil.WriteError.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, err)
		return
	}
	httputil.WriteError(w, r, err, logger)
}
