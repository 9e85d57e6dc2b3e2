package http

import (
	"log/slog"
	"net/http"

	"github.com/uptownstitch/storefront/internal/domain"
	"github.com/uptownstitch/storefront/internal/service"
	"github.com/uptownstitch/storefront/pkg/httputil"
	"github.com/uptownstitch/storefront/pkg/validator"
)

type ContactHandler struct {
	service *service.ContactService
	logger  *slog.Logger
}

func NewContactHandler(svc *service.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{service: svc, logger: logger}
}

// Submit handles POST /api/v1/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form domain.ContactForm
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeJSON(r, &form); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	receipt, err := h.service.Submit(r.Context(), form)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, receipt)
}
