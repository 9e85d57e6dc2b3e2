package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/uptownstitch/storefront/internal/cart"
	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
	"github.com/uptownstitch/storefront/pkg/validator"
)

// CircuitOpenFallback is the fallback for the storefront API circuit breaker.
// While the circuit is open callers get a structured 503 instead of the raw
// ErrCircuitOpen.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("storefront API is temporarily unavailable, please retry after 30 seconds")
}

// MessageSubmitter delivers a message to the storefront API.
type MessageSubmitter interface {
	Submit(ctx context.Context, msg domain.Message) (*domain.Receipt, error)
}

// CheckoutService turns a cart and a checkout form into an order message.
type CheckoutService struct {
	messages MessageSubmitter
	logger   *slog.Logger
	now      func() time.Time
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(messages MessageSubmitter, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		messages: messages,
		logger:   logger,
		now:      time.Now,
	}
}

// PlaceOrder validates form, submits the store's cart as an order message and
// clears the cart once the API has accepted it. On any failure the cart is
// left exactly as it was. Validation failures come back as
// *validator.ValidationError.
func (s *CheckoutService) PlaceOrder(ctx context.Context, store *cart.Store, form domain.CheckoutForm) (*domain.OrderSubmission, error) {
	form.Normalize()
	if err := validator.Validate(form); err != nil {
		return nil, err
	}

	var order *domain.OrderSubmission
	_, err := store.SubmitAndClear(ctx, func(ctx context.Context, state domain.CartState) error {
		if state.IsEmpty() {
			return apperrors.InvalidInput("cart is empty")
		}

		receipt, err := s.messages.Submit(ctx, domain.Message{
			Name:    form.FullName(),
			Email:   form.Email,
			Phone:   form.Phone,
			Subject: domain.OrderSubjectLine,
			Message: domain.FormatOrderMessage(form.FirstName, form.LastName, state),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "order submission failed",
				slog.String("session_id", store.SessionID()),
				slog.Any("customer", form),
				slog.String("error", err.Error()),
			)
			return apperrors.SubmissionFailed("your order could not be placed, please try again", err)
		}

		order = &domain.OrderSubmission{
			Status:      domain.OrderSubmitted,
			MessageID:   receipt.ID,
			LineCount:   state.LineCount(),
			ItemCount:   state.ItemCount(),
			Subtotal:    state.Subtotal(),
			SubmittedAt: s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order submitted",
		slog.String("session_id", store.SessionID()),
		slog.Any("customer", form),
		slog.String("message_id", string(order.MessageID)),
		slog.String("subtotal", order.Subtotal.StringFixed(2)),
	)

	return order, nil
}
