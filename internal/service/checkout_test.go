package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uptownstitch/storefront/internal/cart"
	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
	"github.com/uptownstitch/storefront/pkg/validator"
)

func validForm() domain.CheckoutForm {
	return domain.CheckoutForm{
		FirstName:  " Ada ",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		Phone:      "555-0100",
		Address:    "12 Analytical Way",
		City:       "London",
		State:      "LDN",
		ZipCode:    "10001",
		CardName:   "Ada Lovelace",
		CardNumber: "4111 1111 1111 1111",
		ExpiryDate: "12/29",
		CVV:        "123",
	}
}

func filledStore(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.NewStore("s1", domain.CartState{}, newTestLogger())
	ctx := context.Background()
	s.AddItem(ctx, *product("1", "Ottoman", "20.00", true))
	s.AddItem(ctx, *product("1", "Ottoman", "20.00", true))
	s.AddItem(ctx, *product("2", "Cushion", "15", true))
	return s
}

func newTestCheckoutService(messages *mockMessageSubmitter) *CheckoutService {
	svc := NewCheckoutService(messages, newTestLogger())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// ============================================================================
// PlaceOrder
// ============================================================================

func TestPlaceOrder_Success(t *testing.T) {
	messages := &mockMessageSubmitter{}
	messages.On("Submit", mock.Anything, domain.Message{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Phone:   "555-0100",
		Subject: "New Order",
		Message: "Order placed by Ada Lovelace. Items: Ottoman (x2), Cushion (x1). Total: $55.00",
	}).Return(&domain.Receipt{Message: "ok", ID: "77"}, nil).Once()

	store := filledStore(t)
	order, err := newTestCheckoutService(messages).PlaceOrder(context.Background(), store, validForm())

	require.NoError(t, err)
	assert.Equal(t, domain.OrderSubmitted, order.Status)
	assert.Equal(t, domain.MessageID("77"), order.MessageID)
	assert.Equal(t, 2, order.LineCount)
	assert.Equal(t, 3, order.ItemCount)
	assert.Equal(t, "55.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), order.SubmittedAt)

	assert.Empty(t, store.Snapshot().Lines, "cart is cleared after a successful order")
	messages.AssertExpectations(t)
}

func TestPlaceOrder_CardDataNeverSent(t *testing.T) {
	messages := &mockMessageSubmitter{}
	messages.On("Submit", mock.Anything, mock.MatchedBy(func(m domain.Message) bool {
		return !containsAny(m.Message+m.Name+m.Phone, "4111", "12/29", "123")
	})).Return(&domain.Receipt{ID: "1"}, nil).Once()

	_, err := newTestCheckoutService(messages).PlaceOrder(context.Background(), filledStore(t), validForm())

	require.NoError(t, err)
	messages.AssertExpectations(t)
}

func TestPlaceOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CheckoutForm)
		field  string
	}{
		{"missing first name", func(f *domain.CheckoutForm) { f.FirstName = "   " }, "first_name"},
		{"bad email", func(f *domain.CheckoutForm) { f.Email = "not-an-email" }, "email"},
		{"short card", func(f *domain.CheckoutForm) { f.CardNumber = "4111 1111" }, "card_number"},
		{"card with letters", func(f *domain.CheckoutForm) { f.CardNumber = "4111a11111111111" }, "card_number"},
		{"cvv too long", func(f *domain.CheckoutForm) { f.CVV = "12345" }, "cvv"},
		{"cvv too short", func(f *domain.CheckoutForm) { f.CVV = "12" }, "cvv"},
		{"missing expiry", func(f *domain.CheckoutForm) { f.ExpiryDate = "" }, "expiry_date"},
		{"missing zip", func(f *domain.CheckoutForm) { f.ZipCode = "" }, "zip_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := &mockMessageSubmitter{}
			store := filledStore(t)
			form := validForm()
			tt.mutate(&form)

			_, err := newTestCheckoutService(messages).PlaceOrder(context.Background(), store, form)

			var valErr *validator.ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Contains(t, valErr.Fields(), tt.field)
			assert.Equal(t, 2, store.Snapshot().LineCount)
			messages.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}
}

func TestPlaceOrder_FourDigitCVV(t *testing.T) {
	messages := &mockMessageSubmitter{}
	messages.On("Submit", mock.Anything, mock.Anything).Return(&domain.Receipt{ID: "1"}, nil)

	form := validForm()
	form.CVV = "1234"
	_, err := newTestCheckoutService(messages).PlaceOrder(context.Background(), filledStore(t), form)

	assert.NoError(t, err)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	messages := &mockMessageSubmitter{}
	store := cart.NewStore("s1", domain.CartState{}, newTestLogger())

	_, err := newTestCheckoutService(messages).PlaceOrder(context.Background(), store, validForm())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "cart is empty")
	messages.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestPlaceOrder_SubmissionFailureKeepsCart(t *testing.T) {
	messages := &mockMessageSubmitter{}
	cause := errors.New("connection refused")
	messages.On("Submit", mock.Anything, mock.Anything).Return(nil, cause)

	store := filledStore(t)
	before := store.Snapshot()

	_, err := newTestCheckoutService(messages).PlaceOrder(context.Background(), store, validForm())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSubmissionFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, 502, apperrors.HTTPStatus(err))
	assert.Equal(t, before.Lines, store.Snapshot().Lines)
}

func TestPlaceOrder_ClearNotifiesListeners(t *testing.T) {
	messages := &mockMessageSubmitter{}
	messages.On("Submit", mock.Anything, mock.Anything).Return(&domain.Receipt{ID: "1"}, nil)

	store := filledStore(t)
	var ops []cart.Operation
	store.Subscribe(func(_ context.Context, ch cart.Change) { ops = append(ops, ch.Operation) })

	_, err := newTestCheckoutService(messages).PlaceOrder(context.Background(), store, validForm())

	require.NoError(t, err)
	assert.Equal(t, []cart.Operation{cart.OpClear}, ops)
}

func TestCircuitOpenFallback(t *testing.T) {
	resp, err := CircuitOpenFallback(context.Background(), errors.New("circuit breaker is open"))

	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
