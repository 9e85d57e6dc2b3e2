package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
	"github.com/uptownstitch/storefront/pkg/validator"
)

func TestContactService_Submit_TrimsAndForwards(t *testing.T) {
	messages := &mockMessageSubmitter{}
	messages.On("Submit", mock.Anything, domain.Message{
		Name:    "Grace",
		Email:   "grace@example.com",
		Subject: "Hours",
		Message: "Are you open Sunday?",
	}).Return(&domain.Receipt{Message: "Contact form submitted successfully", ID: "9"}, nil)

	receipt, err := NewContactService(messages, newTestLogger()).Submit(context.Background(), domain.ContactForm{
		Name:    "  Grace ",
		Email:   "grace@example.com",
		Subject: "Hours ",
		Message: "\nAre you open Sunday?",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.MessageID("9"), receipt.ID)
	messages.AssertExpectations(t)
}

func TestContactService_Submit_Validation(t *testing.T) {
	messages := &mockMessageSubmitter{}

	_, err := NewContactService(messages, newTestLogger()).Submit(context.Background(), domain.ContactForm{
		Name:  "Grace",
		Email: "grace@",
	})

	var valErr *validator.ValidationError
	require.True(t, errors.As(err, &valErr))
	fields := valErr.Fields()
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "subject")
	assert.Contains(t, fields, "message")
	assert.NotContains(t, fields, "phone")
	messages.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestContactService_Submit_UpstreamAppErrorPassesThrough(t *testing.T) {
	messages := &mockMessageSubmitter{}
	messages.On("Submit", mock.Anything, mock.Anything).Return(nil, apperrors.InvalidInput("contact: email is required"))

	_, err := NewContactService(messages, newTestLogger()).Submit(context.Background(), domain.ContactForm{
		Name: "G", Email: "g@example.com", Subject: "s", Message: "m",
	})

	assert.Equal(t, 400, apperrors.HTTPStatus(err))
}

func TestContactService_Submit_TransportErrorIsBadGateway(t *testing.T) {
	messages := &mockMessageSubmitter{}
	messages.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: refused"))

	_, err := NewContactService(messages, newTestLogger()).Submit(context.Background(), domain.ContactForm{
		Name: "G", Email: "g@example.com", Subject: "s", Message: "m",
	})

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "MESSAGE_SUBMISSION_FAILED", appErr.Code)
	assert.Equal(t, 502, appErr.Status)
}
