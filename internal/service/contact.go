package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
	"github.com/uptownstitch/storefront/pkg/validator"
)

// ContactService forwards contact-page messages to the storefront API.
type ContactService struct {
	messages MessageSubmitter
	logger   *slog.Logger
}

func NewContactService(messages MessageSubmitter, logger *slog.Logger) *ContactService {
	return &ContactService{messages: messages, logger: logger}
}

// Submit validates form and forwards it. Upstream AppErrors pass through;
// anything else becomes a 502 MESSAGE_SUBMISSION_FAILED.
func (s *ContactService) Submit(ctx context.Context, form domain.ContactForm) (*domain.Receipt, error) {
	form.Normalize()
	if err := validator.Validate(form); err != nil {
		return nil, err
	}

	receipt, err := s.messages.Submit(ctx, domain.Message{
		Name:    form.Name,
		Email:   form.Email,
		Phone:   form.Phone,
		Subject: form.Subject,
		Message: form.Message,
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		s.logger.WarnContext(ctx, "contact message submission failed",
			slog.String("subject", form.Subject),
			slog.String("error", err.Error()),
		)
		return nil, &apperrors.AppError{
			Code:    "MESSAGE_SUBMISSION_FAILED",
			Message: "your message could not be sent, please try again",
			Status:  http.StatusBadGateway,
			Err:     errors.Join(apperrors.ErrSubmissionFailed, err),
		}
	}

	return receipt, nil
}
