// Package contact submits messages to the storefront REST API's generic
// message endpoint. Orders and contact-form messages both travel through it.
package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
	"github.com/uptownstitch/storefront/pkg/httpclient"
)

const serviceName = "contact"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Submit posts msg to {baseURL}/contact and returns the API's receipt. The
// request is never retried: a timed-out POST may already be stored.
func (c *Client) Submit(ctx context.Context, msg domain.Message) (*domain.Receipt, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contact", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("call message endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	var receipt domain.Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("decode message receipt: %w", err)
	}

	c.logger.InfoContext(ctx, "message submitted",
		slog.String("subject", msg.Subject),
		slog.String("message_id", string(receipt.ID)),
	)

	return &receipt, nil
}
