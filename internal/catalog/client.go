// Package catalog resolves product records from the storefront REST API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
	"github.com/uptownstitch/storefront/pkg/httpclient"
)

const serviceName = "catalog"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client reads products from GET {baseURL}/products/{id}.
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

// GetProduct fetches a single product. A missing product is
// apperrors.ErrNotFound; an unreachable API is apperrors.ErrServiceUnavail.
func (c *Client) GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("product_id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products/"+url.PathEscape(id.String()), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create product request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, c.transportError(ctx, id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NotFound("product", id.String())
	default:
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	var p domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

func (c *Client) transportError(ctx context.Context, id domain.ProductID, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var srvErr *httpclient.ServerError
	if errors.As(err, &srvErr) && (srvErr.Permanent || MissingProductResponse(srvErr.Status, []byte(srvErr.Body))) {
		return apperrors.NotFound("product", id.String())
	}

	c.logger.WarnContext(ctx, "catalog request failed",
		slog.String("product_id", id.String()),
		slog.String("error", err.Error()),
	)
	return apperrors.ServiceUnavailable("product catalog is temporarily unavailable")
}

// MissingProductResponse reports whether a 5xx response is the API's way of
// saying a product does not exist: it wraps the framework's 404 in a 500. It
// fits httpclient.Config.Permanent.
func MissingProductResponse(status int, body []byte) bool {
	return status == http.StatusInternalServerError && bytes.Contains(body, []byte("404 Not Found"))
}
