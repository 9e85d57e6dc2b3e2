package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptownstitch/storefront/internal/cart"
	"github.com/uptownstitch/storefront/internal/domain"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
)

// ProductResolver looks up catalog records by id.
type ProductResolver interface {
	GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error)
}

// CartService is the HTTP-facing entry point to the session cart stores.
type CartService struct {
	registry *cart.Registry
	catalog  ProductResolver
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(registry *cart.Registry, catalog ProductResolver, logger *slog.Logger) *CartService {
	return &CartService{
		registry: registry,
		catalog:  catalog,
		logger:   logger,
	}
}

// Store returns the session's cart store.
func (s *CartService) Store(ctx context.Context, sessionID string) *cart.Store {
	return s.registry.Get(ctx, sessionID)
}

// GetCart returns the session's current cart. A session never seen before
// has an empty cart.
func (s *CartService) GetCart(ctx context.Context, sessionID string) domain.Snapshot {
	return s.registry.Get(ctx, sessionID).Snapshot()
}

// AddItem resolves productID against the catalog and adds one unit of it.
// Out-of-stock products are refused with a 409 OUT_OF_STOCK.
func (s *CartService) AddItem(ctx context.Context, sessionID string, productID domain.ProductID) (domain.Snapshot, error) {
	if productID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("product_id is required")
	}

	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("resolve product %s: %w", productID, err)
	}
	if !p.InStock {
		return domain.Snapshot{}, apperrors.Conflict("OUT_OF_STOCK", fmt.Sprintf("product %s is out of stock", productID))
	}
	if p.Price.IsNegative() {
		return domain.Snapshot{}, fmt.Errorf("product %s has negative price %s", productID, p.Price)
	}

	snap := s.registry.Get(ctx, sessionID).AddItem(ctx, *p)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID.String()),
		slog.Int("line_count", snap.LineCount),
	)

	return snap, nil
}

// UpdateQuantity sets productID's quantity; zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID string, productID domain.ProductID, quantity int) (domain.Snapshot, error) {
	if productID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("product id is required")
	}
	return s.registry.Get(ctx, sessionID).UpdateQuantity(ctx, productID, quantity), nil
}

// RemoveItem drops productID's line. Removing an absent product is not an error.
func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID domain.ProductID) (domain.Snapshot, error) {
	if productID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("product id is required")
	}
	return s.registry.Get(ctx, sessionID).RemoveItem(ctx, productID), nil
}

func (s *CartService) ClearCart(ctx context.Context, sessionID string) domain.Snapshot {
	snap := s.registry.Get(ctx, sessionID).ClearCart(ctx)
	s.logger.InfoContext(ctx, "cart cleared", slog.String("session_id", sessionID))
	return snap
}
