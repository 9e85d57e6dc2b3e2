package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/uptownstitch/storefront/internal/domain"
)

// --- Mocks ---

type mockProductResolver struct {
	mock.Mock
}

func (m *mockProductResolver) GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

type mockMessageSubmitter struct {
	mock.Mock
}

func (m *mockMessageSubmitter) Submit(ctx context.Context, msg domain.Message) (*domain.Receipt, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Receipt), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func product(id, name, price string, inStock bool) *domain.Product {
	return &domain.Product{
		ID:      domain.ProductID(id),
		Name:    name,
		Price:   decimal.RequireFromString(price),
		InStock: inStock,
	}
}
