package event

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uptownstitch/storefront/internal/cart"
	"github.com/uptownstitch/storefront/internal/domain"
	"github.com/uptownstitch/storefront/internal/repository/memory"
	pkgkafka "github.com/uptownstitch/storefront/pkg/kafka"
	"github.com/uptownstitch/storefront/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type published struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{topic: topic, event: event})
	return nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.topic
	}
	return out
}

func widget() domain.Product {
	return domain.Product{ID: "7", Name: "Widget", Price: decimal.RequireFromString("19.5")}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "ecommerce.cart.updated", TopicCartUpdated)
	assert.Equal(t, "ecommerce.cart.cleared", TopicCartCleared)
}

func TestPublishCartUpdated_Payload(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, newTestLogger())

	state := domain.CartState{}.AddItem(widget()).AddItem(widget())
	snap := domain.NewSnapshot("s1", state, time.Now())

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, p.PublishCartUpdated(ctx, cart.OpAddItem, "7", snap))

	require.Len(t, pub.events, 1)
	ev := pub.events[0].event
	assert.Equal(t, TopicCartUpdated, pub.events[0].topic)
	assert.Equal(t, TopicCartUpdated, ev.EventType)
	assert.Equal(t, "s1", ev.AggregateID)
	assert.Equal(t, AggregateTypeCart, ev.AggregateType)
	assert.Equal(t, SourceCartService, ev.Source)
	assert.Equal(t, "corr-1", ev.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, ev.UnmarshalData(&data))
	assert.Equal(t, "add_item", data.Operation)
	assert.Equal(t, "7", data.ProductID)
	assert.Equal(t, 1, data.LineCount)
	assert.Equal(t, 2, data.ItemCount)
	assert.Equal(t, "39.00", data.Subtotal)
	require.Len(t, data.Lines, 1)
	assert.Equal(t, CartLineData{ProductID: "7", Name: "Widget", UnitPrice: "19.50", Quantity: 2}, data.Lines[0])
}

func TestPublishCartUpdated_PublishError(t *testing.T) {
	p := NewProducer(&fakePublisher{err: errors.New("broker down")}, newTestLogger())

	err := p.PublishCartUpdated(context.Background(), cart.OpAddItem, "7",
		domain.NewSnapshot("s1", domain.CartState{}, time.Now()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish ecommerce.cart.updated event")
}

func TestPublishCartCleared(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, newTestLogger())

	require.NoError(t, p.PublishCartCleared(context.Background(), "s1"))

	require.Len(t, pub.events, 1)
	var data CartClearedData
	require.NoError(t, pub.events[0].event.UnmarshalData(&data))
	assert.Equal(t, "s1", data.SessionID)
	assert.Empty(t, pub.events[0].event.CorrelationID)
}

// ----------------------------------------------------------------------------
// Listener wired into a registry
// ----------------------------------------------------------------------------

func TestListener_PublishesPerChange(t *testing.T) {
	pub := &fakePublisher{}
	r := cart.NewRegistry(memory.NewSnapshotRepository(), newTestLogger())
	r.Use(NewProducer(pub, newTestLogger()).Listener())

	ctx := context.Background()
	s := r.Get(ctx, "s1")
	s.AddItem(ctx, widget())
	s.UpdateQuantity(ctx, "7", 4)
	s.RemoveItem(ctx, "missing")
	s.ClearCart(ctx)
	s.ClearCart(ctx)

	assert.Equal(t, []string{TopicCartUpdated, TopicCartUpdated, TopicCartCleared}, pub.topics())
}

func TestListener_PublishFailureDoesNotBlockMutation(t *testing.T) {
	r := cart.NewRegistry(memory.NewSnapshotRepository(), newTestLogger())
	r.Use(NewProducer(&fakePublisher{err: errors.New("broker down")}, newTestLogger()).Listener())

	ctx := context.Background()
	snap := r.Get(ctx, "s1").AddItem(ctx, widget())

	assert.Equal(t, 1, snap.LineCount)
}
