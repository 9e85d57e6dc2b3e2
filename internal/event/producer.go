package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptownstitch/storefront/internal/cart"
	"github.com/uptownstitch/storefront/internal/domain"
	pkgkafka "github.com/uptownstitch/storefront/pkg/kafka"
	"github.com/uptownstitch/storefront/pkg/logger"
)

// Kafka topic constants for cart domain events.
var (
	TopicCartUpdated = pkgkafka.Topic("cart", "updated")
	TopicCartCleared = pkgkafka.Topic("cart", "cleared")
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the cart service.
const SourceCartService = "cart-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID string         `json:"session_id"`
	Operation string         `json:"operation"`
	ProductID string         `json:"product_id,omitempty"`
	Lines     []CartLineData `json:"lines"`
	LineCount int            `json:"line_count"`
	ItemCount int            `json:"item_count"`
	Subtotal  string         `json:"subtotal"`
}

// CartLineData is the line payload within cart events.
type CartLineData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// Publisher is the subset of the Kafka producer the cart events need.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// Listener returns a cart.ListenerFactory publishing every change of a
// session's cart. Publish errors are logged and dropped; a broker outage
// never fails a cart mutation.
func (p *Producer) Listener() cart.ListenerFactory {
	return func(sessionID string) cart.Listener {
		return func(ctx context.Context, ch cart.Change) {
			var err error
			if ch.Operation == cart.OpClear {
				err = p.PublishCartCleared(ctx, sessionID)
			} else {
				err = p.PublishCartUpdated(ctx, ch.Operation, ch.ProductID, ch.Snapshot)
			}
			if err != nil {
				p.logger.WarnContext(ctx, "failed to publish cart event",
					slog.String("session_id", sessionID),
					slog.String("operation", string(ch.Operation)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, op cart.Operation, productID domain.ProductID, snap domain.Snapshot) error {
	lines := make([]CartLineData, len(snap.Lines))
	for i, l := range snap.Lines {
		lines[i] = CartLineData{
			ProductID: l.ProductID.String(),
			Name:      l.Name,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
		}
	}

	data := CartUpdatedData{
		SessionID: snap.SessionID,
		Operation: string(op),
		ProductID: productID.String(),
		Lines:     lines,
		LineCount: snap.LineCount,
		ItemCount: snap.ItemCount,
		Subtotal:  snap.Subtotal.StringFixed(2),
	}

	if err := p.publish(ctx, TopicCartUpdated, snap.SessionID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", snap.SessionID),
		slog.Int("line_count", snap.LineCount),
	)

	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	if err := p.publish(ctx, TopicCartCleared, sessionID, CartClearedData{SessionID: sessionID}); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("session_id", sessionID),
	)

	return nil
}

func (p *Producer) publish(ctx context.Context, topic, sessionID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, sessionID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
