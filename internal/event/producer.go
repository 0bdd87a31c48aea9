// Package event publishes cart domain events so downstream consumers
// (analytics, abandoned-cart campaigns) can follow cart activity.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/martincharlesFajIT/fajtradingllc/internal/domain"
	pkgkafka "github.com/martincharlesFajIT/fajtradingllc/pkg/kafka"
)

// Kafka topics for cart events.
const (
	TopicCartUpdated = "storefront.cart.updated"
	TopicCartCleared = "storefront.cart.cleared"
)

const (
	aggregateTypeCart = "cart"
	sourceCartService = "cart-service"
)

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	Items    []domain.LineItem `json:"items"`
	Count    int               `json:"count"`
	Subtotal int64             `json:"subtotal"`
	VAT      int64             `json:"vat"`
	Total    int64             `json:"total"`
	Currency string            `json:"currency,omitempty"`
}

// CartClearedData is the payload of a cart.cleared event.
type CartClearedData struct {
	CartID string `json:"cart_id"`
}

// Producer publishes cart events to Kafka. It implements store.Notifier.
type Producer struct {
	kafka  *pkgkafka.Producer
	cartID string
	logger *slog.Logger
}

// NewProducer creates a cart event producer. cartID identifies this cart
// instance (the storage key for a device-local cart) and keys the Kafka
// messages.
func NewProducer(kafka *pkgkafka.Producer, cartID string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		cartID: cartID,
		logger: logger,
	}
}

// CartUpdated publishes a cart.updated event with the full cart snapshot.
func (p *Producer) CartUpdated(ctx context.Context, cart domain.Cart) error {
	data := CartUpdatedData{
		Items:    cart.Items,
		Count:    cart.Count(),
		Subtotal: cart.Subtotal(),
		VAT:      cart.VAT(),
		Total:    cart.Total(),
		Currency: cart.Currency(),
	}

	evt, err := pkgkafka.NewEvent(TopicCartUpdated, p.cartID, aggregateTypeCart, sourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, evt); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.Int("count", data.Count),
	)
	return nil
}

// CartCleared publishes a cart.cleared event.
func (p *Producer) CartCleared(ctx context.Context) error {
	evt, err := pkgkafka.NewEvent(TopicCartCleared, p.cartID, aggregateTypeCart, sourceCartService, CartClearedData{CartID: p.cartID})
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, evt); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event")
	return nil
}
