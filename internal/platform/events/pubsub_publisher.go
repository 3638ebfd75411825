// Package events publishes order and stock lifecycle events to Pub/Sub.
// Publishing is best-effort: callers log failures and never fail the
// business operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/lumenmarket/api/internal/services"
)

// PubSubPublisher publishes engine events to the configured Pub/Sub topics.
type PubSubPublisher struct {
	orderTopic *pubsub.Topic
	stockTopic *pubsub.Topic
	marshal    func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed event publisher. Either
// topic may be nil, in which case events of that kind are dropped.
func NewPubSubPublisher(orderTopic, stockTopic *pubsub.Topic) (*PubSubPublisher, error) {
	if orderTopic == nil && stockTopic == nil {
		return nil, errors.New("pubsub event publisher: at least one topic is required")
	}
	return &PubSubPublisher{
		orderTopic: orderTopic,
		stockTopic: stockTopic,
		marshal:    json.Marshal,
	}, nil
}

// PublishOrderEvent emits an order lifecycle event.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, message services.OrderEventMessage) (string, error) {
	if p == nil || p.orderTopic == nil {
		return "", nil
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", message.Event)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)
	setAttr(attrs, "status", message.Status)

	result := p.orderTopic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order event: %w", err)
	}
	return id, nil
}

// PublishStockEvent emits a stock adjustment event.
func (p *PubSubPublisher) PublishStockEvent(ctx context.Context, message services.StockEventMessage) (string, error) {
	if p == nil || p.stockTopic == nil {
		return "", nil
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal stock event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", message.Event)
	setAttr(attrs, "productId", message.ProductID)
	setAttr(attrs, "reason", message.Reason)
	attrs["delta"] = strconv.Itoa(message.Delta)

	result := p.stockTopic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish stock event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
