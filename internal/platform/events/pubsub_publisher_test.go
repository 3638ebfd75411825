package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lumenmarket/api/internal/services"
)

func newTestClient(t *testing.T, srv *pstest.Server) *pubsub.Client {
	t.Helper()
	client, err := pubsub.NewClient(context.Background(), "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPubSubPublisherPublishesOrderEvent(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(topic, nil)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	msg := services.OrderEventMessage{
		Event:       "order.created",
		OrderID:     "ord_test",
		OrderNumber: "LM-2026-000042",
		Actor:       "user_1",
		Status:      "pending",
		Total:       4500,
		OccurredAt:  time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishOrderEvent(ctx, msg); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != msg.OrderID || payload.Event != msg.Event {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["orderNumber"]; attr != "LM-2026-000042" {
		t.Fatalf("expected order number attribute, got %q", attr)
	}
}

func TestPubSubPublisherPublishesStockEvent(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	topic, err := client.CreateTopic(ctx, "stock-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(nil, topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	msg := services.StockEventMessage{
		Event:      "stock.adjusted",
		ProductID:  "prod_a",
		Delta:      -3,
		Quantity:   2,
		Reason:     "order_created",
		OccurredAt: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishStockEvent(ctx, msg); err != nil {
		t.Fatalf("PublishStockEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["delta"]; attr != "-3" {
		t.Fatalf("expected delta attribute -3, got %q", attr)
	}
}

func TestPubSubPublisherDropsWhenTopicMissing(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(topic, nil)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	if id, err := publisher.PublishStockEvent(ctx, services.StockEventMessage{Event: "stock.adjusted"}); err != nil || id != "" {
		t.Fatalf("expected silent drop without stock topic, got id=%q err=%v", id, err)
	}
	if len(srv.Messages()) != 0 {
		t.Fatalf("expected no messages, got %d", len(srv.Messages()))
	}
}
