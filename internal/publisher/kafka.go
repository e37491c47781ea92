// Package publisher announces placed orders on Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/segmentio/kafka-go"
)

const EventOrderPlaced = "order.placed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type eventItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type OrderPlacedEvent struct {
	OrderID  string          `json:"order_id"`
	UserID   string          `json:"user_id"`
	Items    []eventItem     `json:"items"`
	Total    float64         `json:"total"`
	Currency domain.Currency `json:"currency"`
	PlacedAt time.Time       `json:"placed_at"`
}

type Publisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaPublisher(topic string, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
	return &Publisher{writer: w, now: time.Now}
}

// OrderPlaced publishes the order keyed by user id, so one user's orders
// stay in order on a single partition.
func (p *Publisher) OrderPlaced(ctx context.Context, order domain.Order) error {
	items := make([]eventItem, 0, len(order.Items))
	for _, line := range order.Items {
		price := line.PriceINR
		if order.Currency == domain.CurrencyUSD {
			price = line.PriceUSD
		}
		items = append(items, eventItem{ID: line.ID, Name: line.Name, Price: price})
	}

	payload, err := json.Marshal(OrderPlacedEvent{
		OrderID:  order.ID,
		UserID:   order.UserID,
		Items:    items,
		Total:    order.Total,
		Currency: order.Currency,
		PlacedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
