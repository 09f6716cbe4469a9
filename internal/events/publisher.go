package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

const EventOrderPlaced = "order.placed"

// OrderPlaced событие о созданном заказе
type OrderPlaced struct {
	OrderID      string          `json:"orderId"`
	OrderNumber  string          `json:"orderNumber"`
	CustomerID   string          `json:"customerId"`
	Email        string          `json:"email"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    int             `json:"itemCount"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func NewOrderPlaced(o domain.Order) OrderPlaced {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return OrderPlaced{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		CustomerID:   o.CustomerID,
		Email:        o.Email,
		Subtotal:     o.Subtotal,
		ShippingCost: o.ShippingCost,
		Total:        o.Total,
		ItemCount:    count,
		CreatedAt:    o.CreatedAt,
	}
}

// OrderPlacedEvent запись outbox о созданном заказе; сохраняется в той же транзакции
func OrderPlacedEvent(o domain.Order) (repository.OutboxEvent, error) {
	payload, err := json.Marshal(NewOrderPlaced(o))
	if err != nil {
		return repository.OutboxEvent{}, fmt.Errorf("marshal %s: %w", EventOrderPlaced, err)
	}
	return repository.OutboxEvent{AggregateID: o.ID, EventType: EventOrderPlaced, Payload: payload}, nil
}

// Publisher отправляет событие из outbox в брокер
type Publisher interface {
	Publish(ctx context.Context, e repository.OutboxEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher пишет события в топик Kafka, ключ сообщения = id агрегата
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond, // relay writes one event at a time
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

var _ Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Publish(ctx context.Context, e repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(e.AggregateID), // order id for ordering
		Value: e.Payload,             // already JSON from the outbox
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.EventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// NopPublisher используется, когда брокеры не настроены
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, repository.OutboxEvent) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
