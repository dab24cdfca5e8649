// Package event defines the messages exchanged over Kafka.
package event

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	TypePurchaseReceived = "purchase.received"
	TypeSaleRecorded     = "sale.recorded"
	TypeOrderCreated     = "OrderCreated"
)

type Envelope struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func New(eventType string, payload any) Envelope {
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher is satisfied by *broker.KafkaProducer.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, value any) error
}

// NopPublisher drops every event. It stands in when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishJSON(ctx context.Context, key string, value any) error { return nil }

// Publish sends env keyed by key. Events are emitted after the write committed, so a
// failure is logged and never undoes the write.
func Publish(ctx context.Context, pub Publisher, log logger.ZapLogger, key string, env Envelope) {
	if err := pub.PublishJSON(ctx, key, env); err != nil {
		log.Error("failed to publish event",
			zap.String("event_type", env.EventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

type StockChange struct {
	ProductID   string              `json:"product_id"`
	OptionID    string              `json:"option_id"`
	Quantity    int                 `json:"quantity"`
	StockAfter  int                 `json:"stock_after"`
	CostOfGoods decimal.Decimal     `json:"cost_of_goods"`
	Status      costing.StockStatus `json:"status"`
}

type PurchaseReceived struct {
	PurchaseID   string          `json:"purchase_id"`
	PurchaseDate string          `json:"purchase_date"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	Changes      []StockChange   `json:"changes"`
}

type SaleRecorded struct {
	SaleID   string          `json:"sale_id"`
	SaleDate string          `json:"sale_date"`
	Channel  string          `json:"channel"`
	Revenue  decimal.Decimal `json:"revenue"`
	Profit   decimal.Decimal `json:"profit"`
	Oversold bool            `json:"oversold"`
	Change   StockChange     `json:"change"`
}

// OrderCreated is published by the storefront order service. Each item becomes a sale.
type OrderCreated struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID        string             `json:"id"`
	Channel   string             `json:"channel"`
	OrderedAt *time.Time         `json:"ordered_at"`
	Items     []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID string          `json:"product_id"`
	OptionID  string          `json:"option_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
