package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/event"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/sale"
	"github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const maxBackoff = 30 * time.Second

// Consumer is satisfied by *broker.KafkaConsumer.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OrderListener records the items of storefront orders as sales. A message is committed only
// after every item was recorded or rejected as invalid; transient failures are retried.
type OrderListener struct {
	consumer Consumer
	uc       sale.UseCase
	logger   logger.ZapLogger
	backoff  time.Duration
}

func NewOrderListener(consumer Consumer, uc sale.UseCase, logger logger.ZapLogger) *OrderListener {
	return &OrderListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
		backoff:  time.Second,
	}
}

func (l *OrderListener) Start(ctx context.Context) {
	l.logger.Info("Starting order Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping order Kafka listener")
			return
		default:
			msg, err := l.consumer.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				l.sleep(ctx, l.backoff)
				continue
			}

			if err := l.processMessage(ctx, msg.Value); err != nil {
				// Only a cancelled context gets here; the message is redelivered on restart.
				return
			}
			if err := l.consumer.CommitMessages(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to commit kafka message", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
		}
	}
}

// processMessage returns an error only when ctx ends before every item was handled.
func (l *OrderListener) processMessage(ctx context.Context, value []byte) error {
	var evt event.OrderCreated
	if err := json.Unmarshal(value, &evt); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return nil
	}
	if evt.EventType != event.TypeOrderCreated {
		return nil
	}

	order := evt.Payload
	l.logger.Info("Processing OrderCreated event", zap.String("order_id", order.ID))

	channel := order.Channel
	if channel == "" {
		channel = string(model.ChannelOwnStorefront)
	}
	saleDate := ""
	if order.OrderedAt != nil {
		saleDate = order.OrderedAt.UTC().Format(model.DateLayout)
	} else if !evt.Timestamp.IsZero() {
		saleDate = evt.Timestamp.UTC().Format(model.DateLayout)
	}

	for i, item := range order.Items {
		// The reference makes redelivered orders and retries idempotent.
		ref := fmt.Sprintf("%s:%d", order.ID, i+1)
		input := &dto.CreateSaleInput{
			SaleDate:    saleDate,
			ProductID:   item.ProductID,
			OptionID:    item.OptionID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Channel:     channel,
			ExternalRef: ref,
		}
		if err := l.recordItem(ctx, order.ID, input); err != nil {
			return err
		}
	}
	return nil
}

func (l *OrderListener) recordItem(ctx context.Context, orderID string, input *dto.CreateSaleInput) error {
	wait := l.backoff
	for attempt := 1; ; attempt++ {
		_, err := l.uc.CreateSale(ctx, input)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, sale.ErrDuplicate):
			l.logger.Debug("Order item already recorded", zap.String("external_ref", input.ExternalRef))
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case !retryable(err):
			l.logger.Error("Dropping invalid order item",
				zap.String("order_id", orderID),
				zap.String("option_id", input.OptionID),
				zap.Error(err),
			)
			return nil
		}

		l.logger.Warn("Failed to record sale for order item, retrying",
			zap.String("external_ref", input.ExternalRef),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if !l.sleep(ctx, wait) {
			return ctx.Err()
		}
		wait = min(wait*2, maxBackoff)
	}
}

// retryable reports whether err may clear up on its own. Rejected input never does.
func retryable(err error) bool {
	if errors.Is(err, inventory.ErrBusy) {
		return true
	}
	if errors.Is(err, inventory.ErrOptionNotFound) {
		return false
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == apperror.CodeServiceUnavail || appErr.Code == apperror.CodeInternal
	}
	return true
}

func (l *OrderListener) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
