package listener

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/event"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/sale"
	"github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// fakeConsumer hands out queued messages, then blocks until the context ends.
type fakeConsumer struct {
	mu        sync.Mutex
	msgs      [][]byte
	errs      int
	offset    int64
	committed []int64
}

func (c *fakeConsumer) FetchMessage(ctx context.Context) (kafka.Message, error) {
	c.mu.Lock()
	if c.errs > 0 {
		c.errs--
		c.mu.Unlock()
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(c.msgs) > 0 {
		m := c.msgs[0]
		c.msgs = c.msgs[1:]
		c.offset++
		off := c.offset
		c.mu.Unlock()
		return kafka.Message{Value: m, Offset: off}, nil
	}
	c.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (c *fakeConsumer) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		c.committed = append(c.committed, m.Offset)
	}
	return nil
}

func (c *fakeConsumer) commits() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.committed...)
}

type recordingUseCase struct {
	sale.UseCase
	mu     sync.Mutex
	seen   map[string]bool
	inputs []dto.CreateSaleInput
	done   chan struct{}
	want   int
	// failures queues errors returned for a reference before it is recorded.
	failures map[string][]error
	calls    int
}

func (u *recordingUseCase) CreateSale(ctx context.Context, in *dto.CreateSaleInput) (*dto.SaleResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if errs := u.failures[in.ExternalRef]; len(errs) > 0 {
		u.failures[in.ExternalRef] = errs[1:]
		return nil, errs[0]
	}
	if u.seen[in.ExternalRef] {
		return nil, sale.ErrDuplicate
	}
	u.seen[in.ExternalRef] = true
	u.inputs = append(u.inputs, *in)
	if len(u.inputs) == u.want {
		close(u.done)
	}
	return &dto.SaleResult{}, nil
}

func orderMessage(t *testing.T, id string, orderedAt time.Time) []byte {
	t.Helper()
	return orderWithItems(t, id, orderedAt,
		event.OrderItemPayload{ProductID: "p1", OptionID: "o1", Quantity: 2, UnitPrice: decimal.NewFromInt(3000)},
		event.OrderItemPayload{ProductID: "p2", OptionID: "o2", Quantity: 1, UnitPrice: decimal.NewFromInt(5000)},
	)
}

func orderWithItems(t *testing.T, id string, orderedAt time.Time, items ...event.OrderItemPayload) []byte {
	t.Helper()
	data, err := json.Marshal(event.OrderCreated{
		EventID:   "e-" + id,
		EventType: event.TypeOrderCreated,
		Payload: event.OrderPayload{
			ID:        id,
			Channel:   "smart_store",
			OrderedAt: &orderedAt,
			Items:     items,
		},
		Timestamp: orderedAt,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestOrderListener_RecordsEachItemOnce(t *testing.T) {
	at := time.Date(2024, 5, 2, 23, 30, 0, 0, time.UTC)
	msg := orderMessage(t, "order-7", at)
	other, _ := json.Marshal(map[string]string{"event_type": "OrderCancelled"})

	consumer := &fakeConsumer{
		errs: 1,
		msgs: [][]byte{msg, []byte("not json"), other, msg},
	}
	uc := &recordingUseCase{seen: map[string]bool{}, done: make(chan struct{}), want: 2}

	l := NewOrderListener(consumer, uc, logger.NewNop())
	l.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(stopped)
	}()

	select {
	case <-uc.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("listener did not record the order items")
	}

	// Let the redelivered message drain before stopping.
	deadline := time.Now().Add(2 * time.Second)
	for {
		consumer.mu.Lock()
		left := len(consumer.msgs)
		consumer.mu.Unlock()
		if left == 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-stopped

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if len(uc.inputs) != 2 {
		t.Fatalf("recorded %d sales, want 2", len(uc.inputs))
	}
	first := uc.inputs[0]
	if first.ExternalRef != "order-7:1" || first.Channel != "smart_store" || first.SaleDate != "2024-05-02" || first.Quantity != 2 {
		t.Fatalf("first sale = %+v", first)
	}
	if uc.inputs[1].ExternalRef != "order-7:2" {
		t.Fatalf("second ref = %s", uc.inputs[1].ExternalRef)
	}
	if got := consumer.commits(); !reflect.DeepEqual(got, []int64{1, 2, 3, 4}) {
		t.Fatalf("committed offsets = %v", got)
	}
}

func runUntilCommitted(t *testing.T, consumer *fakeConsumer, uc *recordingUseCase, n int) {
	t.Helper()
	l := NewOrderListener(consumer, uc, logger.NewNop())
	l.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(stopped)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(consumer.commits()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("committed %v, want %d messages", consumer.commits(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestOrderListener_RetriesTransientFailures(t *testing.T) {
	at := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	consumer := &fakeConsumer{msgs: [][]byte{orderMessage(t, "order-8", at)}}
	uc := &recordingUseCase{
		seen: map[string]bool{},
		done: make(chan struct{}),
		want: 2,
		failures: map[string][]error{
			"order-8:1": {inventory.ErrBusy, errors.New("connection reset by peer")},
		},
	}

	runUntilCommitted(t, consumer, uc, 1)

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if len(uc.inputs) != 2 || uc.inputs[0].ExternalRef != "order-8:1" || uc.inputs[1].ExternalRef != "order-8:2" {
		t.Fatalf("recorded = %+v", uc.inputs)
	}
	if uc.calls != 4 {
		t.Fatalf("CreateSale calls = %d, want 4", uc.calls)
	}
}

func TestOrderListener_SkipsRejectedItems(t *testing.T) {
	at := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	msg := orderWithItems(t, "order-9", at,
		event.OrderItemPayload{ProductID: "p1", OptionID: "o1", Quantity: 0, UnitPrice: decimal.NewFromInt(3000)},
		event.OrderItemPayload{ProductID: "p1", OptionID: "gone", Quantity: 1, UnitPrice: decimal.NewFromInt(3000)},
		event.OrderItemPayload{ProductID: "p1", OptionID: "o1", Quantity: 1, UnitPrice: decimal.NewFromInt(3000)},
	)
	consumer := &fakeConsumer{msgs: [][]byte{msg}}
	uc := &recordingUseCase{
		seen: map[string]bool{},
		done: make(chan struct{}),
		want: 1,
		failures: map[string][]error{
			"order-9:1": {apperror.Validation("quantity must be positive")},
			"order-9:2": {inventory.ErrOptionNotFound},
		},
	}

	runUntilCommitted(t, consumer, uc, 1)

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if len(uc.inputs) != 1 || uc.inputs[0].ExternalRef != "order-9:3" {
		t.Fatalf("recorded = %+v", uc.inputs)
	}
	if uc.calls != 3 {
		t.Fatalf("CreateSale calls = %d, want 3", uc.calls)
	}
}

func TestOrderListener_StopsWithoutCommitWhenCancelled(t *testing.T) {
	at := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	consumer := &fakeConsumer{msgs: [][]byte{orderMessage(t, "order-10", at)}}
	busy := make([]error, 1000)
	for i := range busy {
		busy[i] = inventory.ErrBusy
	}
	uc := &recordingUseCase{
		seen:     map[string]bool{},
		done:     make(chan struct{}),
		failures: map[string][]error{"order-10:1": busy},
	}

	l := NewOrderListener(consumer, uc, logger.NewNop())
	l.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(stopped)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		uc.mu.Lock()
		calls := uc.calls
		uc.mu.Unlock()
		if calls >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("listener never retried")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-stopped

	if got := consumer.commits(); len(got) != 0 {
		t.Fatalf("committed %v while the order item was still pending", got)
	}
}
