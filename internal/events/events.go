// Package events publishes order lifecycle events for kitchen displays.
package events

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/taberna/internal/domain/order"
)

// TypeOrderSubmitted is the event type header value.
const TypeOrderSubmitted = "order.submitted"

// Noop discards events.
type Noop struct{}

var _ order.Publisher = Noop{}

func (Noop) PublishSubmitted(context.Context, *order.Order) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes events to a topic, keyed by order id.
type Kafka struct {
	w       messageWriter
	now     func() time.Time
	timeout time.Duration
}

var _ order.Publisher = (*Kafka)(nil)

// publishAttempts is how many times the writer tries a message before
// giving up. Publishing sits on the checkout path.
const publishAttempts = 2

// NewKafka creates a synchronous writer for topic. A publish gives up after
// timeout, so unreachable brokers delay a checkout by at most that long.
// Zero leaves publishing bounded only by the caller's context.
func NewKafka(brokers []string, topic string, timeout time.Duration) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            publishAttempts,
			WriteBackoffMax:        100 * time.Millisecond,
			WriteTimeout:           timeout,
			AllowAutoTopicCreation: true,
		},
		now:     time.Now,
		timeout: timeout,
	}
}

// PublishSubmitted writes an order.submitted event.
func (k *Kafka) PublishSubmitted(ctx context.Context, o *order.Order) error {
	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(o.ID)),
		Value: EncodeSubmitted(o),
		Time:  k.now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeOrderSubmitted)},
		},
	}
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write order event")
	}
	return nil
}

// Close flushes pending messages.
func (k *Kafka) Close() error {
	return k.w.Close()
}

// EncodeSubmitted renders the event payload.
func EncodeSubmitted(o *order.Order) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderId")
	e.Int(o.ID)
	e.FieldStart("table")
	e.Str(o.Table)

	ids := make([]int, 0, len(o.Amounts))
	for id := range o.Amounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	e.FieldStart("items")
	e.ArrStart()
	for _, id := range ids {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int(id)
		e.FieldStart("quantity")
		e.Int(o.Amounts[id])
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("total")
	e.Str(o.Total.StringFixed(2))
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("comment")
	e.Str(o.Comment)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
	return e.Bytes()
}
