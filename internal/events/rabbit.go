// Package events distributes order updates over a RabbitMQ fanout exchange
// so every API instance can serve live tracking subscribers.
package events

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

// DefaultExchange is used when Config.Exchange is empty.
const DefaultExchange = "storefront.order-updates"

// Config holds broker settings.
type Config struct {
	URL      string
	Exchange string
}

// Broker owns the AMQP connection.
type Broker struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

// Dial connects to the broker and declares the fanout exchange.
func Dial(cfg Config) (*Broker, error) {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connect rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}
	return &Broker{conn: conn, exchange: exchange, ch: ch}, nil
}

var _ order.Notifier = (*Broker)(nil)

// Publish sends u to the exchange.
func (b *Broker) Publish(ctx context.Context, u order.Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == nil || b.ch.IsClosed() {
		ch, err := b.conn.Channel()
		if err != nil {
			return errors.Wrap(err, "open channel")
		}
		b.ch = ch
	}
	err := b.ch.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    u.OrderID,
		Timestamp:    u.UpdatedAt,
		Body:         encodeUpdate(u),
	})
	if err != nil {
		return errors.Wrap(err, "publish update")
	}
	return nil
}

// Relay consumes the exchange through a private queue and hands every update
// to sink until ctx is done.
func (b *Broker) Relay(ctx context.Context, sink order.Notifier) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open channel")
	}
	defer func() { _ = ch.Close() }()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return errors.Wrap(err, "declare queue")
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return errors.Wrap(err, "bind queue")
	}
	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consume")
	}

	lg := zctx.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			u, err := decodeUpdate(m.Body)
			if err != nil {
				lg.Warn("Drop malformed update", zap.Error(err))
				continue
			}
			if err := sink.Publish(ctx, u); err != nil {
				lg.Warn("Relay update", zap.String("order_id", u.OrderID), zap.Error(err))
			}
		}
	}
}

// Close closes the connection.
func (b *Broker) Close() error {
	return b.conn.Close()
}
