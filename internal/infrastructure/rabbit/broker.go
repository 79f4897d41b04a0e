// Package rabbit backs the queue and topic ports with a RabbitMQ broker for
// deployments without the managed services. A topic is a fanout exchange
// bound to its queue.
package rabbit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

// Channel is the subset of *amqp.Channel used here.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Broker owns one connection and channel.
type Broker struct {
	conn *amqp.Connection
	ch   Channel
}

// Dial connects, retrying while the broker starts up.
func Dial(url string, attempts int) (*Broker, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < max(attempts, 1); i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		time.Sleep(time.Second * time.Duration(1+i))
	}
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Broker{conn: conn, ch: ch}, nil
}

// NewBroker wraps an existing channel.
func NewBroker(ch Channel) *Broker {
	return &Broker{ch: ch}
}

// Close releases the channel and connection. Unacknowledged messages return
// to their queues.
func (b *Broker) Close() error {
	err := b.ch.Close()
	if b.conn != nil {
		if cerr := b.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Queue declares a durable queue.
func (b *Broker) Queue(name string) (*Queue, error) {
	if _, err := b.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return &Queue{ch: b.ch, name: name}, nil
}

// Topic declares a fanout exchange and binds queue to it.
func (b *Broker) Topic(name, queue string) (*Topic, error) {
	if err := b.ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", name, err)
	}
	if err := b.ch.QueueBind(queue, "", name, false, nil); err != nil {
		return nil, fmt.Errorf("bind %s to %s: %w", queue, name, err)
	}
	return &Topic{ch: b.ch, name: name}, nil
}

// Queue is a durable RabbitMQ queue read with basic.get.
type Queue struct {
	ch   Channel
	name string
}

var _ ports.Queue = (*Queue)(nil)

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Depth returns the number of ready messages.
func (q *Queue) Depth(_ context.Context) (int, error) {
	info, err := q.ch.QueueDeclarePassive(q.name, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("inspect queue %s: %w", q.name, err)
	}
	return info.Messages, nil
}

// Receive gets up to max messages without acknowledging them.
func (q *Queue) Receive(_ context.Context, max int) ([]domain.QueueMessage, error) {
	var msgs []domain.QueueMessage
	for len(msgs) < max {
		d, ok, err := q.ch.Get(q.name, false)
		if err != nil {
			return msgs, fmt.Errorf("get %s: %w", q.name, err)
		}
		if !ok {
			break
		}
		msgs = append(msgs, domain.QueueMessage{
			ID:      d.MessageId,
			Body:    string(d.Body),
			Receipt: strconv.FormatUint(d.DeliveryTag, 10),
		})
	}
	return msgs, nil
}

// Delete acknowledges the message.
func (q *Queue) Delete(_ context.Context, msg domain.QueueMessage) error {
	tag, err := strconv.ParseUint(msg.Receipt, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad receipt %q", domain.ErrDeleteFailed, msg.Receipt)
	}
	if err := q.ch.Ack(tag, false); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDeleteFailed, msg.ID, err)
	}
	return nil
}

// Release requeues the message.
func (q *Queue) Release(_ context.Context, msg domain.QueueMessage) error {
	tag, err := strconv.ParseUint(msg.Receipt, 10, 64)
	if err != nil {
		return fmt.Errorf("release: bad receipt %q", msg.Receipt)
	}
	if err := q.ch.Nack(tag, false, true); err != nil {
		return fmt.Errorf("release %s: %w", msg.ID, err)
	}
	return nil
}

// Topic publishes persistent messages to a fanout exchange.
type Topic struct {
	ch   Channel
	name string
}

var _ ports.Topic = (*Topic)(nil)

// Name returns the exchange name.
func (t *Topic) Name() string { return t.name }

// PublishBatch publishes each entry, counting the ones that failed.
func (t *Topic) PublishBatch(ctx context.Context, entries []domain.PublishEntry) (int, error) {
	failed := 0
	for _, e := range entries {
		err := t.ch.PublishWithContext(ctx, t.name, "", false, false, amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.GroupID + "-" + e.ID,
			Headers:      amqp.Table{"group_id": e.GroupID},
			Body:         []byte(e.Message),
		})
		if err != nil {
			failed++
		}
	}
	return failed, nil
}
