package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueTopology names the durable exchange and queue shared by publisher and consumer.
type QueueTopology struct {
	Exchange string
	Queue    string
}

func (t QueueTopology) routingKey() string { return t.Queue }

func (t QueueTopology) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(t.Queue, t.routingKey(), t.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueuePublisher hands messages to RabbitMQ; cmd/notifier delivers them. A
// dropped broker connection is redialled on the next publish, and messages that
// still cannot be published go to the fallback dispatcher.
type QueuePublisher struct {
	mu       sync.Mutex
	url      string
	conn     *amqp.Connection
	ch       amqpPublisher
	topology QueueTopology
	dial     func() (amqpPublisher, error)
	fallback Dispatcher
}

// NewQueuePublisher connects eagerly so a misconfigured broker shows up at
// startup. fallback may be nil.
func NewQueuePublisher(url string, topology QueueTopology, fallback Dispatcher) (*QueuePublisher, error) {
	p := &QueuePublisher{url: url, topology: topology, fallback: fallback}
	p.dial = p.connect
	ch, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	return p, nil
}

func (p *QueuePublisher) connect() (amqpPublisher, error) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := p.topology.declare(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = conn
	return ch, nil
}

func (p *QueuePublisher) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Kind, err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         msg.Kind,
		Body:         body,
	}

	err = p.publish(ctx, pub)
	if err == nil {
		return nil
	}
	log.Printf("[notify][queue] publish kind=%s failed: %v", msg.Kind, err)
	if p.fallback == nil {
		return fmt.Errorf("publish %s: %w", msg.Kind, err)
	}
	log.Printf("[notify][queue] delivering kind=%s directly", msg.Kind)
	return p.fallback.Dispatch(ctx, msg)
}

// publish retries once on a fresh channel when the current one is gone.
func (p *QueuePublisher) publish(ctx context.Context, pub amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.stale() {
		if err := p.redial(); err != nil {
			return err
		}
	}
	err := p.ch.PublishWithContext(ctx, p.topology.Exchange, p.topology.routingKey(), false, false, pub)
	if err == nil || !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	if err := p.redial(); err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.topology.Exchange, p.topology.routingKey(), false, false, pub)
}

func (p *QueuePublisher) stale() bool {
	return p.conn != nil && p.conn.IsClosed()
}

func (p *QueuePublisher) redial() error {
	p.ch = nil
	if p.dial == nil {
		return amqp.ErrClosed
	}
	ch, err := p.dial()
	if err != nil {
		return err
	}
	log.Printf("[notify][queue] reconnected to exchange %q", p.topology.Exchange)
	p.ch = ch
	return nil
}

func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// RecipientResolver refreshes addresses from the user store before delivery, so
// a queued message picks up a chat ID linked after it was published.
type RecipientResolver func(ctx context.Context, r Recipient) (Recipient, error)

// QueueConsumer drains the notification queue into direct channels.
type QueueConsumer struct {
	url      string
	topology QueueTopology
	target   Dispatcher
	resolve  RecipientResolver
}

func NewQueueConsumer(url string, topology QueueTopology, target Dispatcher, resolve RecipientResolver) *QueueConsumer {
	return &QueueConsumer{url: url, topology: topology, target: target, resolve: resolve}
}

var errMalformed = errors.New("malformed notification payload")

// handle delivers one payload. Malformed payloads and delivery failures are both
// rejected without requeue; delivery is best-effort.
func (c *QueueConsumer) handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := msg.validate(); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if c.resolve != nil {
		r, err := c.resolve(ctx, msg.Recipient)
		if err != nil {
			log.Printf("[notifier][resolve] user=%d err=%v; using queued address", msg.Recipient.UserID, err)
		} else {
			msg.Recipient = r
		}
	}
	return c.target.Dispatch(ctx, msg)
}

// Run consumes until ctx is cancelled, reconnecting with backoff when the broker drops.
func (c *QueueConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[notifier] consume loop ended: %v; reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *QueueConsumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Printf("[notifier] set QoS failed: %v", err)
	}
	if err := c.topology.declare(ch); err != nil {
		return err
	}
	deliveries, err := ch.Consume(c.topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	log.Printf("[notifier] waiting on queue %q", c.topology.Queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				log.Printf("[notifier] drop message type=%s: %v", d.Type, err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
