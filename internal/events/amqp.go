package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"storefront/internal/logging"
)

const publishTimeout = 5 * time.Second

// AMQPPublisher publishes persistent JSON messages to a durable queue over a
// small pool of channels sharing one connection.
type AMQPPublisher struct {
	conn     *amqp.Connection
	queue    string
	channels chan *amqp.Channel
	logger   *zap.Logger
	mu       sync.Mutex
	closed   bool
}

func NewAMQPPublisher(url, queue string, size int, logger *zap.Logger) (*AMQPPublisher, error) {
	if size <= 0 {
		size = 4
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	p := &AMQPPublisher{
		conn:     conn,
		queue:    queue,
		channels: make(chan *amqp.Channel, size),
		logger:   logging.OrNop(logger).Named("events"),
	}
	for i := 0; i < size; i++ {
		ch, err := p.openChannel()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open channel %d: %w", i, err)
		}
		p.channels <- ch
	}
	p.logger.Info("rabbitmq publisher ready", zap.String("queue", queue), zap.Int("channels", size))
	return p, nil
}

func (p *AMQPPublisher) openChannel() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return ch, nil
}

func (p *AMQPPublisher) acquire(ctx context.Context) (*amqp.Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, fmt.Errorf("publisher closed")
		}
		if ch.IsClosed() {
			return p.openChannel()
		}
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *AMQPPublisher) release(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || ch.IsClosed() {
		ch.Close()
		return
	}
	select {
	case p.channels <- ch:
	default:
		ch.Close()
	}
}

func (p *AMQPPublisher) PublishOrderPlaced(ctx context.Context, msg OrderPlaced) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch, err := p.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire channel: %w", err)
	}
	defer p.release(ch)

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         msg.Type,
		MessageId:    msg.OrderNumber,
		Timestamp:    msg.PlacedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	p.logger.Debug("published order event", zap.String("order_number", msg.OrderNumber))
	return nil
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.channels)
	for ch := range p.channels {
		ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
