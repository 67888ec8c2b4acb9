package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/matchup/internal/notify"
)

const publishAttempts = 3

// AMQPDispatcher publishes notification intents to a durable RabbitMQ
// queue.  Dispatch only enqueues into a bounded buffer; a single worker
// owns the broker connection, publishes persistent JSON messages and
// redials when the connection drops.
type AMQPDispatcher struct {
	url     string
	queue   string
	pending chan []notify.Intent
	conn    *amqp.Connection
	ch      *amqp.Channel
	log     *logrus.Entry
}

func NewAMQPDispatcher(url, queue string, buffer int) *AMQPDispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &AMQPDispatcher{
		url:     url,
		queue:   queue,
		pending: make(chan []notify.Intent, buffer),
		log:     logrus.WithFields(logrus.Fields{"component": "notifications.amqp", "queue": queue}),
	}
}

// Dispatch implements notify.Dispatcher.
func (p *AMQPDispatcher) Dispatch(ctx context.Context, intents []notify.Intent) {
	if len(intents) == 0 {
		return
	}
	select {
	case p.pending <- intents:
	default:
		p.log.WithField("count", len(intents)).Warn("notification buffer full, dropping batch")
	}
}

// Run publishes queued batches until ctx is cancelled.
func (p *AMQPDispatcher) Run(ctx context.Context) {
	defer p.closeConn()
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-p.pending:
			for _, in := range batch {
				if err := p.publishWithRetry(ctx, in); err != nil {
					p.log.WithError(err).WithField("user_id", in.RecipientID).Error("notification publish failed, dropping")
				}
			}
		}
	}
}

func (p *AMQPDispatcher) publishWithRetry(ctx context.Context, in notify.Intent) error {
	body, err := encodeMessage(in, time.Now())
	if err != nil {
		return err
	}
	backoff := time.Second
	for attempt := 1; ; attempt++ {
		err = p.publish(ctx, body)
		if err == nil {
			return nil
		}
		p.closeConn()
		if attempt == publishAttempts {
			return err
		}
		p.log.WithError(err).Warnf("publish attempt %d failed; retrying in %s", attempt, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (p *AMQPDispatcher) publish(ctx context.Context, body []byte) error {
	if err := p.ensureChannel(); err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	// default exchange, routing key = queue name
	return p.ch.PublishWithContext(pctx, "", p.queue, false, false, pub)
}

func (p *AMQPDispatcher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.closeConn()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPDispatcher) closeConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
