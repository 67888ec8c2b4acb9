package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// StartNotificationConsumer connects to RabbitMQ, declares the durable
// notification queue and delivers every message through d.  It reconnects
// with exponential backoff and returns only when ctx is cancelled.
// Messages that cannot be decoded or stored are rejected without requeue
// so a poison message cannot spin the consumer.
func StartNotificationConsumer(ctx context.Context, url, queue string, d *Deliverer) {
	log := logrus.WithFields(logrus.Fields{"component": "notifications.consumer", "queue": queue})
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, queue, d, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, d deliverer, log *logrus.Entry) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("set QoS failed")
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	log.Info("notification consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, m.Body, d); err != nil {
				log.WithError(err).Error("handle message failed")
				_ = m.Nack(false, false)
				continue
			}
			_ = m.Ack(false)
		}
	}
}

func handleMessage(ctx context.Context, body []byte, d deliverer) error {
	in, err := decodeMessage(body)
	if err != nil {
		return err
	}
	dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	return d.Deliver(dctx, in)
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
