package realtime

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisChannelPrefix = "game:"

// RedisBroker relays game events between server processes over Redis
// pub/sub.  Publish sends to game:<id>; Run subscribes to game:* and hands
// every message to the local hub, including the ones this process sent.
type RedisBroker struct {
	rdb *redis.Client
	hub *Hub
	log *logrus.Entry
}

func NewRedisBroker(rdb *redis.Client, hub *Hub) *RedisBroker {
	return &RedisBroker{rdb: rdb, hub: hub, log: logrus.WithField("component", "realtime.redis")}
}

// Publish implements the service publisher.  When Redis refuses the
// message, local subscribers still receive it.
func (b *RedisBroker) Publish(ctx context.Context, gameID, event string, payload any) error {
	msg, err := Encode(gameID, event, payload)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, redisChannelPrefix+gameID, msg).Err(); err != nil {
		b.hub.Broadcast(gameID, msg)
		return err
	}
	return nil
}

// Run forwards messages until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	ps := b.rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	b.log.Info("redis fan-out subscribed")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			gameID := strings.TrimPrefix(m.Channel, redisChannelPrefix)
			b.hub.Broadcast(gameID, []byte(m.Payload))
		}
	}
}
