package realtime

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const natsSubjectPrefix = "games."

// ConnectNATS dials the NATS server used for cross-process fan-out.
func ConnectNATS(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("matchup-realtime"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
	}
	return nats.Connect(url, opts...)
}

// NATSBroker relays game events between server processes over NATS
// subjects games.<id>.
type NATSBroker struct {
	nc  *nats.Conn
	hub *Hub
	log *logrus.Entry
}

func NewNATSBroker(nc *nats.Conn, hub *Hub) *NATSBroker {
	return &NATSBroker{nc: nc, hub: hub, log: logrus.WithField("component", "realtime.nats")}
}

// Publish implements the service publisher.
func (b *NATSBroker) Publish(ctx context.Context, gameID, event string, payload any) error {
	msg, err := Encode(gameID, event, payload)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(natsSubjectPrefix+gameID, msg); err != nil {
		b.hub.Broadcast(gameID, msg)
		return err
	}
	return nil
}

// Run subscribes to games.* and forwards to the hub until ctx is done.
// NATS invokes the handler sequentially, which keeps per-game order.
func (b *NATSBroker) Run(ctx context.Context) error {
	sub, err := b.nc.Subscribe(natsSubjectPrefix+"*", func(m *nats.Msg) {
		gameID := strings.TrimPrefix(m.Subject, natsSubjectPrefix)
		b.hub.Broadcast(gameID, m.Data)
	})
	if err != nil {
		return err
	}
	b.log.Info("nats fan-out subscribed")
	<-ctx.Done()
	return sub.Unsubscribe()
}
