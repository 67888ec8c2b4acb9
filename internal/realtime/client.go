package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"
)

// Inbound message types.
const (
	ActionJoinGame  = "join-game"
	ActionLeaveGame = "leave-game"
)

const writeTimeout = 10 * time.Second

type inbound struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

// Client is one websocket connection.  Reads happen on the goroutine that
// calls Serve; writes happen on a second goroutine draining a bounded
// buffer so a slow socket never blocks a broadcast.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	userID string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	log    *logrus.Entry
}

// NewClient wraps conn.  buffer bounds the number of undelivered messages.
func NewClient(conn *websocket.Conn, hub *Hub, userID string, buffer int) *Client {
	if buffer < 1 {
		buffer = 1
	}
	return &Client{
		conn:   conn,
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		log:    logrus.WithFields(logrus.Fields{"component": "realtime", "user_id": userID}),
	}
}

// Send implements Subscriber.
func (c *Client) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Serve runs the connection until the peer disconnects or ctx ends, then
// drops every subscription.
func (c *Client) Serve(ctx context.Context) {
	go c.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.close()
		case <-c.done:
		}
	}()
	// handle may subscribe after a failed write already closed the client
	defer c.hub.UnsubscribeAll(c)
	defer c.close()

	for {
		var in inbound
		if err := websocket.JSON.Receive(c.conn, &in); err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case <-c.done:
				default:
					c.log.WithError(err).Debug("websocket read ended")
				}
			}
			return
		}
		c.handle(in)
	}
}

func (c *Client) handle(in inbound) {
	if in.GameID == "" {
		c.reply("error", map[string]string{"message": "gameId is required"})
		return
	}
	switch in.Type {
	case ActionJoinGame:
		select {
		case <-c.done:
			return
		default:
		}
		c.hub.Subscribe(c, in.GameID)
		c.log.WithField("game_id", in.GameID).Debug("subscribed")
	case ActionLeaveGame:
		c.hub.Unsubscribe(c, in.GameID)
	default:
		c.reply("error", map[string]string{"message": "unknown message type"})
	}
}

func (c *Client) reply(event string, payload any) {
	msg, err := Encode("", event, payload)
	if err == nil {
		c.Send(msg)
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.Message.Send(c.conn, string(msg)); err != nil {
				c.log.WithError(err).Debug("websocket write failed")
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		c.hub.UnsubscribeAll(c)
		close(c.done)
		_ = c.conn.Close()
	})
}
