package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/webmeet/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client is a wrapper for a single websocket connection.
type Client struct {
	// ID identifies the connection inside the relay.
	ID ConnID

	hub   *Hub
	conn  *websocket.Conn
	codec protocol.Codec

	// send is the ordered outbound queue. Only the hub writes to it and only
	// the hub closes it; WritePump drains it.
	send chan *protocol.Message

	limiter *rate.Limiter
	log     *slog.Logger

	// roomID is the room the client currently sits in. Owned by the hub
	// goroutine.
	roomID string
}

// NewClient wraps an upgraded connection. The codec follows the negotiated
// websocket subprotocol.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := newConnID()
	codec := protocol.CodecFor(conn.Subprotocol())
	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		codec:   codec,
		send:    make(chan *protocol.Message, hub.opts.SendQueue),
		limiter: rate.NewLimiter(rate.Limit(hub.opts.MessagesPerSecond), hub.opts.MessageBurst),
		log:     hub.log.With("conn", string(id), "remote", conn.RemoteAddr().String(), "codec", codec.Name()),
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.log.Warn("rate limit exceeded, closing connection")
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit"),
				time.Now().Add(writeWait))
			return
		}

		var msg protocol.Message
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			c.log.Debug("malformed message", "error", err)
			if !c.hub.dispatch(inbound{client: c, err: err}) {
				return
			}
			continue
		}

		if !c.hub.dispatch(inbound{client: c, msg: &msg}) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.codec.Marshal(message)
			if err != nil {
				c.log.Error("encode failed", "type", message.Type, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
