// Package signalclient connects the meet client to the signaling relay.
package signalclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/webmeet/internal/dns"
	"github.com/BioHazard786/webmeet/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("signaling connection closed")

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	serverURL   string
	subprotocol string
	resolver    *dns.Resolver
	log         *slog.Logger

	conn     *websocket.Conn
	codec    protocol.Codec
	incoming chan *protocol.Message
	outgoing chan *protocol.Message
	done     chan struct{}
	once     sync.Once
}

// NewClient creates a client for serverURL that asks for the given codec
// subprotocol ("json" or "msgpack").
func NewClient(serverURL, subprotocol string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		serverURL:   serverURL,
		subprotocol: subprotocol,
		resolver:    dns.NewResolver(),
		log:         log,
		incoming:    make(chan *protocol.Message, 16),
		outgoing:    make(chan *protocol.Message, 16),
		done:        make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := websocket.Dialer{
		NetDialContext:   c.resolver.DialContext,
		HandshakeTimeout: 10 * time.Second,
	}
	if c.subprotocol != "" {
		dialer.Subprotocols = []string{c.subprotocol}
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	// A relay that ignores the subprotocol speaks JSON.
	c.conn = conn
	c.codec = protocol.CodecFor(conn.Subprotocol())
	c.log.Debug("connected to signaling server", "url", u.String(), "codec", c.codec.Name())

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// Codec returns the negotiated codec. It is nil before Connect.
func (c *Client) Codec() protocol.Codec {
	return c.codec
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("signaling connection lost", "error", err)
			}
			return
		}

		var msg protocol.Message
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			c.log.Warn("dropping malformed message", "error", err)
			continue
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			data, err := c.codec.Marshal(message)
			if err != nil {
				c.log.Error("failed to encode message", "type", message.Type, "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes what is already queued, typically a final leave.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.outgoing:
			data, err := c.codec.Marshal(message)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues a message for the server. It fails once the connection is
// closed.
func (c *Client) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming returns the channel of messages from the server. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Close closes the connection. Messages already passed to Send are written
// first. It is safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}
