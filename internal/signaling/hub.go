package signaling

import (
	"context"
	"log/slog"

	"github.com/BioHazard786/webmeet/internal/protocol"
)

// Options tunes per-connection limits.
type Options struct {
	// MaxMessageSize is the largest frame accepted from a client.
	MaxMessageSize int64

	// SendQueue is the outbound queue length per client. A client whose
	// queue is full is disconnected instead of stalling the hub.
	SendQueue int

	// MessagesPerSecond and MessageBurst bound inbound traffic per client.
	MessagesPerSecond float64
	MessageBurst      int
}

// DefaultOptions returns the limits used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxMessageSize:    64 * 1024, // enough for SDP with many candidates
		SendQueue:         256,
		MessagesPerSecond: 20,
		MessageBurst:      40,
	}
}

// inbound is one decoded message (or decode failure) from a client.
type inbound struct {
	client *Client
	msg    *protocol.Message
	err    error
}

// Hub is the central brain of the signaling server. A single goroutine
// (Run) makes every relay decision, so messages from one connection are
// handled and forwarded in the order they were read.
type Hub struct {
	rooms    *RoomTable
	registry *Registry
	log      *slog.Logger
	opts     Options

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}
}

// NewHub creates a hub over the given room table and registry. The default
// logger is used when log is nil.
func NewHub(rooms *RoomTable, registry *Registry, log *slog.Logger, opts Options) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		rooms:      rooms,
		registry:   registry,
		log:        log,
		opts:       opts,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
	}
}

// Rooms returns the hub's room table.
func (h *Hub) Rooms() *RoomTable {
	return h.rooms
}

// Register hands a freshly upgraded client to the hub. It reports false when
// the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister tells the hub the client's connection is gone.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(in inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

// Run processes registrations and messages until ctx is cancelled. On exit
// every client's send queue is closed, which closes its connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registry.Add(client)
			client.log.Info("client registered")

		case client := <-h.unregister:
			h.disconnect(client)

		case in := <-h.inbound:
			h.handle(in)
		}
	}
}

func (h *Hub) handle(in inbound) {
	c := in.client
	if _, ok := h.registry.Get(c.ID); !ok {
		return // dropped while the message was in flight
	}

	if in.err != nil {
		h.deliver(c, protocol.NewError("malformed message"))
		return
	}

	msg := in.msg
	switch msg.Type {
	case protocol.TypeJoin:
		h.join(c, msg.RoomID)

	case protocol.TypeReady, protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		h.forward(c, msg, msg.Type)

	case protocol.TypeSendMessage:
		h.forward(c, msg, protocol.TypeReceiveMessage)

	case protocol.TypeLeave:
		h.leave(c, h.roomOf(c, msg))

	default:
		c.log.Debug("unknown message type", "type", msg.Type)
		h.deliver(c, protocol.NewError("unknown message type: "+msg.Type))
	}
}

// roomOf returns the room a message addresses. Messages without a room id
// address the sender's current room.
func (h *Hub) roomOf(c *Client, msg *protocol.Message) string {
	if msg.RoomID != "" {
		return msg.RoomID
	}
	return c.roomID
}

func (h *Hub) join(c *Client, roomID string) {
	if roomID == "" {
		h.deliver(c, protocol.NewError("room id is required"))
		return
	}

	outcome := h.rooms.Join(c.ID, roomID)
	c.log.Info("join", "room", roomID, "outcome", outcome.String())

	switch outcome {
	case Created:
		h.moveTo(c, roomID)
		h.deliver(c, &protocol.Message{Type: protocol.TypeRoomCreated})
	case Joined:
		h.moveTo(c, roomID)
		h.deliver(c, &protocol.Message{Type: protocol.TypeRoomJoined})
	case Full:
		h.deliver(c, &protocol.Message{Type: protocol.TypeFull})
	}
}

// moveTo records roomID as c's room. A connection sits in at most one room,
// so a seat it held elsewhere is given up only once the new one is secured.
func (h *Hub) moveTo(c *Client, roomID string) {
	if c.roomID != "" && c.roomID != roomID {
		h.leave(c, c.roomID)
	}
	c.roomID = roomID
}

// forward relays msg to the other member of the sender's room as type t.
// Without another member the message is dropped: the peer already left.
func (h *Hub) forward(c *Client, msg *protocol.Message, t string) {
	roomID := h.roomOf(c, msg)
	target, ok := h.peerOf(c.ID, roomID)
	if !ok {
		c.log.Debug("no peer to relay to, dropping", "type", msg.Type, "room", roomID)
		return
	}

	c.log.Debug("relay", "type", t, "room", roomID, "to", string(target.ID))
	h.deliver(target, msg.Forward(t))
}

func (h *Hub) peerOf(conn ConnID, roomID string) (*Client, bool) {
	other, ok := h.rooms.OtherMember(conn, roomID)
	if !ok {
		return nil, false
	}
	return h.registry.Get(other)
}

// leave removes c from roomID and tells the remaining member. Leaving a room
// c is not in does nothing, so a repeated leave is never broadcast twice.
func (h *Hub) leave(c *Client, roomID string) {
	if roomID == "" {
		return
	}

	peer, hasPeer := h.peerOf(c.ID, roomID)
	if !h.rooms.Leave(c.ID, roomID) {
		return
	}
	if c.roomID == roomID {
		c.roomID = ""
	}

	c.log.Info("left room", "room", roomID)
	if hasPeer {
		h.deliver(peer, &protocol.Message{Type: protocol.TypeLeave})
	}
}

// deliver queues msg for c without blocking the hub. A client that cannot
// keep up is disconnected.
func (h *Hub) deliver(c *Client, msg *protocol.Message) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("send queue full, dropping client", "type", msg.Type)
		h.disconnect(c)
	}
}

// disconnect is an implicit leave followed by closing the send queue.
func (h *Hub) disconnect(c *Client) {
	if !h.registry.Remove(c.ID) {
		return
	}

	h.leave(c, c.roomID)
	close(c.send)
	c.log.Info("client unregistered")
}

func (h *Hub) shutdown() {
	var clients []*Client
	h.registry.Range(func(c *Client) bool {
		clients = append(clients, c)
		return true
	})
	for _, c := range clients {
		h.disconnect(c)
	}
	h.log.Info("hub stopped", "clients", len(clients))
}
