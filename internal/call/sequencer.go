package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/webmeet/internal/chat"
	"github.com/BioHazard786/webmeet/internal/protocol"
)

// Signaler sends messages to the relay.
type Signaler interface {
	Send(msg *protocol.Message) error
}

// Observer is told about everything the call screen shows. Methods are called
// from the sequencer goroutine and must not block for long.
type Observer interface {
	StatusChanged(status Status)
	LocalStream(stream *LocalStream)
	RemoteTrack(track RemoteTrack)
	RemoteCleared()
	Chat(msg chat.Message)
	Error(err error)
}

// Config wires a Sequencer to its collaborators. Observer, Chat and Log are
// optional.
type Config struct {
	RoomID      string
	Signaler    Signaler
	Peers       PeerFactory
	Media       MediaSource
	Constraints MediaConstraints
	Observer    Observer
	Chat        *chat.Store
	Log         *slog.Logger
}

// Sequencer drives one client through joining a room and negotiating a peer
// connection with the other member.
//
// All state is owned by the goroutine running Run. Relay messages arrive on
// the incoming channel; peer connection callbacks and user commands are
// queued as tasks onto the same loop, so nothing is handled concurrently.
type Sequencer struct {
	roomID      string
	signaler    Signaler
	peers       PeerFactory
	media       MediaSource
	constraints MediaConstraints
	observer    Observer
	chat        *chat.Store
	log         *slog.Logger

	ctx   context.Context
	tasks chan func()
	done  chan struct{}

	state         State
	role          Role
	local         *LocalStream
	pc            PeerConnection
	remoteSet     bool
	pending       []webrtc.ICECandidateInit
	remoteTracks  []RemoteTrack
	micEnabled    bool
	cameraEnabled bool
	err           error
}

func NewSequencer(cfg Config) *Sequencer {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	store := cfg.Chat
	if store == nil {
		store = chat.NewStore()
	}

	return &Sequencer{
		roomID:        cfg.RoomID,
		signaler:      cfg.Signaler,
		peers:         cfg.Peers,
		media:         cfg.Media,
		constraints:   cfg.Constraints,
		observer:      observer,
		chat:          store,
		log:           log.With("room", cfg.RoomID),
		ctx:           context.Background(),
		tasks:         make(chan func(), 64),
		done:          make(chan struct{}),
		micEnabled:    true,
		cameraEnabled: true,
	}
}

// Run processes relay messages and queued tasks until the call ends, ctx is
// cancelled or incoming is closed. It returns ErrRoomFull when the room had
// no seat and ErrSignalingClosed when the relay went away; a call ended by
// the user returns nil.
func (s *Sequencer) Run(ctx context.Context, incoming <-chan *protocol.Message) error {
	s.ctx = ctx
	defer close(s.done)

	for s.state != Ended {
		select {
		case <-ctx.Done():
			s.exit()

		case msg, ok := <-incoming:
			if !ok {
				s.end(ErrSignalingClosed)
				break
			}
			s.Handle(msg)

		case task := <-s.tasks:
			task()
		}
	}
	return s.err
}

// Done is closed when Run returns.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// Chat returns the chat history of the call.
func (s *Sequencer) Chat() *chat.Store {
	return s.chat
}

// Join asks the relay for a seat in the room.
func (s *Sequencer) Join() {
	s.enqueue(s.join)
}

// ToggleMic flips the microphone between live and muted.
func (s *Sequencer) ToggleMic() {
	s.enqueue(func() {
		s.micEnabled = !s.micEnabled
		s.setTracksEnabled(webrtc.RTPCodecTypeAudio, s.micEnabled)
		s.publish()
	})
}

// ToggleCamera flips the camera between live and black frames.
func (s *Sequencer) ToggleCamera() {
	s.enqueue(func() {
		s.cameraEnabled = !s.cameraEnabled
		s.setTracksEnabled(webrtc.RTPCodecTypeVideo, s.cameraEnabled)
		s.publish()
	})
}

// SendChat sends a chat message to the other member. Blank text is ignored.
func (s *Sequencer) SendChat(text string) {
	s.enqueue(func() { s.sendChat(text) })
}

// ExitCall leaves the room and releases every resource.
func (s *Sequencer) ExitCall() {
	s.enqueue(s.exit)
}

func (s *Sequencer) enqueue(task func()) {
	select {
	case s.tasks <- task:
	case <-s.done:
	}
}

// Handle applies one relay message. It must only be called from the
// goroutine running Run, or while Run is not running.
func (s *Sequencer) Handle(msg *protocol.Message) {
	if s.state == Ended {
		return
	}

	switch msg.Type {
	case protocol.TypeRoomCreated:
		s.onRoomCreated()
	case protocol.TypeRoomJoined:
		s.onRoomJoined()
	case protocol.TypeFull:
		s.log.Info("room is full")
		s.end(ErrRoomFull)
	case protocol.TypeReady:
		s.onReady()
	case protocol.TypeOffer:
		s.onOffer(msg)
	case protocol.TypeAnswer:
		s.onAnswer(msg)
	case protocol.TypeICECandidate:
		s.onRemoteCandidate(msg)
	case protocol.TypeLeave:
		s.onPeerLeft()
	case protocol.TypeReceiveMessage:
		s.onChat(msg)
	case protocol.TypeError:
		var e protocol.ErrorPayload
		if err := msg.DecodePayload(&e); err != nil {
			e.Error = "unknown relay error"
		}
		s.report(WrapError("relay", ErrUnexpectedSignal, e.Error))
	default:
		s.log.Debug("ignoring message", "type", msg.Type)
	}
}

func (s *Sequencer) join() {
	if s.state == Ended {
		return
	}

	// A new cycle starts from scratch: the role comes only from the new
	// room outcome. Give up the current seat first so the relay places
	// this client by its real position and the other member renegotiates.
	seated := s.seated()
	s.teardownPeer()
	s.releaseLocal()
	s.role = RoleUnknown

	if seated {
		if err := s.send(protocol.TypeLeave, nil); err != nil {
			s.end(err)
			return
		}
	}
	if err := s.send(protocol.TypeJoin, nil); err != nil {
		s.end(err)
		return
	}
	s.setState(AwaitingRoomOutcome)
}

func (s *Sequencer) onRoomCreated() {
	if s.state != AwaitingRoomOutcome {
		s.unexpected(protocol.TypeRoomCreated)
		return
	}

	s.role = RoleHost
	s.log.Info("room created, waiting for a peer")
	if !s.acquireMedia() {
		s.setState(Idle)
		return
	}
	s.setState(AwaitingPeerReady)
}

func (s *Sequencer) onRoomJoined() {
	if s.state != AwaitingRoomOutcome {
		s.unexpected(protocol.TypeRoomJoined)
		return
	}

	s.role = RoleGuest
	s.setState(AcquiringMedia)
	if !s.acquireMedia() {
		s.setState(Idle)
		return
	}

	if err := s.send(protocol.TypeReady, nil); err != nil {
		s.end(err)
		return
	}
	s.setState(AwaitingOffer)
}

// acquireMedia captures the local stream for this join and shows it.
func (s *Sequencer) acquireMedia() bool {
	stream, err := s.media.Acquire(s.ctx, s.constraints)
	if err != nil {
		s.report(NewError("acquire media", err))
		return false
	}

	s.local = stream
	s.setTracksEnabled(webrtc.RTPCodecTypeAudio, s.micEnabled)
	s.setTracksEnabled(webrtc.RTPCodecTypeVideo, s.cameraEnabled)
	s.observer.LocalStream(stream)
	return true
}

func (s *Sequencer) onReady() {
	if s.role != RoleHost || s.state != AwaitingPeerReady {
		s.unexpected(protocol.TypeReady)
		return
	}

	if err := s.offer(); err != nil {
		s.teardownPeer()
		s.report(err)
		return
	}
	s.setState(Negotiating)
}

func (s *Sequencer) offer() error {
	pc, err := s.newPeer()
	if err != nil {
		return err
	}

	offer, err := pc.CreateOffer()
	if err != nil {
		return NewError("create offer", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return NewError("set local description", err)
	}
	return s.send(protocol.TypeOffer, offer)
}

func (s *Sequencer) onOffer(msg *protocol.Message) {
	if s.role != RoleGuest || s.state != AwaitingOffer {
		s.unexpected(protocol.TypeOffer)
		return
	}

	var offer webrtc.SessionDescription
	if err := msg.DecodePayload(&offer); err != nil || offer.Type != webrtc.SDPTypeOffer {
		s.report(WrapError("handle offer", ErrBadPayload, string(msg.Payload)))
		return
	}

	if err := s.answer(offer); err != nil {
		s.teardownPeer()
		s.report(err)
		return
	}
	s.setState(Negotiating)
}

func (s *Sequencer) answer(offer webrtc.SessionDescription) error {
	pc, err := s.newPeer()
	if err != nil {
		return err
	}

	if err := s.setRemote(offer); err != nil {
		return err
	}
	answer, err := pc.CreateAnswer()
	if err != nil {
		return NewError("create answer", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return NewError("set local description", err)
	}
	return s.send(protocol.TypeAnswer, answer)
}

func (s *Sequencer) onAnswer(msg *protocol.Message) {
	if s.role != RoleHost || s.state != Negotiating || s.remoteSet {
		s.unexpected(protocol.TypeAnswer)
		return
	}

	var answer webrtc.SessionDescription
	if err := msg.DecodePayload(&answer); err != nil || answer.Type != webrtc.SDPTypeAnswer {
		s.report(WrapError("handle answer", ErrBadPayload, string(msg.Payload)))
		return
	}

	if err := s.setRemote(answer); err != nil {
		s.report(err)
		return
	}
	s.setState(Connected)
}

// setRemote applies the remote description and then every candidate that
// arrived before it, in arrival order.
func (s *Sequencer) setRemote(desc webrtc.SessionDescription) error {
	if s.pc == nil {
		return NewError("set remote description", ErrNoPeerConnection)
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}
	s.remoteSet = true

	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.log.Warn("failed to add queued ICE candidate", "error", err)
		}
	}
	return nil
}

func (s *Sequencer) onRemoteCandidate(msg *protocol.Message) {
	var candidate webrtc.ICECandidateInit
	if err := msg.DecodePayload(&candidate); err != nil {
		s.report(WrapError("handle ICE candidate", ErrBadPayload, err.Error()))
		return
	}

	if s.pc == nil || !s.remoteSet {
		s.pending = append(s.pending, candidate)
		return
	}
	if err := s.pc.AddICECandidate(candidate); err != nil {
		s.log.Warn("failed to add ICE candidate", "error", err)
	}
}

// newPeer creates the peer connection for this negotiation and attaches the
// local tracks. Kinds without a local track get a receive-only slot.
func (s *Sequencer) newPeer() (PeerConnection, error) {
	if s.pc != nil {
		s.teardownPeer()
	}

	pc, err := s.peers.NewPeerConnection()
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	s.pc = pc
	s.remoteSet = false

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if s.local == nil || !s.local.Has(kind) {
			if err := pc.AddReceiveOnly(kind); err != nil {
				return nil, NewError("add "+kind.String()+" transceiver", err)
			}
			continue
		}
		for _, t := range s.local.TracksOf(kind) {
			if err := pc.AddTrack(t); err != nil {
				return nil, NewError("add "+kind.String()+" track", err)
			}
		}
	}

	pc.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.enqueue(func() {
			if s.pc != pc {
				return
			}
			if err := s.send(protocol.TypeICECandidate, c); err != nil {
				s.log.Warn("failed to send ICE candidate", "error", err)
			}
		})
	})
	pc.OnTrack(func(track RemoteTrack) {
		s.enqueue(func() {
			if s.pc != pc {
				return
			}
			s.log.Info("remote track", "kind", track.Kind().String(), "codec", track.Codec())
			s.remoteTracks = append(s.remoteTracks, track)
			s.observer.RemoteTrack(track)
			if s.state == Negotiating {
				s.setState(Connected)
			}
		})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.enqueue(func() {
			if s.pc != pc {
				return
			}
			s.log.Debug("peer connection state", "state", state.String())
			switch state {
			case webrtc.PeerConnectionStateConnected:
				if s.state == Negotiating {
					s.setState(Connected)
				}
			case webrtc.PeerConnectionStateFailed:
				s.report(NewError("peer connection", errors.New("connection failed")))
			}
		})
	})
	return pc, nil
}

func (s *Sequencer) onPeerLeft() {
	if s.role == RoleUnknown {
		s.unexpected(protocol.TypeLeave)
		return
	}

	s.log.Info("peer left the room")
	s.teardownPeer()

	// Whoever stays becomes the host and waits for the next guest.
	s.role = RoleHost
	if s.local == nil {
		s.setState(Idle)
		return
	}
	s.setState(AwaitingPeerReady)
}

func (s *Sequencer) sendChat(text string) {
	if s.state == Ended {
		return
	}
	msg, ok := s.chat.Add(text, chat.User)
	if !ok {
		return
	}
	if err := s.send(protocol.TypeSendMessage, protocol.ChatPayload{Text: msg.Text}); err != nil {
		s.report(err)
		return
	}
	s.observer.Chat(msg)
}

func (s *Sequencer) onChat(m *protocol.Message) {
	var payload protocol.ChatPayload
	if err := m.DecodePayload(&payload); err != nil {
		s.report(WrapError("handle chat", ErrBadPayload, err.Error()))
		return
	}
	if msg, ok := s.chat.Add(payload.Text, chat.Peer); ok {
		s.observer.Chat(msg)
	}
}

// exit leaves the room, when there is one, and ends the call.
func (s *Sequencer) exit() {
	if s.state == Ended {
		return
	}
	if s.seated() {
		if err := s.send(protocol.TypeLeave, nil); err != nil {
			s.log.Debug("failed to send leave", "error", err)
		}
	}
	s.end(nil)
}

// seated reports whether the relay may hold a seat for this client: a join
// is pending or answered.
func (s *Sequencer) seated() bool {
	return s.state != Idle || s.role != RoleUnknown
}

// end releases everything and moves to Ended. It is the only way out.
func (s *Sequencer) end(err error) {
	if s.state == Ended {
		return
	}
	s.teardownPeer()
	s.releaseLocal()
	s.err = err
	if err != nil && !errors.Is(err, ErrRoomFull) {
		s.log.Warn("call ended", "error", err)
	}
	s.setState(Ended)
}

// teardownPeer closes the peer connection and forgets everything that
// belonged to it.
func (s *Sequencer) teardownPeer() {
	s.pending = nil
	s.remoteSet = false
	if s.pc == nil {
		return
	}
	if err := s.pc.Close(); err != nil {
		s.log.Debug("failed to close peer connection", "error", err)
	}
	s.pc = nil
	if len(s.remoteTracks) > 0 {
		s.remoteTracks = nil
		s.observer.RemoteCleared()
	}
}

func (s *Sequencer) releaseLocal() {
	if s.local == nil {
		return
	}
	s.local.Stop()
	s.local = nil
}

func (s *Sequencer) setTracksEnabled(kind webrtc.RTPCodecType, enabled bool) {
	if s.local == nil {
		return
	}
	for _, t := range s.local.TracksOf(kind) {
		t.SetEnabled(enabled)
	}
}

func (s *Sequencer) send(t string, payload any) error {
	msg, err := protocol.NewMessage(t, s.roomID, payload)
	if err != nil {
		return NewError("encode "+t, err)
	}
	if err := s.signaler.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", t, errors.Join(ErrSignalingClosed, err))
	}
	return nil
}

func (s *Sequencer) unexpected(t string) {
	s.log.Warn("ignoring out of order signal", "type", t, "state", s.state.String(), "role", s.role.String())
}

func (s *Sequencer) report(err error) {
	s.log.Error("call error", "error", err)
	s.observer.Error(err)
}

func (s *Sequencer) setState(state State) {
	if s.state != state {
		s.log.Debug("state", "from", s.state.String(), "to", state.String())
	}
	s.state = state
	s.publish()
}

func (s *Sequencer) publish() {
	s.observer.StatusChanged(s.status())
}

func (s *Sequencer) status() Status {
	return Status{State: s.state, Role: s.role, Mic: s.micEnabled, Camera: s.cameraEnabled}
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StatusChanged(Status)     {}
func (NopObserver) LocalStream(*LocalStream) {}
func (NopObserver) RemoteTrack(RemoteTrack)  {}
func (NopObserver) RemoteCleared()           {}
func (NopObserver) Chat(chat.Message)        {}
func (NopObserver) Error(error)              {}
