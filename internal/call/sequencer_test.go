package call

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/webmeet/internal/chat"
	"github.com/BioHazard786/webmeet/internal/protocol"
	"github.com/BioHazard786/webmeet/internal/signaling"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candidate(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func TestJoinSendsJoinWithRoomID(t *testing.T) {
	h := newHarness("r1")
	h.seq.Join()
	h.seq.runPending()

	msg := h.signaler.last(protocol.TypeJoin)
	require.NotNil(t, msg)
	assert.Equal(t, "r1", msg.RoomID)
	assert.Equal(t, AwaitingRoomOutcome, h.seq.state)
	assert.Equal(t, RoleUnknown, h.seq.role)
}

func TestHostFlow(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeRoomCreated)

	assert.Equal(t, RoleHost, h.seq.role)
	assert.Equal(t, AwaitingPeerReady, h.seq.state)
	assert.Equal(t, 1, h.media.calls)
	assert.Equal(t, 1, h.observer.locals)
	assert.Empty(t, h.peers.peers, "no peer connection before the guest is ready")

	h.handle(protocol.TypeReady, nil)
	require.Len(t, h.peers.peers, 1)
	pc := h.peers.last()
	assert.Equal(t, Negotiating, h.seq.state)
	assert.Len(t, pc.tracks, 2)
	assert.Equal(t, 1, pc.offers)
	require.NotNil(t, pc.local)
	assert.Equal(t, webrtc.SDPTypeOffer, pc.local.Type)

	sent := h.signaler.last(protocol.TypeOffer)
	require.NotNil(t, sent)
	assert.Equal(t, "r1", sent.RoomID)
	var offer webrtc.SessionDescription
	require.NoError(t, sent.DecodePayload(&offer))
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.Equal(t, "v=0 offer", offer.SDP)

	// Guest candidates racing ahead of the answer wait for it.
	h.handle(protocol.TypeICECandidate, candidate("c1"))
	h.handle(protocol.TypeICECandidate, candidate("c2"))
	assert.Empty(t, pc.candidates)

	h.handle(protocol.TypeAnswer, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"})
	assert.Equal(t, Connected, h.seq.state)
	require.NotNil(t, pc.remote)
	assert.Equal(t, []webrtc.ICECandidateInit{candidate("c1"), candidate("c2")}, pc.candidates)

	h.handle(protocol.TypeICECandidate, candidate("c3"))
	assert.Len(t, pc.candidates, 3)

	// Local candidates go out right away.
	pc.onCandidate(candidate("local"))
	h.seq.runPending()
	msg := h.signaler.last(protocol.TypeICECandidate)
	require.NotNil(t, msg)
	assert.Equal(t, "r1", msg.RoomID)
	var local webrtc.ICECandidateInit
	require.NoError(t, msg.DecodePayload(&local))
	assert.Equal(t, "local", local.Candidate)
}

func TestGuestFlow(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeRoomJoined)

	assert.Equal(t, RoleGuest, h.seq.role)
	assert.Equal(t, AwaitingOffer, h.seq.state)
	assert.Equal(t, []string{protocol.TypeJoin, protocol.TypeReady}, h.signaler.types())

	h.handle(protocol.TypeICECandidate, candidate("early"))
	assert.Empty(t, h.peers.peers)

	h.handle(protocol.TypeOffer, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"})
	require.Len(t, h.peers.peers, 1)
	pc := h.peers.last()
	assert.Equal(t, Negotiating, h.seq.state)
	assert.Equal(t, 1, pc.answers)
	assert.Equal(t, 0, pc.offers)
	assert.Len(t, pc.tracks, 2)
	assert.Equal(t, []webrtc.ICECandidateInit{candidate("early")}, pc.candidates)

	var answer webrtc.SessionDescription
	require.NoError(t, h.signaler.last(protocol.TypeAnswer).DecodePayload(&answer))
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	pc.onTrack(fakeRemoteTrack{kind: webrtc.RTPCodecTypeVideo})
	h.seq.runPending()
	assert.Equal(t, Connected, h.seq.state)
	assert.Len(t, h.observer.remotes, 1)
}

func TestOnlyHostOffersAndOnlyGuestAnswers(t *testing.T) {
	guest := newHarness("r1")
	guest.join(protocol.TypeRoomJoined)
	guest.handle(protocol.TypeReady, nil)
	guest.handle(protocol.TypeAnswer, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "x"})
	assert.Empty(t, guest.peers.peers)
	assert.Equal(t, AwaitingOffer, guest.seq.state)

	host := newHarness("r1")
	host.join(protocol.TypeRoomCreated)
	host.handle(protocol.TypeOffer, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "x"})
	host.handle(protocol.TypeAnswer, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "x"})
	assert.Empty(t, host.peers.peers)
	assert.Equal(t, AwaitingPeerReady, host.seq.state)
	assert.Zero(t, host.signaler.count(protocol.TypeAnswer))
}

func TestDuplicateAnswerIsIgnored(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeRoomCreated)
	h.handle(protocol.TypeReady, nil)

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "first"}
	h.handle(protocol.TypeAnswer, answer)
	h.handle(protocol.TypeAnswer, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "second"})

	assert.Equal(t, "first", h.peers.last().remote.SDP)
	assert.Equal(t, Connected, h.seq.state)
}

func TestSecondReadyDoesNotRenegotiate(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeRoomCreated)
	h.handle(protocol.TypeReady, nil)
	h.handle(protocol.TypeReady, nil)

	assert.Len(t, h.peers.peers, 1)
	assert.Equal(t, 1, h.signaler.count(protocol.TypeOffer))
}

func TestMalformedOfferIsReported(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeRoomJoined)
	h.handle(protocol.TypeOffer, map[string]string{"type": "answer", "sdp": "x"})

	assert.Empty(t, h.peers.peers)
	assert.Equal(t, AwaitingOffer, h.seq.state)
	require.Len(t, h.observer.errs, 1)
	assert.ErrorIs(t, h.observer.errs[0], ErrBadPayload)
}

func TestOfferFailureTearsDownPeer(t *testing.T) {
	h := newHarness("r1")
	h.peers.failOffer = errors.New("boom")
	h.join(protocol.TypeRoomCreated)
	h.handle(protocol.TypeReady, nil)

	require.Len(t, h.peers.peers, 1)
	assert.True(t, h.peers.last().closed)
	assert.Nil(t, h.seq.pc)
	assert.Equal(t, AwaitingPeerReady, h.seq.state)
	require.Len(t, h.observer.errs, 1)

	var callErr *CallError
	require.ErrorAs(t, h.observer.errs[0], &callErr)
	assert.Equal(t, "create offer", callErr.Op)
}

func TestFullEndsTheCall(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeFull)

	assert.Equal(t, Ended, h.seq.state)
	assert.ErrorIs(t, h.seq.err, ErrRoomFull)
	assert.Zero(t, h.media.calls)
	assert.Zero(t, h.signaler.count(protocol.TypeLeave))

	// Nothing happens after the end.
	h.handle(protocol.TypeRoomCreated, nil)
	assert.Equal(t, Ended, h.seq.state)
}

func TestMediaFailureStaysIdle(t *testing.T) {
	for _, outcome := range []string{protocol.TypeRoomCreated, protocol.TypeRoomJoined} {
		t.Run(outcome, func(t *testing.T) {
			h := newHarness("r1")
			h.media.err = ErrMediaUnavailable
			h.join(outcome)

			assert.Equal(t, Idle, h.seq.state)
			assert.Zero(t, h.signaler.count(protocol.TypeReady))
			require.Len(t, h.observer.errs, 1)
			assert.ErrorIs(t, h.observer.errs[0], ErrMediaUnavailable)

			h.handle(protocol.TypeReady, nil)
			h.handle(protocol.TypeOffer, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "x"})
			assert.Empty(t, h.peers.peers)
		})
	}
}

func TestReceiveOnlyAddsTransceivers(t *testing.T) {
	h := newHarness("r1")
	h.seq.media = ReceiveOnly{}
	h.join(protocol.TypeRoomJoined)
	h.handle(protocol.TypeOffer, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "x"})

	pc := h.peers.last()
	require.NotNil(t, pc)
	assert.Empty(t, pc.tracks)
	assert.ElementsMatch(t, []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo}, pc.recvOnly)
}

func TestRemoteLeaveMakesSurvivorHost(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeRoomJoined)
	h.handle(protocol.TypeOffer, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "x"})
	old := h.peers.last()
	old.onTrack(fakeRemoteTrack{kind: webrtc.RTPCodecTypeAudio})
	h.seq.runPending()
	require.Equal(t, Connected, h.seq.state)

	h.handle(protocol.TypeLeave, nil)
	assert.True(t, old.closed)
	assert.Nil(t, h.seq.pc)
	assert.Equal(t, RoleHost, h.seq.role)
	assert.Equal(t, AwaitingPeerReady, h.seq.state)
	assert.Equal(t, 1, h.observer.cleared)

	// The local stream survives for the next guest.
	for _, tr := range h.media.last().Tracks() {
		assert.False(t, tr.(*fakeTrack).stopped)
	}

	// Late callbacks from the closed connection are dropped.
	old.onCandidate(candidate("stale"))
	h.seq.runPending()
	assert.Zero(t, h.signaler.count(protocol.TypeICECandidate))

	// Candidates from the departed peer do not leak into the next session.
	h.handle(protocol.TypeICECandidate, candidate("old"))
	h.handle(protocol.TypeLeave, nil)

	h.handle(protocol.TypeReady, nil)
	require.Len(t, h.peers.peers, 2)
	assert.Equal(t, 1, h.peers.last().offers)
	assert.Equal(t, Negotiating, h.seq.state)

	h.handle(protocol.TypeAnswer, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "y"})
	assert.Empty(t, h.peers.last().candidates)
}

func TestRemoteLeaveWithoutMediaGoesIdle(t *testing.T) {
	h := newHarness("r1")
	h.media.err = ErrMediaUnavailable
	h.join(protocol.TypeRoomCreated)
	h.handle(protocol.TypeLeave, nil)

	assert.Equal(t, Idle, h.seq.state)
	assert.Equal(t, RoleHost, h.seq.role)
}

func TestRejoinGivesUpTheSeatFirst(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeRoomCreated)
	first := h.media.last()

	h.seq.Join()
	h.seq.runPending()
	assert.Equal(t, RoleUnknown, h.seq.role)
	assert.Equal(t, AwaitingRoomOutcome, h.seq.state)
	assert.Equal(t, []string{protocol.TypeJoin, protocol.TypeLeave, protocol.TypeJoin}, h.signaler.types())
	assert.Equal(t, "r1", h.signaler.last(protocol.TypeLeave).RoomID)
	for _, tr := range first.Tracks() {
		assert.True(t, tr.(*fakeTrack).stopped)
	}

	h.handle(protocol.TypeRoomJoined, nil)
	assert.Equal(t, RoleGuest, h.seq.role)
	assert.Equal(t, 2, h.media.calls)
}

func TestFirstJoinSendsNoLeave(t *testing.T) {
	h := newHarness("r1")
	h.seq.Join()
	h.seq.runPending()
	assert.Equal(t, []string{protocol.TypeJoin}, h.signaler.types())
}

func TestRoomOutcomeOutsideJoinIsIgnored(t *testing.T) {
	h := newHarness("r1")
	h.handle(protocol.TypeRoomCreated, nil)
	assert.Equal(t, Idle, h.seq.state)
	assert.Equal(t, RoleUnknown, h.seq.role)

	h.handle(protocol.TypeLeave, nil)
	assert.Equal(t, RoleUnknown, h.seq.role)
}

func TestToggles(t *testing.T) {
	h := newHarness("r1")

	// A toggle before capture applies to the tracks once they exist.
	h.seq.ToggleCamera()
	h.seq.runPending()
	h.join(protocol.TypeRoomCreated)

	stream := h.media.last()
	assert.False(t, stream.TracksOf(webrtc.RTPCodecTypeVideo)[0].Enabled())
	assert.True(t, stream.TracksOf(webrtc.RTPCodecTypeAudio)[0].Enabled())

	h.seq.ToggleMic()
	h.seq.ToggleCamera()
	h.seq.runPending()
	assert.False(t, stream.TracksOf(webrtc.RTPCodecTypeAudio)[0].Enabled())
	assert.True(t, stream.TracksOf(webrtc.RTPCodecTypeVideo)[0].Enabled())

	last := h.observer.statuses[len(h.observer.statuses)-1]
	assert.False(t, last.Mic)
	assert.True(t, last.Camera)
}

func TestChat(t *testing.T) {
	h := newHarness("r1")
	h.join(protocol.TypeRoomCreated)

	h.seq.SendChat("   ")
	h.seq.SendChat(" hello ")
	h.seq.runPending()

	assert.Equal(t, 1, h.signaler.count(protocol.TypeSendMessage))
	var payload protocol.ChatPayload
	require.NoError(t, h.signaler.last(protocol.TypeSendMessage).DecodePayload(&payload))
	assert.Equal(t, "hello", payload.Text)

	h.handle(protocol.TypeReceiveMessage, protocol.ChatPayload{Text: "hi back"})

	msgs := h.seq.Chat().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.User, msgs[0].Sender)
	assert.Equal(t, chat.Peer, msgs[1].Sender)
	assert.Equal(t, "hi back", msgs[1].Text)
	assert.Len(t, h.observer.chats, 2)
}

func TestRelayErrorIsReported(t *testing.T) {
	h := newHarness("r1")
	h.seq.Handle(protocol.NewError("room id is required"))

	require.Len(t, h.observer.errs, 1)
	assert.Contains(t, h.observer.errs[0].Error(), "room id is required")
}

func TestSendFailureEndsCall(t *testing.T) {
	h := newHarness("r1")
	h.signaler.err = errors.New("broken pipe")
	h.seq.Join()
	h.seq.runPending()

	assert.Equal(t, Ended, h.seq.state)
	assert.ErrorIs(t, h.seq.err, ErrSignalingClosed)
}

func runSequencer(t *testing.T, h *harness, ctx context.Context, incoming <-chan *protocol.Message) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- h.seq.Run(ctx, incoming) }()
	return result
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("sequencer did not stop")
		return nil
	}
}

func TestExitCallReleasesEverything(t *testing.T) {
	h := newHarness("r1")
	h.seq.Join()
	h.seq.runPending()
	incoming := make(chan *protocol.Message)
	result := runSequencer(t, h, context.Background(), incoming)

	incoming <- &protocol.Message{Type: protocol.TypeRoomCreated}
	incoming <- &protocol.Message{Type: protocol.TypeReady}
	h.seq.ExitCall()

	require.NoError(t, waitResult(t, result))
	assert.Equal(t, []string{protocol.TypeJoin, protocol.TypeOffer, protocol.TypeLeave}, h.signaler.types())
	assert.True(t, h.peers.last().closed)
	for _, tr := range h.media.last().Tracks() {
		assert.True(t, tr.(*fakeTrack).stopped)
	}
	assert.Equal(t, Ended, h.seq.state)

	// Commands after the end return instead of blocking.
	h.seq.ToggleMic()
	<-h.seq.Done()
}

func TestContextCancelLeavesRoom(t *testing.T) {
	h := newHarness("r1")
	h.seq.Join()
	h.seq.runPending()
	ctx, cancel := context.WithCancel(context.Background())
	incoming := make(chan *protocol.Message)
	result := runSequencer(t, h, ctx, incoming)

	incoming <- &protocol.Message{Type: protocol.TypeRoomJoined}
	cancel()

	require.NoError(t, waitResult(t, result))
	assert.Equal(t, protocol.TypeLeave, h.signaler.types()[len(h.signaler.types())-1])
}

func TestSignalingCloseEndsCall(t *testing.T) {
	h := newHarness("r1")
	h.seq.Join()
	h.seq.runPending()
	incoming := make(chan *protocol.Message)
	result := runSequencer(t, h, context.Background(), incoming)

	incoming <- &protocol.Message{Type: protocol.TypeRoomCreated}
	close(incoming)

	err := waitResult(t, result)
	assert.ErrorIs(t, err, ErrSignalingClosed)
	assert.Zero(t, h.signaler.count(protocol.TypeLeave))
	for _, tr := range h.media.last().Tracks() {
		assert.True(t, tr.(*fakeTrack).stopped)
	}
}

// memRelay routes messages between harnesses the way the signaling relay
// does, one delivery at a time.
type memRelay struct {
	rooms   *signaling.RoomTable
	members map[signaling.ConnID]*harness
	queue   []delivery
}

type delivery struct {
	to  *harness
	msg *protocol.Message
}

type memSignaler struct {
	relay *memRelay
	id    signaling.ConnID
	fakeSignaler
}

func (m *memSignaler) Send(msg *protocol.Message) error {
	m.fakeSignaler.Send(msg)
	m.relay.route(m.id, msg)
	return nil
}

func newMemRelay() *memRelay {
	return &memRelay{rooms: signaling.NewRoomTable(), members: map[signaling.ConnID]*harness{}}
}

func (r *memRelay) connect(id string) *harness {
	h := newHarness("r1")
	sig := &memSignaler{relay: r, id: signaling.ConnID(id)}
	h.seq.signaler = sig
	h.signaler = &sig.fakeSignaler
	r.members[sig.id] = h
	return h
}

func (r *memRelay) route(from signaling.ConnID, msg *protocol.Message) {
	reply := func(to signaling.ConnID, t string) {
		r.queue = append(r.queue, delivery{to: r.members[to], msg: msg.Forward(t)})
	}

	switch msg.Type {
	case protocol.TypeJoin:
		switch r.rooms.Join(from, msg.RoomID) {
		case signaling.Created:
			reply(from, protocol.TypeRoomCreated)
		case signaling.Joined:
			reply(from, protocol.TypeRoomJoined)
		case signaling.Full:
			reply(from, protocol.TypeFull)
		}
	case protocol.TypeLeave:
		other, ok := r.rooms.OtherMember(from, msg.RoomID)
		if r.rooms.Leave(from, msg.RoomID) && ok {
			reply(other, protocol.TypeLeave)
		}
	default:
		if other, ok := r.rooms.OtherMember(from, msg.RoomID); ok {
			t := msg.Type
			if t == protocol.TypeSendMessage {
				t = protocol.TypeReceiveMessage
			}
			reply(other, t)
		}
	}
}

// settle delivers queued messages and runs queued tasks until nothing moves.
func (r *memRelay) settle() {
	for {
		for _, h := range r.members {
			h.seq.runPending()
		}
		if len(r.queue) == 0 {
			return
		}
		d := r.queue[0]
		r.queue = r.queue[1:]
		d.to.seq.Handle(d.msg)
	}
}

func TestTwoPartyNegotiation(t *testing.T) {
	relay := newMemRelay()
	a := relay.connect("a")
	b := relay.connect("b")
	c := relay.connect("c")

	a.seq.Join()
	relay.settle()
	b.seq.Join()
	relay.settle()

	assert.Equal(t, RoleHost, a.seq.role)
	assert.Equal(t, RoleGuest, b.seq.role)
	assert.Equal(t, Connected, a.seq.state)
	assert.Equal(t, Negotiating, b.seq.state)

	// Exactly one offer from the host and one answer from the guest.
	require.Len(t, a.peers.peers, 1)
	require.Len(t, b.peers.peers, 1)
	assert.Equal(t, 1, a.peers.last().offers)
	assert.Zero(t, a.peers.last().answers)
	assert.Equal(t, 1, b.peers.last().answers)
	assert.Zero(t, b.peers.last().offers)
	assert.Equal(t, "v=0 offer", b.peers.last().remote.SDP)
	assert.Equal(t, "v=0 answer", a.peers.last().remote.SDP)

	// Candidates cross in both directions.
	a.peers.last().onCandidate(candidate("from-a"))
	b.peers.last().onCandidate(candidate("from-b"))
	relay.settle()
	assert.Equal(t, []webrtc.ICECandidateInit{candidate("from-a")}, b.peers.last().candidates)
	assert.Equal(t, []webrtc.ICECandidateInit{candidate("from-b")}, a.peers.last().candidates)

	c.seq.Join()
	relay.settle()
	assert.Equal(t, Ended, c.seq.state)
	assert.ErrorIs(t, c.seq.err, ErrRoomFull)
	assert.Len(t, relay.rooms.Members("r1"), 2)

	// The guest leaves; the host waits for the next guest.
	b.seq.ExitCall()
	relay.settle()
	assert.Equal(t, Ended, b.seq.state)
	assert.Equal(t, AwaitingPeerReady, a.seq.state)
	assert.True(t, a.peers.peers[0].closed)

	d := relay.connect("d")
	d.seq.Join()
	relay.settle()
	assert.Equal(t, RoleGuest, d.seq.role)
	require.Len(t, a.peers.peers, 2)
	assert.Equal(t, 1, a.peers.last().offers)
	assert.Equal(t, "v=0 answer", a.peers.last().remote.SDP)
}

func TestLoneHostRejoinStaysHost(t *testing.T) {
	relay := newMemRelay()
	h := relay.connect("h")

	h.seq.Join()
	relay.settle()
	require.Equal(t, RoleHost, h.seq.role)

	h.seq.Join()
	relay.settle()
	assert.Equal(t, RoleHost, h.seq.role)
	assert.Equal(t, AwaitingPeerReady, h.seq.state)
	assert.Equal(t, []signaling.ConnID{"h"}, relay.rooms.Members("r1"))

	g := relay.connect("g")
	g.seq.Join()
	relay.settle()
	assert.Equal(t, RoleGuest, g.seq.role)
	assert.Equal(t, 1, h.signaler.count(protocol.TypeOffer))
	assert.Equal(t, 1, g.signaler.count(protocol.TypeAnswer))
	assert.Equal(t, Connected, h.seq.state)
}

func TestRejoinWithPeerRenegotiatesOnce(t *testing.T) {
	for _, rejoiner := range []string{"host", "guest"} {
		t.Run(rejoiner, func(t *testing.T) {
			relay := newMemRelay()
			a := relay.connect("a")
			b := relay.connect("b")
			a.seq.Join()
			relay.settle()
			b.seq.Join()
			relay.settle()
			require.Equal(t, Connected, a.seq.state)

			leaving, staying := a, b
			if rejoiner == "guest" {
				leaving, staying = b, a
			}
			offersBefore := a.signaler.count(protocol.TypeOffer) + b.signaler.count(protocol.TypeOffer)
			answersBefore := a.signaler.count(protocol.TypeAnswer) + b.signaler.count(protocol.TypeAnswer)

			leaving.seq.Join()
			relay.settle()

			// The member that stayed is first in the room and offers; the
			// rejoined member answers.
			assert.Equal(t, RoleHost, staying.seq.role)
			assert.Equal(t, RoleGuest, leaving.seq.role)
			assert.Len(t, relay.rooms.Members("r1"), 2)

			offers := a.signaler.count(protocol.TypeOffer) + b.signaler.count(protocol.TypeOffer) - offersBefore
			answers := a.signaler.count(protocol.TypeAnswer) + b.signaler.count(protocol.TypeAnswer) - answersBefore
			assert.Equal(t, 1, offers)
			assert.Equal(t, 1, answers)

			require.Len(t, staying.peers.peers, 2)
			require.Len(t, leaving.peers.peers, 2)
			assert.True(t, staying.peers.peers[0].closed)
			assert.True(t, leaving.peers.peers[0].closed)
			assert.Equal(t, 1, staying.peers.last().offers)
			assert.Equal(t, 1, leaving.peers.last().answers)
			assert.Equal(t, Connected, staying.seq.state)
			assert.Equal(t, Negotiating, leaving.seq.state)
		})
	}
}
