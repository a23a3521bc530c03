package call

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/webmeet/internal/chat"
	"github.com/BioHazard786/webmeet/internal/protocol"
)

// runPending runs every queued task without blocking.
func (s *Sequencer) runPending() {
	for {
		select {
		case task := <-s.tasks:
			task()
		default:
			return
		}
	}
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []*protocol.Message
	err  error
}

func (f *fakeSignaler) Send(msg *protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSignaler) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Type)
	}
	return out
}

func (f *fakeSignaler) last(t string) *protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Type == t {
			return f.sent[i]
		}
	}
	return nil
}

func (f *fakeSignaler) count(t string) int {
	n := 0
	for _, typ := range f.types() {
		if typ == t {
			n++
		}
	}
	return n
}

type fakePeer struct {
	tracks      []LocalTrack
	recvOnly    []webrtc.RTPCodecType
	offers      int
	answers     int
	local       *webrtc.SessionDescription
	remote      *webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	closed      bool
	failOffer   error
	onCandidate func(webrtc.ICECandidateInit)
	onTrack     func(RemoteTrack)
	onState     func(webrtc.PeerConnectionState)
}

func (p *fakePeer) AddTrack(t LocalTrack) error {
	p.tracks = append(p.tracks, t)
	return nil
}

func (p *fakePeer) AddReceiveOnly(kind webrtc.RTPCodecType) error {
	p.recvOnly = append(p.recvOnly, kind)
	return nil
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	if p.failOffer != nil {
		return webrtc.SessionDescription{}, p.failOffer
	}
	p.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	if p.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	p.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (p *fakePeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.local = &desc
	return nil
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.remote = &desc
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit))             { p.onCandidate = fn }
func (p *fakePeer) OnTrack(fn func(RemoteTrack))                                { p.onTrack = fn }
func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { p.onState = fn }

func (p *fakePeer) Close() error {
	p.closed = true
	return nil
}

type fakeFactory struct {
	peers     []*fakePeer
	failOffer error
}

func (f *fakeFactory) NewPeerConnection() (PeerConnection, error) {
	p := &fakePeer{failOffer: f.failOffer}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeFactory) last() *fakePeer {
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

type fakeTrack struct {
	id      string
	kind    webrtc.RTPCodecType
	enabled bool
	stopped bool
}

func (t *fakeTrack) ID() string                { return t.id }
func (t *fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *fakeTrack) Enabled() bool             { return t.enabled }
func (t *fakeTrack) SetEnabled(enabled bool)   { t.enabled = enabled }
func (t *fakeTrack) Stop()                     { t.stopped = true }

type fakeMedia struct {
	err     error
	calls   int
	streams []*LocalStream
}

func (m *fakeMedia) Acquire(ctx context.Context, _ MediaConstraints) (*LocalStream, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	stream := NewLocalStream(
		&fakeTrack{id: "mic", kind: webrtc.RTPCodecTypeAudio, enabled: true},
		&fakeTrack{id: "cam", kind: webrtc.RTPCodecTypeVideo, enabled: true},
	)
	m.streams = append(m.streams, stream)
	return stream, nil
}

func (m *fakeMedia) last() *LocalStream {
	return m.streams[len(m.streams)-1]
}

type fakeRemoteTrack struct {
	kind webrtc.RTPCodecType
}

func (t fakeRemoteTrack) ID() string                { return "remote-" + t.kind.String() }
func (t fakeRemoteTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t fakeRemoteTrack) Codec() string             { return "video/VP8" }
func (t fakeRemoteTrack) BytesReceived() uint64     { return 0 }

type recordingObserver struct {
	statuses []Status
	locals   int
	remotes  []RemoteTrack
	cleared  int
	chats    []chat.Message
	errs     []error
}

func (o *recordingObserver) StatusChanged(s Status)    { o.statuses = append(o.statuses, s) }
func (o *recordingObserver) LocalStream(*LocalStream)  { o.locals++ }
func (o *recordingObserver) RemoteTrack(t RemoteTrack) { o.remotes = append(o.remotes, t) }
func (o *recordingObserver) RemoteCleared()            { o.cleared++ }
func (o *recordingObserver) Chat(m chat.Message)       { o.chats = append(o.chats, m) }
func (o *recordingObserver) Error(err error)           { o.errs = append(o.errs, err) }

// harness is one sequencer with fakes around it.
type harness struct {
	seq      *Sequencer
	signaler *fakeSignaler
	peers    *fakeFactory
	media    *fakeMedia
	observer *recordingObserver
}

func newHarness(roomID string) *harness {
	h := &harness{
		signaler: &fakeSignaler{},
		peers:    &fakeFactory{},
		media:    &fakeMedia{},
		observer: &recordingObserver{},
	}
	h.seq = NewSequencer(Config{
		RoomID:      roomID,
		Signaler:    h.signaler,
		Peers:       h.peers,
		Media:       h.media,
		Constraints: DefaultConstraints(),
		Observer:    h.observer,
		Log:         discardLogger(),
	})
	return h
}

// join runs Join synchronously and answers it with the room outcome.
func (h *harness) join(outcome string) {
	h.seq.Join()
	h.seq.runPending()
	h.seq.Handle(&protocol.Message{Type: outcome})
}

func (h *harness) handle(t string, payload any) {
	msg, err := protocol.NewMessage(t, "", payload)
	if err != nil {
		panic(err)
	}
	h.seq.Handle(msg)
}
