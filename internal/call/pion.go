package call

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/webmeet/internal/config"
	"github.com/BioHazard786/webmeet/internal/logging"
)

// pliInterval is how often a keyframe is requested for remote video.
const pliInterval = 3 * time.Second

// CodecRegistrar registers the codecs a media source encodes with.
type CodecRegistrar interface {
	RegisterCodecs(m *webrtc.MediaEngine) error
}

// PionFactory creates pion peer connections from the client configuration.
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
	log    *slog.Logger
}

// NewPionFactory builds the WebRTC API once. When codecs is nil pion's
// default codecs are registered.
func NewPionFactory(cfg *config.Config, codecs CodecRegistrar, log *slog.Logger) (*PionFactory, error) {
	if log == nil {
		log = slog.Default()
	}

	mediaEngine := &webrtc.MediaEngine{}
	if codecs != nil {
		if err := codecs.RegisterCodecs(mediaEngine); err != nil {
			return nil, NewError("register codecs", err)
		}
	} else if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, NewError("register codecs", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, NewError("register interceptors", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: logging.NewPionFactory(log)}
	// A relayed path can stall for a few seconds during failover; do not
	// give up on it right away.
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)
	return &PionFactory{api: api, config: ICEConfiguration(cfg), log: log}, nil
}

// ICEConfiguration returns the ICE servers and transport policy for cfg.
func ICEConfiguration(cfg *config.Config) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && cfg.ForceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

func (f *PionFactory) NewPeerConnection() (PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	return &pionPeer{pc: pc, log: f.log}, nil
}

// trackLocal is implemented by local tracks backed by a pion track.
type trackLocal interface {
	TrackLocal() webrtc.TrackLocal
}

type pionPeer struct {
	pc  *webrtc.PeerConnection
	log *slog.Logger
}

func (p *pionPeer) AddTrack(track LocalTrack) error {
	tl, ok := track.(trackLocal)
	if !ok {
		return errors.New("track is not backed by a capture device")
	}

	sender, err := p.pc.AddTrack(tl.TrackLocal())
	if err != nil {
		return err
	}

	// Interceptors only see RTCP that is read.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (p *pionPeer) AddReceiveOnly(kind webrtc.RTPCodecType) error {
	_, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	return err
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

func (p *pionPeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // gathering complete
		}
		fn(c.ToJSON())
	})
}

func (p *pionPeer) OnTrack(fn func(RemoteTrack)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		rt := &remoteTrack{track: track}
		go rt.drain()
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go p.requestKeyframes(track)
		}
		fn(rt)
	})
}

func (p *pionPeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}

// requestKeyframes sends periodic picture loss indications so the sender
// refreshes the picture after packet loss. It stops when the connection
// closes.
func (p *pionPeer) requestKeyframes(track *webrtc.TrackRemote) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for range ticker.C {
		err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
		if err != nil {
			return
		}
		if p.pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
			return
		}
	}
}

// remoteTrack reads a remote track to completion and counts what arrived.
type remoteTrack struct {
	track *webrtc.TrackRemote
	bytes atomic.Uint64
}

func (t *remoteTrack) ID() string                { return t.track.ID() }
func (t *remoteTrack) Kind() webrtc.RTPCodecType { return t.track.Kind() }
func (t *remoteTrack) Codec() string             { return t.track.Codec().MimeType }
func (t *remoteTrack) BytesReceived() uint64     { return t.bytes.Load() }

func (t *remoteTrack) drain() {
	for {
		pkt, _, err := t.track.ReadRTP()
		if err != nil {
			return
		}
		t.bytes.Add(uint64(len(pkt.Payload)))
	}
}
