package call

import (
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the part of a WebRTC peer connection the sequencer drives.
// Callbacks may fire on any goroutine.
type PeerConnection interface {
	AddTrack(track LocalTrack) error

	// AddReceiveOnly adds a recvonly transceiver so the session description
	// still has a media section of kind when no local track of that kind
	// exists.
	AddReceiveOnly(kind webrtc.RTPCodecType) error

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	OnICECandidate(fn func(candidate webrtc.ICECandidateInit))
	OnTrack(fn func(track RemoteTrack))
	OnConnectionStateChange(fn func(state webrtc.PeerConnectionState))

	Close() error
}

// PeerFactory creates peer connections, one per negotiation.
type PeerFactory interface {
	NewPeerConnection() (PeerConnection, error)
}

// RemoteTrack is media arriving from the other member.
type RemoteTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Codec() string
	BytesReceived() uint64
}
