package call

// State is where the sequencer is in the call setup.
type State int

const (
	Idle State = iota
	AwaitingRoomOutcome
	AwaitingPeerReady
	AcquiringMedia
	AwaitingOffer
	Negotiating
	Connected
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingRoomOutcome:
		return "joining"
	case AwaitingPeerReady:
		return "waiting for peer"
	case AcquiringMedia:
		return "starting media"
	case AwaitingOffer:
		return "waiting for offer"
	case Negotiating:
		return "negotiating"
	case Connected:
		return "connected"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Role decides which side of the negotiation this client plays. The host
// (first in the room) offers; the guest answers.
type Role int

const (
	RoleUnknown Role = iota
	RoleHost
	RoleGuest
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the sequencer for display.
type Status struct {
	State  State
	Role   Role
	Mic    bool
	Camera bool
}
