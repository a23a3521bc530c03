package call

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConstraints describes what to ask the capture devices for.
type MediaConstraints struct {
	Video bool
	Audio bool

	EchoCancellation bool
	NoiseSuppression bool

	// Preferred frame size. Devices pick the closest mode they support.
	IdealWidth  int
	IdealHeight int
}

// DefaultConstraints asks for camera and microphone at roughly 800x800.
func DefaultConstraints() MediaConstraints {
	return MediaConstraints{
		Video:            true,
		Audio:            true,
		EchoCancellation: true,
		NoiseSuppression: true,
		IdealWidth:       800,
		IdealHeight:      800,
	}
}

// LocalTrack is a captured camera or microphone track. A disabled track keeps
// its slot in the session but sends black frames or silence.
type LocalTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

// MediaSource captures local media.
type MediaSource interface {
	Acquire(ctx context.Context, constraints MediaConstraints) (*LocalStream, error)
}

// LocalStream groups the tracks captured for one join.
type LocalStream struct {
	tracks []LocalTrack
}

func NewLocalStream(tracks ...LocalTrack) *LocalStream {
	return &LocalStream{tracks: tracks}
}

// Tracks returns every track of the stream.
func (s *LocalStream) Tracks() []LocalTrack {
	return s.tracks
}

// TracksOf returns the tracks of one kind.
func (s *LocalStream) TracksOf(kind webrtc.RTPCodecType) []LocalTrack {
	var out []LocalTrack
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// Has reports whether the stream carries a track of kind.
func (s *LocalStream) Has(kind webrtc.RTPCodecType) bool {
	return len(s.TracksOf(kind)) > 0
}

// Stop ends every track.
func (s *LocalStream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// ReceiveOnly captures nothing. The peer connection then only receives the
// other member's media.
type ReceiveOnly struct{}

func (ReceiveOnly) Acquire(ctx context.Context, _ MediaConstraints) (*LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewLocalStream(), nil
}
