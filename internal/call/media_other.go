//go:build !linux

package call

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// CaptureSupported reports whether this build can open cameras and
// microphones.
const CaptureSupported = false

// DeviceSource has no capture drivers on this platform; calls run receive-only.
type DeviceSource struct{}

func NewDeviceSource(*slog.Logger) (*DeviceSource, error) {
	return &DeviceSource{}, nil
}

func (*DeviceSource) RegisterCodecs(m *webrtc.MediaEngine) error {
	return m.RegisterDefaultCodecs()
}

func (*DeviceSource) Acquire(context.Context, MediaConstraints) (*LocalStream, error) {
	return nil, ErrMediaUnavailable
}
