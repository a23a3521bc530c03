//go:build linux

package call

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pion/webrtc/v4"
)

// CaptureSupported reports whether this build can open cameras and
// microphones.
const CaptureSupported = true

// DeviceSource captures from V4L2 cameras and the default microphone, encoding
// VP8 and Opus. The microphone driver has no echo cancellation or noise
// suppression, so those constraints are not applied.
type DeviceSource struct {
	selector *mediadevices.CodecSelector
	log      *slog.Logger
}

func NewDeviceSource(log *slog.Logger) (*DeviceSource, error) {
	if log == nil {
		log = slog.Default()
	}

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, NewError("vp8 encoder", err)
	}
	vpxParams.BitRate = 1_000_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, NewError("opus encoder", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)
	return &DeviceSource{selector: selector, log: log}, nil
}

// RegisterCodecs registers exactly the codecs the capture pipeline encodes.
func (d *DeviceSource) RegisterCodecs(m *webrtc.MediaEngine) error {
	d.selector.Populate(m)
	return nil
}

// Acquire opens the devices. A missing or busy device of one kind does not
// fail the other: video and audio together are tried first, then each alone.
func (d *DeviceSource) Acquire(ctx context.Context, c MediaConstraints) (*LocalStream, error) {
	devices := mediadevices.EnumerateDevices()
	if len(devices) == 0 {
		return nil, ErrMediaUnavailable
	}
	for _, dev := range devices {
		d.log.Debug("media device", "kind", dev.Kind, "label", dev.Label)
	}

	type attempt struct {
		video, audio bool
		label        string
	}
	attempts := []attempt{
		{c.Video, c.Audio, "video+audio"},
		{c.Video, false, "video-only"},
		{false, c.Audio, "audio-only"},
	}

	for _, a := range attempts {
		if !a.video && !a.audio {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stream, err := mediadevices.GetUserMedia(d.constraints(c, a.video, a.audio))
		if err != nil {
			d.log.Warn("capture failed", "attempt", a.label, "error", err)
			continue
		}

		var tracks []LocalTrack
		for _, t := range stream.GetTracks() {
			tracks = append(tracks, newDeviceTrack(t))
		}
		d.log.Info("local media captured", "attempt", a.label, "tracks", len(tracks))
		return NewLocalStream(tracks...), nil
	}
	return nil, ErrMediaUnavailable
}

func (d *DeviceSource) constraints(c MediaConstraints, withVideo, withAudio bool) mediadevices.MediaStreamConstraints {
	constraints := mediadevices.MediaStreamConstraints{Codec: d.selector}
	if withVideo {
		constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
			// Raw formats only; some cameras expose MJPEG nodes that poison
			// the VP8 encoder.
			mc.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			if c.IdealWidth > 0 {
				mc.Width = prop.Int(c.IdealWidth)
			}
			if c.IdealHeight > 0 {
				mc.Height = prop.Int(c.IdealHeight)
			}
		}
	}
	if withAudio {
		constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
	}
	return constraints
}

// deviceTrack wraps a capture track. Disabling it swaps frames for black or
// silence in the capture pipeline, so the encoder keeps running.
type deviceTrack struct {
	track   mediadevices.Track
	enabled atomic.Bool
}

func newDeviceTrack(track mediadevices.Track) *deviceTrack {
	t := &deviceTrack{track: track}
	t.enabled.Store(true)

	switch tr := track.(type) {
	case *mediadevices.VideoTrack:
		tr.Transform(t.blackout)
	case *mediadevices.AudioTrack:
		tr.Transform(t.silence)
	}
	return t
}

func (t *deviceTrack) ID() string                    { return t.track.ID() }
func (t *deviceTrack) Kind() webrtc.RTPCodecType     { return t.track.Kind() }
func (t *deviceTrack) Enabled() bool                 { return t.enabled.Load() }
func (t *deviceTrack) SetEnabled(enabled bool)       { t.enabled.Store(enabled) }
func (t *deviceTrack) TrackLocal() webrtc.TrackLocal { return t.track }

func (t *deviceTrack) Stop() {
	t.track.Close()
}

func (t *deviceTrack) blackout(r video.Reader) video.Reader {
	return video.ReaderFunc(func() (image.Image, func(), error) {
		img, release, err := r.Read()
		if err != nil || t.enabled.Load() {
			return img, release, err
		}
		return blackFrame(img.Bounds()), release, nil
	})
}

func (t *deviceTrack) silence(r audio.Reader) audio.Reader {
	return audio.ReaderFunc(func() (wave.Audio, func(), error) {
		chunk, release, err := r.Read()
		if err != nil || t.enabled.Load() {
			return chunk, release, err
		}
		return wave.NewInt16Interleaved(chunk.ChunkInfo()), release, nil
	})
}

// blackFrame returns a black 4:2:0 frame of the given size.
func blackFrame(bounds image.Rectangle) image.Image {
	img := image.NewYCbCr(bounds, image.YCbCrSubsampleRatio420)
	for i := range img.Cb {
		img.Cb[i] = 128
	}
	for i := range img.Cr {
		img.Cr[i] = 128
	}
	return img
}
