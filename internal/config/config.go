package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/BioHazard786/webmeet/internal/netutil"
	"github.com/BioHazard786/webmeet/internal/protocol"
)

// Default client configuration values.
const (
	DefaultDomain = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
	DefaultCodec  = protocol.SubprotocolJSON
)

// Config holds the meet client's configuration.
type Config struct {
	// Domain is the signaling server host (and port).
	Domain string

	// Insecure selects ws:// and http:// instead of wss:// and https://.
	Insecure bool

	// WebSocketURL is constructed from Domain.
	WebSocketURL string

	// Codec is the websocket subprotocol to request ("json" or "msgpack").
	Codec string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN relay candidates.
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Insecure   bool
	Codec      string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Domain:     firstNonEmpty(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain),
		Codec:      firstNonEmpty(opts.Codec, os.Getenv("CODEC"), DefaultCodec),
		STUNServer: firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer: firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:   firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:   firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		Insecure:   opts.Insecure,
		ForceRelay: opts.ForceRelay,
	}

	if !cfg.Insecure {
		insecure, err := envBool("INSECURE")
		if err != nil {
			return nil, err
		}
		cfg.Insecure = insecure
	}

	switch cfg.Codec {
	case protocol.SubprotocolJSON, protocol.SubprotocolMsgPack:
	default:
		return nil, fmt.Errorf("unknown codec %q (want %s or %s)", cfg.Codec, protocol.SubprotocolJSON, protocol.SubprotocolMsgPack)
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	// Direct paths rarely work from behind a VPN or CGNAT; prefer the relay
	// when one is available.
	if cfg.TURNServer != "" && !cfg.ForceRelay && netutil.ShouldForceRelay() {
		cfg.ForceRelay = true
	}

	u := url.URL{Scheme: "wss", Host: cfg.Domain, Path: "/ws"}
	if cfg.Insecure {
		u.Scheme = "ws"
	}
	cfg.WebSocketURL = u.String()

	return cfg, nil
}

// GetMeetingLink returns the web URL for a meeting id
func (c *Config) GetMeetingLink(meetingID string) string {
	u := url.URL{Scheme: "https", Host: c.Domain, Path: "/meet/" + meetingID}
	if c.Insecure {
		u.Scheme = "http"
	}
	return u.String()
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("turn:%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
