package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Server environment variables.
const (
	envListenAddr        = "LISTEN_ADDR"
	envAllowedOrigins    = "ALLOWED_ORIGINS"
	envMaxMessageBytes   = "MAX_MESSAGE_BYTES"
	envMessagesPerSecond = "MESSAGES_PER_SECOND"
	envMessageBurst      = "MESSAGE_BURST"
	envSendQueue         = "SEND_QUEUE"
	envLogLevel          = "LOG_LEVEL"
)

// Default server configuration values.
const (
	DefaultListenAddr        = ":8080"
	DefaultMaxMessageBytes   = 64 * 1024
	DefaultMessagesPerSecond = 20
	DefaultMessageBurst      = 40
	DefaultSendQueue         = 256
	DefaultServerLogLevel    = "info"
)

// ServerConfig holds the signaling server's configuration.
type ServerConfig struct {
	ListenAddr string

	// AllowedOrigins lists the browser origins allowed to open a websocket.
	// Empty allows every origin.
	AllowedOrigins []string

	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
	SendQueue         int

	LogLevel string
}

// ServerOptions carries flag overrides. Zero values mean "not set".
type ServerOptions struct {
	ListenAddr     string
	AllowedOrigins string
	LogLevel       string
}

// LoadServer resolves the server configuration: flags, then environment,
// then defaults.
func LoadServer(opts ServerOptions) (*ServerConfig, error) {
	cfg := &ServerConfig{
		ListenAddr:     firstNonEmpty(opts.ListenAddr, os.Getenv(envListenAddr), DefaultListenAddr),
		AllowedOrigins: splitList(firstNonEmpty(opts.AllowedOrigins, os.Getenv(envAllowedOrigins))),
		LogLevel:       firstNonEmpty(opts.LogLevel, os.Getenv(envLogLevel), DefaultServerLogLevel),
	}

	var err error
	if cfg.MaxMessageBytes, err = envInt64(envMaxMessageBytes, DefaultMaxMessageBytes); err != nil {
		return nil, err
	}
	if cfg.MessagesPerSecond, err = envFloat(envMessagesPerSecond, DefaultMessagesPerSecond); err != nil {
		return nil, err
	}
	burst, err := envInt64(envMessageBurst, DefaultMessageBurst)
	if err != nil {
		return nil, err
	}
	cfg.MessageBurst = int(burst)
	queue, err := envInt64(envSendQueue, DefaultSendQueue)
	if err != nil {
		return nil, err
	}
	cfg.SendQueue = int(queue)

	if cfg.MaxMessageBytes <= 0 || cfg.MessagesPerSecond <= 0 || cfg.MessageBurst <= 0 || cfg.SendQueue <= 0 {
		return nil, fmt.Errorf("message limits must be positive")
	}

	return cfg, nil
}

// OriginAllowed reports whether a websocket from origin may connect.
func (c *ServerConfig) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
