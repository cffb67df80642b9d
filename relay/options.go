package relay

import (
	"errors"
	"time"
)

const (
	// DefaultListenAddr is the relay's default TCP address.
	DefaultListenAddr = "127.0.0.1:7700"
	// DefaultMaxUsers bounds concurrent registrations.
	DefaultMaxUsers = 256
)

// Options configures a Server.
type Options struct {
	// ListenAddr is the TCP address to bind.
	ListenAddr string
	// StaticKey enables Noise IK on every link when set.
	StaticKey *[32]byte
	// MaxUsers bounds the registry size.
	MaxUsers int
	// WriteTimeout bounds each forwarded frame.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the Noise handshake.
	HandshakeTimeout time.Duration
}

// NewOptions returns default relay options.
func NewOptions() *Options {
	return &Options{
		ListenAddr:       DefaultListenAddr,
		MaxUsers:         DefaultMaxUsers,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Validate checks the options for obvious mistakes.
func (o *Options) Validate() error {
	if o.ListenAddr == "" {
		return errors.New("relay: listen address is required")
	}
	if o.MaxUsers <= 0 {
		return errors.New("relay: max users must be positive")
	}
	if o.WriteTimeout < 0 || o.HandshakeTimeout < 0 {
		return errors.New("relay: timeouts must not be negative")
	}
	return nil
}
