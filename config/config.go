package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/crypto"
	"github.com/opd-ai/stegrelay/envelope"
	"github.com/opd-ai/stegrelay/limits"
	"github.com/opd-ai/stegrelay/relay"
	"github.com/opd-ai/stegrelay/steg"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// Timeout defaults in milliseconds.
	DefaultWriteTimeout     = 5 * 1000
	DefaultHandshakeTimeout = 10 * 1000
	DefaultDialTimeout      = 10 * 1000
)

// Relay is the relay daemon configuration.
type Relay struct {
	// ListenAddr is the TCP address to bind.
	ListenAddr string

	// Noise enables Noise IK on every client link.
	Noise bool

	// IdentityFile holds the relay's keys. It is created when missing.
	IdentityFile string

	// MaxUsers bounds concurrent registrations.
	MaxUsers int

	// WriteTimeout bounds each frame write in milliseconds.
	WriteTimeout int

	// HandshakeTimeout bounds the Noise handshake in milliseconds.
	HandshakeTimeout int
}

func (r *Relay) validate() error {
	if r.ListenAddr == "" {
		r.ListenAddr = relay.DefaultListenAddr
	}
	if r.MaxUsers <= 0 {
		r.MaxUsers = relay.DefaultMaxUsers
	}
	if r.WriteTimeout <= 0 {
		r.WriteTimeout = DefaultWriteTimeout
	}
	if r.HandshakeTimeout <= 0 {
		r.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if r.Noise && r.IdentityFile == "" {
		return errors.New("config: Relay: Noise requires IdentityFile")
	}
	return nil
}

// Options converts the section to relay options. staticKey may be nil when
// Noise is off.
func (r *Relay) Options(staticKey *[crypto.KeySize]byte) *relay.Options {
	opts := relay.NewOptions()
	opts.ListenAddr = r.ListenAddr
	opts.MaxUsers = r.MaxUsers
	opts.WriteTimeout = time.Duration(r.WriteTimeout) * time.Millisecond
	opts.HandshakeTimeout = time.Duration(r.HandshakeTimeout) * time.Millisecond
	if r.Noise {
		opts.StaticKey = staticKey
	}
	return opts
}

// Client is the chat client configuration.
type Client struct {
	// RelayAddr is the relay's TCP address.
	RelayAddr string

	// RelayPublicKey is the relay's hex encoded static key. Setting it
	// enables Noise IK.
	RelayPublicKey string

	// Name is the participant name to register.
	Name string

	// IdentityFile holds the participant's keys. It is created when missing.
	IdentityFile string

	// Carrier is the cover image path.
	Carrier string

	// DialTimeout bounds the TCP connect in milliseconds.
	DialTimeout int
}

func (c *Client) validate() error {
	if c.RelayAddr == "" {
		return errors.New("config: Client: RelayAddr is not set")
	}
	if err := limits.ValidateName(c.Name); err != nil {
		return fmt.Errorf("config: Client: Name: %w", err)
	}
	if c.IdentityFile == "" {
		return errors.New("config: Client: IdentityFile is not set")
	}
	if c.Carrier == "" {
		return errors.New("config: Client: Carrier is not set")
	}
	if c.RelayPublicKey != "" {
		if _, err := crypto.ParseKey(c.RelayPublicKey); err != nil {
			return fmt.Errorf("config: Client: RelayPublicKey: %w", err)
		}
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	return nil
}

// RelayKey returns the parsed relay key, or nil when Noise is not used.
func (c *Client) RelayKey() (*[crypto.KeySize]byte, error) {
	if c.RelayPublicKey == "" {
		return nil, nil
	}
	key, err := crypto.ParseKey(c.RelayPublicKey)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// Steg is the codec configuration shared by the relay client and the CLI.
type Steg struct {
	// CapacityPolicy is "single-plane" or "all-planes".
	CapacityPolicy string

	// LegacyImageFrame omits the channel count from image frames.
	LegacyImageFrame bool

	// DisableCompression hides chat text without zstd.
	DisableCompression bool
}

func (s *Steg) validate() error {
	if s.CapacityPolicy == "" {
		s.CapacityPolicy = steg.SinglePlane.String()
	}
	if _, err := steg.ParseCapacityPolicy(s.CapacityPolicy); err != nil {
		return fmt.Errorf("config: Steg: %w", err)
	}
	return nil
}

// CodecOptions returns the codec options for this section.
func (s *Steg) CodecOptions() (*steg.Options, error) {
	policy, err := steg.ParseCapacityPolicy(s.CapacityPolicy)
	if err != nil {
		return nil, err
	}
	opts := steg.NewOptions()
	opts.Policy = policy
	opts.LegacyImageFrame = s.LegacyImageFrame
	return opts, nil
}

// EnvelopeOptions returns the chat envelope options for this section.
func (s *Steg) EnvelopeOptions() (*envelope.Options, error) {
	codec, err := s.CodecOptions()
	if err != nil {
		return nil, err
	}
	opts := envelope.NewOptions()
	opts.Compress = !s.DisableCompression
	opts.Steg = *codec
	return opts, nil
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stderr will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (l *Logging) validate() error {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if _, err := logrus.ParseLevel(strings.ToLower(l.Level)); err != nil {
		return fmt.Errorf("config: Logging: %w", err)
	}
	return nil
}

// Apply configures the standard logrus logger. The returned closer releases
// the log file, if one was opened.
func (l *Logging) Apply() (io.Closer, error) {
	level, err := logrus.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)

	switch {
	case l.Disable:
		logrus.SetOutput(io.Discard)
	case l.File != "":
		f, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logrus.SetOutput(f)
		return f, nil
	default:
		logrus.SetOutput(os.Stderr)
	}
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Config is the top level configuration.
type Config struct {
	Relay   *Relay
	Client  *Client
	Steg    *Steg
	Logging *Logging
}

// FixupAndValidate applies defaults and checks every present section.
// Relay and Client stay nil when absent.
func (c *Config) FixupAndValidate() error {
	if c.Steg == nil {
		c.Steg = new(Steg)
	}
	if err := c.Steg.validate(); err != nil {
		return err
	}
	if c.Logging == nil {
		c.Logging = new(Logging)
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if c.Relay != nil {
		if err := c.Relay.validate(); err != nil {
			return err
		}
	}
	if c.Client != nil {
		if err := c.Client.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load parses and validates the provided buffer b as a config file body.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
