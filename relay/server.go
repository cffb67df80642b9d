package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/envelope"
	"github.com/opd-ai/stegrelay/transport"
)

var (
	// ErrServerStarted indicates Start was called twice.
	ErrServerStarted = errors.New("relay already started")
	// ErrNotStarted indicates use of a server that is not listening.
	ErrNotStarted = errors.New("relay not started")
)

// Reasons sent in KindError replies.
const (
	ReasonNameTaken       = "name taken"
	ReasonFull            = "relay full"
	ReasonNotRegistered   = "not registered"
	ReasonAlreadyJoined   = "already registered"
	ReasonKeyMismatch     = "box key does not match link key"
	ReasonSenderMismatch  = "sender does not match registration"
	ReasonBadSignature    = "bad signature"
	ReasonUnknownReceiver = "unknown receiver"
	ReasonUnexpected      = "unexpected envelope"
)

// Server is the relay. It is safe for concurrent use.
type Server struct {
	opts     Options
	registry *registry

	mu       sync.Mutex
	listener *transport.Listener
	stop     context.CancelFunc
	done     chan struct{}
}

// New creates a relay server. opts may be nil for defaults.
func New(opts *Options) (*Server, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Server{
		opts:     *opts,
		registry: newRegistry(opts.MaxUsers),
	}, nil
}

// Start begins accepting clients. The server shuts down when ctx is
// cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrServerStarted
	}

	listener, err := transport.Listen(s.opts.ListenAddr, s.serveConn, &transport.ListenOptions{
		StaticKey:        s.opts.StaticKey,
		HandshakeTimeout: s.opts.HandshakeTimeout,
	})
	if err != nil {
		return fmt.Errorf("relay listen: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.listener = listener
	s.stop = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		<-runCtx.Done()
		if err := listener.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Start",
				"error":    err.Error(),
			}).Debug("Listener close returned error")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"addr":     listener.Addr().String(),
		"noise":    s.opts.StaticKey != nil,
	}).Info("Relay started")

	return nil
}

// Close stops the server and disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return ErrNotStarted
	}
	stop()
	<-done

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("Relay stopped")
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Users returns the registered participants sorted by name.
func (s *Server) Users() []envelope.User {
	return s.registry.users()
}

// serveConn reads envelopes from one client until the link fails or the
// client says BYE.
func (s *Server) serveConn(ctx context.Context, conn *transport.Conn) {
	if s.opts.WriteTimeout > 0 {
		conn.SetWriteTimeout(s.opts.WriteTimeout)
	}

	l := &link{server: s, conn: conn}
	defer l.leave()

	logrus.WithFields(logrus.Fields{
		"function":    "serveConn",
		"remote_addr": conn.RemoteAddr().String(),
	}).Debug("Client connected")

	for ctx.Err() == nil {
		packet, err := conn.ReadPacket()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "serveConn",
				"remote_addr": conn.RemoteAddr().String(),
				"error":       err.Error(),
			}).Debug("Client link closed")
			return
		}

		switch packet.PacketType {
		case transport.PacketPing:
			continue
		case transport.PacketEnvelope:
		default:
			logrus.WithFields(logrus.Fields{
				"function":    "serveConn",
				"packet_type": packet.PacketType.String(),
			}).Warn("Dropping unexpected packet")
			continue
		}

		env, err := envelope.Unmarshal(packet.Data)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "serveConn",
				"remote_addr": conn.RemoteAddr().String(),
				"error":       err.Error(),
			}).Warn("Dropping malformed envelope")
			l.reject(err.Error())
			continue
		}

		if !l.handle(env) {
			return
		}
	}
}
