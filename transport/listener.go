package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ConnHandler serves one accepted connection. The connection is closed when
// the handler returns.
type ConnHandler func(ctx context.Context, conn *Conn)

// ListenOptions configures a Listener.
type ListenOptions struct {
	// StaticKey enables the Noise responder handshake on every connection.
	StaticKey *[32]byte
	// HandshakeTimeout bounds the handshake. Zero uses DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

// Listener accepts TCP connections and runs a handler goroutine for each.
type Listener struct {
	listener net.Listener
	opts     ListenOptions
	handler  ConnHandler

	mu    sync.Mutex
	conns map[*Conn]struct{}
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// Listen starts accepting connections on addr.
func Listen(addr string, handler ConnHandler, opts *ListenOptions) (*Listener, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		listener: listener,
		handler:  handler,
		conns:    make(map[*Conn]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	if opts != nil {
		l.opts = *opts
	}
	if l.opts.HandshakeTimeout <= 0 {
		l.opts.HandshakeTimeout = DefaultHandshakeTimeout
	}

	logrus.WithFields(logrus.Fields{
		"function": "Listen",
		"addr":     listener.Addr().String(),
		"noise":    l.opts.StaticKey != nil,
	}).Info("Listening for connections")

	l.wg.Add(1)
	go l.acceptConnections()

	return l, nil
}

// Addr returns the bound listen address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close stops accepting, closes every open connection and waits for the
// handlers to return.
func (l *Listener) Close() error {
	l.cancel()
	err := l.listener.Close()

	l.mu.Lock()
	for conn := range l.conns {
		conn.Close()
	}
	l.mu.Unlock()

	l.wg.Wait()
	return err
}

// acceptConnections handles incoming connections.
func (l *Listener) acceptConnections() {
	defer l.wg.Done()

	for {
		raw, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"function": "acceptConnections",
				"error":    err.Error(),
			}).Error("Accept failed")
			return
		}

		conn := NewConn(raw)
		if !l.track(conn) {
			conn.Close()
			return
		}

		l.wg.Add(1)
		go l.handleConnection(conn)
	}
}

// handleConnection secures the connection if configured and runs the handler.
func (l *Listener) handleConnection(conn *Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)
	defer conn.Close()

	if l.opts.StaticKey != nil {
		ctx, cancel := context.WithTimeout(l.ctx, l.opts.HandshakeTimeout)
		err := conn.ServerHandshake(ctx, *l.opts.StaticKey)
		cancel()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "handleConnection",
				"remote_addr": conn.RemoteAddr().String(),
				"error":       err.Error(),
			}).Warn("Noise handshake failed")
			return
		}
	}

	l.handler(l.ctx, conn)
}

func (l *Listener) track(conn *Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *Listener) untrack(conn *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, conn)
}

// DialOptions configures Dial.
type DialOptions struct {
	// StaticKey is our Noise static private key; required with PeerKey.
	StaticKey [32]byte
	// PeerKey enables the Noise initiator handshake against this public key.
	PeerKey *[32]byte
	// Timeout bounds the TCP connect. Zero means no extra bound beyond ctx.
	Timeout time.Duration
}

// Dial connects to a listener and, when PeerKey is set, secures the link.
func Dial(ctx context.Context, addr string, opts *DialOptions) (*Conn, error) {
	if opts == nil {
		opts = &DialOptions{}
	}

	dialer := net.Dialer{Timeout: opts.Timeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	conn := NewConn(raw)
	if opts.PeerKey != nil {
		if err := conn.ClientHandshake(ctx, opts.StaticKey, *opts.PeerKey); err != nil {
			conn.Close()
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"addr":     addr,
		"secure":   conn.Secure(),
	}).Debug("Connected")

	return conn, nil
}
