package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/crypto"
	"github.com/opd-ai/stegrelay/envelope"
	"github.com/opd-ai/stegrelay/limits"
	"github.com/opd-ai/stegrelay/relay"
	"github.com/opd-ai/stegrelay/steg"
	"github.com/opd-ai/stegrelay/transport"
)

var (
	// ErrRejected wraps a KindError reply from the relay.
	ErrRejected = errors.New("relay rejected request")
	// ErrUnknownUser indicates a direct message to a name not in the user list.
	ErrUnknownUser = errors.New("unknown user")
	// ErrClosed indicates use of a closed client.
	ErrClosed = errors.New("client closed")
)

// Options configures a Client.
type Options struct {
	// Addr is the relay's TCP address.
	Addr string
	// Name is the participant name to register.
	Name string
	// Identity holds our box and signing keys.
	Identity *crypto.Identity
	// RelayKey enables Noise IK against the relay's static public key.
	RelayKey *[32]byte
	// Cover is the image every outgoing message is hidden in.
	Cover *steg.PixelBuffer
	// Envelope configures compression and the codec.
	Envelope *envelope.Options
	// DialTimeout bounds the TCP connect.
	DialTimeout time.Duration
}

// MessageHandler receives revealed chat messages.
type MessageHandler func(msg *envelope.Message)

// UsersHandler receives each participant list the relay sends.
type UsersHandler func(users []envelope.User)

// listResult is delivered to goroutines waiting for a ULST or ERR reply.
type listResult struct {
	users []envelope.User
	err   error
}

// waiter is a pending Register or FetchUsers call. Only registrations can be
// answered by an ERR reply.
type waiter struct {
	ch       chan listResult
	register bool
}

// registerRejections are the reasons the relay sends in reply to REG.
var registerRejections = map[string]bool{
	relay.ReasonNameTaken:     true,
	relay.ReasonFull:          true,
	relay.ReasonAlreadyJoined: true,
	relay.ReasonKeyMismatch:   true,
}

// Client is a connected participant. It is safe for concurrent use.
type Client struct {
	name   string
	self   envelope.User
	conn   *transport.Conn
	sealer *envelope.Sealer
	opener *envelope.Opener

	mu        sync.Mutex
	users     map[string]envelope.User
	waiters   []waiter
	onMessage MessageHandler
	onUsers   UsersHandler

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the relay and starts receiving. Register must be called
// before sending chat messages.
func Dial(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil || opts.Identity == nil || opts.Identity.Box == nil || opts.Identity.Signing == nil {
		return nil, errors.New("client: identity is required")
	}
	if err := limits.ValidateName(opts.Name); err != nil {
		return nil, err
	}
	if opts.Cover == nil {
		return nil, errors.New("client: cover image is required")
	}

	sealer, err := envelope.NewSealer(opts.Identity, opts.Cover, opts.Envelope)
	if err != nil {
		return nil, err
	}

	conn, err := transport.Dial(ctx, opts.Addr, &transport.DialOptions{
		StaticKey: opts.Identity.Box.Private,
		PeerKey:   opts.RelayKey,
		Timeout:   opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{
		name: opts.Name,
		self: envelope.User{
			Name:    opts.Name,
			BoxKey:  opts.Identity.Box.Public,
			SignKey: opts.Identity.Signing.Public,
		},
		conn:   conn,
		sealer: sealer,
		opener: envelope.NewOpener(opts.Identity),
		users:  make(map[string]envelope.User),
		done:   make(chan struct{}),
	}

	go c.readLoop()

	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"addr":     opts.Addr,
		"name":     opts.Name,
		"secure":   conn.Secure(),
	}).Info("Connected to relay")

	return c, nil
}

// Name returns the participant name.
func (c *Client) Name() string {
	return c.name
}

// OnMessage sets the callback for revealed chat messages.
func (c *Client) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

// OnUsers sets the callback for participant list updates.
func (c *Client) OnUsers(handler UsersHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUsers = handler
}

// Register announces the participant and waits until the relay lists it.
func (c *Client) Register(ctx context.Context) error {
	self := c.self
	wait := c.addWaiter(true)
	if err := c.send(&envelope.Envelope{Kind: envelope.KindRegister, Self: &self}); err != nil {
		c.removeWaiter(wait)
		return err
	}

	for {
		users, err := c.await(ctx, wait)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.Name == c.name {
				return nil
			}
		}
		// Another participant's registration raced ours; keep waiting.
		wait = c.addWaiter(true)
		if c.listed() {
			c.removeWaiter(wait)
			return nil
		}
	}
}

// listed reports whether the cached participant list includes us.
func (c *Client) listed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.users[c.name]
	return ok
}

// FetchUsers asks the relay for the current participant list.
func (c *Client) FetchUsers(ctx context.Context) ([]envelope.User, error) {
	wait := c.addWaiter(false)
	if err := c.send(&envelope.Envelope{Kind: envelope.KindFetch}); err != nil {
		c.removeWaiter(wait)
		return nil, err
	}
	return c.await(ctx, wait)
}

// Users returns the last known participant list, excluding ourselves.
func (c *Client) Users() []envelope.User {
	c.mu.Lock()
	defer c.mu.Unlock()

	users := make([]envelope.User, 0, len(c.users))
	for name, u := range c.users {
		if name != c.name {
			users = append(users, u)
		}
	}
	return users
}

// SendPublic hides text in the cover and sends it to every participant.
func (c *Client) SendPublic(text string) error {
	env, err := c.sealer.SealPublic(c.name, text)
	if err != nil {
		return err
	}
	return c.send(env)
}

// SendDirect hides text, encrypted for one participant, and sends it.
func (c *Client) SendDirect(to, text string) error {
	c.mu.Lock()
	receiver, ok := c.users[to]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUser, to)
	}

	env, err := c.sealer.SealDirect(c.name, receiver, text)
	if err != nil {
		return err
	}
	return c.send(env)
}

// Close says BYE and disconnects.
func (c *Client) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() {
		if sendErr := c.send(&envelope.Envelope{Kind: envelope.KindBye}); sendErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Close",
				"error":    sendErr.Error(),
			}).Debug("Failed to send BYE")
		}
		err = c.conn.Close()
		<-c.done
	})
	return err
}

// Done is closed when the link to the relay is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) send(env *envelope.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := envelope.Marshal(env)
	if err != nil {
		return err
	}
	return c.conn.WritePacket(&transport.Packet{PacketType: transport.PacketEnvelope, Data: data})
}

func (c *Client) addWaiter(register bool) chan listResult {
	ch := make(chan listResult, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, waiter{ch: ch, register: register})
	c.mu.Unlock()
	return ch
}

func (c *Client) removeWaiter(ch chan listResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w.ch == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

func (c *Client) await(ctx context.Context, ch chan listResult) ([]envelope.User, error) {
	select {
	case r := <-ch:
		return r.users, r.err
	case <-ctx.Done():
		c.removeWaiter(ch)
		return nil, ctx.Err()
	case <-c.done:
		c.removeWaiter(ch)
		return nil, ErrClosed
	}
}

// resolve hands r to the pending waiters it answers: a user list answers
// every waiter, an error only registrations.
func (c *Client) resolve(r listResult) int {
	c.mu.Lock()
	var matched []chan listResult
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if r.err != nil && !w.register {
			pending = append(pending, w)
			continue
		}
		matched = append(matched, w.ch)
	}
	c.waiters = pending
	c.mu.Unlock()

	for _, ch := range matched {
		ch <- r
	}
	return len(matched)
}
