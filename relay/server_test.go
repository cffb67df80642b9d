package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/stegrelay/carrier"
	"github.com/opd-ai/stegrelay/crypto"
	"github.com/opd-ai/stegrelay/envelope"
	"github.com/opd-ai/stegrelay/steg"
	"github.com/opd-ai/stegrelay/transport"
)

const recvTimeout = 5 * time.Second

type testPeer struct {
	t      *testing.T
	conn   *transport.Conn
	id     *crypto.Identity
	user   envelope.User
	sealer *envelope.Sealer
}

func startServer(t *testing.T, opts *Options) *Server {
	t.Helper()
	if opts == nil {
		opts = NewOptions()
	}
	opts.ListenAddr = "127.0.0.1:0"

	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newCover(t *testing.T) *steg.PixelBuffer {
	t.Helper()
	pb, err := steg.NewPixelBuffer(32, 32, carrier.RGB)
	require.NoError(t, err)
	for i := range pb.Pix {
		pb.Pix[i] = uint8(i * 7)
	}
	return pb
}

func connect(t *testing.T, s *Server, name string, relayKey *[32]byte) *testPeer {
	t.Helper()
	id, err := crypto.GenerateIdentity()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()

	conn, err := transport.Dial(ctx, s.Addr().String(), &transport.DialOptions{
		StaticKey: id.Box.Private,
		PeerKey:   relayKey,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sealer, err := envelope.NewSealer(id, newCover(t), envelope.NewOptions())
	require.NoError(t, err)

	return &testPeer{
		t:      t,
		conn:   conn,
		id:     id,
		user:   envelope.User{Name: name, BoxKey: id.Box.Public, SignKey: id.Signing.Public},
		sealer: sealer,
	}
}

func (p *testPeer) send(env *envelope.Envelope) {
	p.t.Helper()
	data, err := envelope.Marshal(env)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WritePacket(&transport.Packet{PacketType: transport.PacketEnvelope, Data: data}))
}

func (p *testPeer) recv() *envelope.Envelope {
	p.t.Helper()
	type result struct {
		packet *transport.Packet
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		packet, err := p.conn.ReadPacket()
		ch <- result{packet, err}
	}()

	select {
	case r := <-ch:
		require.NoError(p.t, r.err)
		env, err := envelope.Unmarshal(r.packet.Data)
		require.NoError(p.t, err)
		return env
	case <-time.After(recvTimeout):
		p.t.Fatalf("%s: no envelope received", p.user.Name)
		return nil
	}
}

func (p *testPeer) register() {
	self := p.user
	p.send(&envelope.Envelope{Kind: envelope.KindRegister, Self: &self})
}

func (p *testPeer) expectError(reason string) {
	p.t.Helper()
	env := p.recv()
	require.Equal(p.t, envelope.KindError, env.Kind)
	assert.Equal(p.t, reason, env.Reason)
}

// join registers peers in order, draining the user list broadcasts.
func join(t *testing.T, peers ...*testPeer) {
	t.Helper()
	for i, p := range peers {
		p.register()
		for _, q := range peers[:i+1] {
			env := q.recv()
			require.Equal(t, envelope.KindUserList, env.Kind)
			require.Len(t, env.Users, i+1)
		}
	}
}

func userNames(users []envelope.User) []string {
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	return names
}

func TestRegisterBroadcastsUserList(t *testing.T) {
	s := startServer(t, nil)
	alice := connect(t, s, "alice", nil)
	bob := connect(t, s, "bob", nil)

	alice.register()
	env := alice.recv()
	require.Equal(t, envelope.KindUserList, env.Kind)
	assert.Equal(t, []string{"alice"}, userNames(env.Users))

	bob.register()
	for _, p := range []*testPeer{alice, bob} {
		env := p.recv()
		require.Equal(t, envelope.KindUserList, env.Kind)
		assert.Equal(t, []string{"alice", "bob"}, userNames(env.Users))
		assert.Equal(t, bob.user, env.Users[1])
	}

	assert.Equal(t, []string{"alice", "bob"}, userNames(s.Users()))
}

func TestRegisterDuplicateName(t *testing.T) {
	s := startServer(t, nil)
	first := connect(t, s, "alice", nil)
	second := connect(t, s, "alice", nil)

	join(t, first)
	second.register()
	second.expectError(ReasonNameTaken)

	first.register()
	first.expectError(ReasonAlreadyJoined)
}

func TestRegisterFull(t *testing.T) {
	opts := NewOptions()
	opts.MaxUsers = 1
	s := startServer(t, opts)
	alice := connect(t, s, "alice", nil)
	bob := connect(t, s, "bob", nil)

	join(t, alice)
	bob.register()
	bob.expectError(ReasonFull)
}

func TestFetchUserList(t *testing.T) {
	s := startServer(t, nil)
	alice := connect(t, s, "alice", nil)
	watcher := connect(t, s, "watcher", nil)
	join(t, alice)

	watcher.send(&envelope.Envelope{Kind: envelope.KindFetch})
	env := watcher.recv()
	require.Equal(t, envelope.KindUserList, env.Kind)
	assert.Equal(t, []string{"alice"}, userNames(env.Users))
}

func TestPublicMessageForwarded(t *testing.T) {
	s := startServer(t, nil)
	alice := connect(t, s, "alice", nil)
	bob := connect(t, s, "bob", nil)
	carol := connect(t, s, "carol", nil)
	join(t, alice, bob, carol)

	env, err := alice.sealer.SealPublic("alice", "hello all")
	require.NoError(t, err)
	alice.send(env)

	for _, p := range []*testPeer{bob, carol} {
		got := p.recv()
		require.Equal(t, envelope.KindPublic, got.Kind)
		msg, err := envelope.NewOpener(p.id).Open(got, alice.user)
		require.NoError(t, err)
		assert.Equal(t, "hello all", msg.Text)
	}

	// The sender gets nothing back; a fetch is answered next.
	alice.send(&envelope.Envelope{Kind: envelope.KindFetch})
	assert.Equal(t, envelope.KindUserList, alice.recv().Kind)
}

func TestDirectMessageForwarded(t *testing.T) {
	s := startServer(t, nil)
	alice := connect(t, s, "alice", nil)
	bob := connect(t, s, "bob", nil)
	carol := connect(t, s, "carol", nil)
	join(t, alice, bob, carol)

	env, err := alice.sealer.SealDirect("alice", bob.user, "psst")
	require.NoError(t, err)
	alice.send(env)

	got := bob.recv()
	require.Equal(t, envelope.KindDirect, got.Kind)
	msg, err := envelope.NewOpener(bob.id).Open(got, alice.user)
	require.NoError(t, err)
	assert.Equal(t, "psst", msg.Text)
	assert.True(t, msg.Direct)

	carol.send(&envelope.Envelope{Kind: envelope.KindFetch})
	assert.Equal(t, envelope.KindUserList, carol.recv().Kind)
}

func TestDirectMessageUnknownReceiver(t *testing.T) {
	s := startServer(t, nil)
	alice := connect(t, s, "alice", nil)
	join(t, alice)

	ghost := envelope.User{Name: "ghost", BoxKey: alice.user.BoxKey}
	env, err := alice.sealer.SealDirect("alice", ghost, "anyone?")
	require.NoError(t, err)
	alice.send(env)
	alice.expectError(ReasonUnknownReceiver)
}

func TestChatRejections(t *testing.T) {
	s := startServer(t, nil)
	alice := connect(t, s, "alice", nil)
	bob := connect(t, s, "bob", nil)
	stranger := connect(t, s, "stranger", nil)
	join(t, alice, bob)

	t.Run("not registered", func(t *testing.T) {
		env, err := stranger.sealer.SealPublic("stranger", "hi")
		require.NoError(t, err)
		stranger.send(env)
		stranger.expectError(ReasonNotRegistered)
	})

	t.Run("sender mismatch", func(t *testing.T) {
		env, err := alice.sealer.SealPublic("bob", "it's bob, honest")
		require.NoError(t, err)
		alice.send(env)
		alice.expectError(ReasonSenderMismatch)
	})

	t.Run("bad signature", func(t *testing.T) {
		env, err := alice.sealer.SealPublic("alice", "tampered")
		require.NoError(t, err)
		env.Carrier[len(env.Carrier)-1] ^= 0xFF
		alice.send(env)
		alice.expectError(ReasonBadSignature)
	})

	t.Run("unexpected kind", func(t *testing.T) {
		alice.send(&envelope.Envelope{Kind: envelope.KindUserList})
		alice.expectError(ReasonUnexpected)
	})
}

func TestByeUnregisters(t *testing.T) {
	s := startServer(t, nil)
	alice := connect(t, s, "alice", nil)
	bob := connect(t, s, "bob", nil)
	join(t, alice, bob)

	bob.send(&envelope.Envelope{Kind: envelope.KindBye})
	env := alice.recv()
	require.Equal(t, envelope.KindUserList, env.Kind)
	assert.Equal(t, []string{"alice"}, userNames(env.Users))
	assert.Equal(t, []string{"alice"}, userNames(s.Users()))
}

func TestDisconnectUnregisters(t *testing.T) {
	s := startServer(t, nil)
	alice := connect(t, s, "alice", nil)
	bob := connect(t, s, "bob", nil)
	join(t, alice, bob)

	bob.conn.Close()
	env := alice.recv()
	require.Equal(t, envelope.KindUserList, env.Kind)
	assert.Equal(t, []string{"alice"}, userNames(env.Users))
}

func TestNoiseBindsBoxKey(t *testing.T) {
	relayKeys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	opts := NewOptions()
	opts.StaticKey = &relayKeys.Private
	s := startServer(t, opts)

	alice := connect(t, s, "alice", &relayKeys.Public)
	require.True(t, alice.conn.Secure())
	join(t, alice)

	mallory := connect(t, s, "mallory", &relayKeys.Public)
	mallory.user.BoxKey = alice.user.BoxKey
	mallory.register()
	mallory.expectError(ReasonKeyMismatch)
}

func TestServerLifecycle(t *testing.T) {
	s, err := New(&Options{ListenAddr: "127.0.0.1:0", MaxUsers: 4})
	require.NoError(t, err)
	assert.Nil(t, s.Addr())
	assert.ErrorIs(t, s.Close(), ErrNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrServerStarted)
	require.NotNil(t, s.Addr())

	cancel()
	require.NoError(t, s.Close())
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, NewOptions().Validate())
	assert.Error(t, (&Options{MaxUsers: 1}).Validate())
	assert.Error(t, (&Options{ListenAddr: ":0"}).Validate())
	assert.Error(t, (&Options{ListenAddr: ":0", MaxUsers: 1, WriteTimeout: -1}).Validate())
}
