package envelope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/stegrelay/carrier"
	"github.com/opd-ai/stegrelay/crypto"
	"github.com/opd-ai/stegrelay/steg"
)

func newCover(t *testing.T, side int) *steg.PixelBuffer {
	t.Helper()
	pb, err := steg.NewPixelBuffer(side, side, carrier.RGB)
	require.NoError(t, err)
	for i := range pb.Pix {
		pb.Pix[i] = uint8(i * 13)
	}
	return pb
}

func newParticipant(t *testing.T, name string) (*crypto.Identity, User) {
	t.Helper()
	id, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	return id, User{Name: name, BoxKey: id.Box.Public, SignKey: id.Signing.Public}
}

func TestMarshalUnmarshalRegister(t *testing.T) {
	_, alice := newParticipant(t, "alice")
	env := &Envelope{Kind: KindRegister, Self: &alice}

	data, err := Marshal(env)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, KindRegister, got.Kind)
	require.NotNil(t, got.Self)
	assert.Equal(t, alice, *got.Self)
}

func TestMarshalUnmarshalUserList(t *testing.T) {
	_, alice := newParticipant(t, "alice")
	_, bob := newParticipant(t, "bob")
	env := &Envelope{Kind: KindUserList, Users: []User{alice, bob}}

	data, err := Marshal(env)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, []User{alice, bob}, got.Users)
}

func TestValidateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		env     *Envelope
		wantErr error
	}{
		{"unknown kind", &Envelope{Kind: 99}, ErrUnknownKind},
		{"register without self", &Envelope{Kind: KindRegister}, ErrMalformed},
		{"register empty name", &Envelope{Kind: KindRegister, Self: &User{}}, ErrMalformed},
		{"public without carrier", &Envelope{Kind: KindPublic, Sender: "a", Signature: make([]byte, crypto.SignatureSize)}, ErrMalformed},
		{"direct without receiver", &Envelope{Kind: KindDirect, Sender: "a", Carrier: []byte{1}, Signature: make([]byte, crypto.SignatureSize)}, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(tt.env)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := Unmarshal([]byte{0xff, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "AMSG", KindPublic.String())
	assert.Equal(t, "DMSG", KindDirect.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestSealOpenPublic(t *testing.T) {
	aliceID, alice := newParticipant(t, "alice")
	bobID, _ := newParticipant(t, "bob")
	cover := newCover(t, 64)
	original := cover.Clone()

	sealer, err := NewSealer(aliceID, cover, NewOptions())
	require.NoError(t, err)
	env, err := sealer.SealPublic("alice", "hello everyone")
	require.NoError(t, err)
	assert.True(t, original.Equal(cover), "cover must not be modified")

	// Survive the wire.
	data, err := Marshal(env)
	require.NoError(t, err)
	env, err = Unmarshal(data)
	require.NoError(t, err)

	msg, err := NewOpener(bobID).Open(env, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.From)
	assert.Equal(t, "hello everyone", msg.Text)
	assert.False(t, msg.Direct)
}

func TestSealOpenDirect(t *testing.T) {
	aliceID, alice := newParticipant(t, "alice")
	bobID, bob := newParticipant(t, "bob")
	eveID, _ := newParticipant(t, "eve")

	sealer, err := NewSealer(aliceID, newCover(t, 64), NewOptions())
	require.NoError(t, err)
	env, err := sealer.SealDirect("alice", bob, "only for bob ✓")
	require.NoError(t, err)
	assert.Equal(t, "bob", env.Receiver)

	msg, err := NewOpener(bobID).Open(env, alice)
	require.NoError(t, err)
	assert.Equal(t, "only for bob ✓", msg.Text)
	assert.True(t, msg.Direct)
	assert.Equal(t, "bob", msg.To)

	_, err = NewOpener(eveID).Open(env, alice)
	assert.ErrorIs(t, err, ErrNotForUs)
}

func TestOpenRejectsTampering(t *testing.T) {
	aliceID, alice := newParticipant(t, "alice")
	bobID, bob := newParticipant(t, "bob")

	sealer, err := NewSealer(aliceID, newCover(t, 32), NewOptions())
	require.NoError(t, err)
	env, err := sealer.SealPublic("alice", "signed")
	require.NoError(t, err)

	tampered := *env
	tampered.Carrier = append([]byte(nil), env.Carrier...)
	tampered.Carrier[len(tampered.Carrier)-1] ^= 0x01
	_, err = NewOpener(bobID).Open(&tampered, alice)
	assert.ErrorIs(t, err, ErrBadSignature)

	// Checked against the wrong participant.
	_, err = NewOpener(bobID).Open(env, bob)
	assert.ErrorIs(t, err, ErrBadSignature)

	impostor := *env
	impostor.Sender = "bob"
	_, err = NewOpener(bobID).Open(&impostor, bob)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestSealCompressesRepetitiveText(t *testing.T) {
	aliceID, _ := newParticipant(t, "alice")
	text := strings.Repeat("steg ", 200)

	sealer, err := NewSealer(aliceID, newCover(t, 64), NewOptions())
	require.NoError(t, err)
	env, err := sealer.SealPublic("alice", text)
	require.NoError(t, err)

	stego, err := carrier.DecodePNG(env.Carrier, carrier.RGB)
	require.NoError(t, err)
	codec, err := steg.NewCodec(stego)
	require.NoError(t, err)
	payload, err := codec.DecodeBinary()
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.Equal(t, flagCompressed, payload[0])
	assert.Less(t, len(payload), len(text))
}

func TestSealWithoutCompression(t *testing.T) {
	aliceID, alice := newParticipant(t, "alice")
	opts := NewOptions()
	opts.Compress = false

	sealer, err := NewSealer(aliceID, newCover(t, 32), opts)
	require.NoError(t, err)
	env, err := sealer.SealPublic("alice", "plain")
	require.NoError(t, err)

	msg, err := NewOpener(nil).Open(env, alice)
	require.NoError(t, err)
	assert.Equal(t, "plain", msg.Text)
}

func TestSealCapacityExceeded(t *testing.T) {
	aliceID, _ := newParticipant(t, "alice")
	opts := NewOptions()
	opts.Compress = false

	sealer, err := NewSealer(aliceID, newCover(t, 4), opts)
	require.NoError(t, err)
	_, err = sealer.SealPublic("alice", "far too long for a sixteen pixel cover")
	assert.ErrorIs(t, err, steg.ErrCapacityExceeded)
}
