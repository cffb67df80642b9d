package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/stegrelay/crypto"
)

func newPair(t *testing.T) (*IKHandshake, *IKHandshake, *crypto.KeyPair, *crypto.KeyPair) {
	t.Helper()
	client, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	server, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	initiator, err := NewIKHandshake(client.Private, &server.Public, Initiator)
	require.NoError(t, err)
	responder, err := NewIKHandshake(server.Private, nil, Responder)
	require.NoError(t, err)
	return initiator, responder, client, server
}

func TestIKHandshakeCompletes(t *testing.T) {
	initiator, responder, client, _ := newPair(t)

	msg1, err := initiator.WriteMessage([]byte("hello"))
	require.NoError(t, err)
	assert.False(t, initiator.IsComplete())

	payload, err := responder.ReadMessage(msg1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)

	msg2, err := responder.WriteMessage(nil)
	require.NoError(t, err)
	assert.True(t, responder.IsComplete())

	_, err = initiator.ReadMessage(msg2)
	require.NoError(t, err)
	assert.True(t, initiator.IsComplete())

	remote, err := responder.RemoteStaticKey()
	require.NoError(t, err)
	assert.Equal(t, client.Public, remote)

	iSend, iRecv, err := initiator.CipherStates()
	require.NoError(t, err)
	rSend, rRecv, err := responder.CipherStates()
	require.NoError(t, err)

	ct, err := iSend.Encrypt(nil, nil, []byte("up"))
	require.NoError(t, err)
	pt, err := rRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("up"), pt)

	ct, err = rSend.Encrypt(nil, nil, []byte("down"))
	require.NoError(t, err)
	pt, err = iRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("down"), pt)
}

func TestIKHandshakeWrongResponderKey(t *testing.T) {
	client, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	server, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	initiator, err := NewIKHandshake(client.Private, &other.Public, Initiator)
	require.NoError(t, err)
	responder, err := NewIKHandshake(server.Private, nil, Responder)
	require.NoError(t, err)

	msg1, err := initiator.WriteMessage(nil)
	require.NoError(t, err)
	_, err = responder.ReadMessage(msg1)
	assert.Error(t, err)
}

func TestIKHandshakeOrdering(t *testing.T) {
	initiator, responder, _, _ := newPair(t)

	_, err := responder.WriteMessage(nil)
	assert.ErrorIs(t, err, ErrWrongTurn)

	_, err = initiator.ReadMessage([]byte("early"))
	assert.ErrorIs(t, err, ErrWrongTurn)

	_, _, err = initiator.CipherStates()
	assert.ErrorIs(t, err, ErrHandshakeNotComplete)
}

func TestNewIKHandshakeValidation(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	_, err = NewIKHandshake(kp.Private, nil, Initiator)
	assert.Error(t, err)

	_, err = NewIKHandshake([crypto.KeySize]byte{}, nil, Responder)
	assert.Error(t, err)
}
