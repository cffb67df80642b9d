package noise

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"

	"github.com/opd-ai/stegrelay/crypto"
)

var (
	// ErrHandshakeNotComplete indicates handshake is still in progress
	ErrHandshakeNotComplete = errors.New("handshake not complete")
	// ErrHandshakeComplete indicates handshake is already complete
	ErrHandshakeComplete = errors.New("handshake already complete")
	// ErrWrongTurn indicates a read or write out of pattern order
	ErrWrongTurn = errors.New("handshake message out of order")
)

// HandshakeRole defines whether we're initiating or responding to handshake
type HandshakeRole uint8

const (
	// Initiator starts the handshake and knows the responder's static key.
	Initiator HandshakeRole = iota
	// Responder answers the handshake and learns the initiator's static key.
	Responder
)

func (r HandshakeRole) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// IKHandshake runs the two-message Noise IK pattern:
//
//	-> e, es, s, ss
//	<- e, ee, se
type IKHandshake struct {
	role     HandshakeRole
	state    *noise.HandshakeState
	send     *noise.CipherState
	recv     *noise.CipherState
	wrote    bool
	read     bool
	complete bool
}

// NewIKHandshake creates a handshake using our static private key. The
// initiator must pass the responder's static public key; the responder
// passes nil.
func NewIKHandshake(staticPrivKey [crypto.KeySize]byte, peerPubKey *[crypto.KeySize]byte, role HandshakeRole) (*IKHandshake, error) {
	if role == Initiator && peerPubKey == nil {
		return nil, errors.New("initiator requires peer public key")
	}

	keyPair, err := crypto.FromSecretKey(staticPrivKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keypair: %w", err)
	}
	defer crypto.WipeKeyPair(keyPair)

	staticKey := noise.DHKey{
		Private: append([]byte(nil), keyPair.Private[:]...),
		Public:  append([]byte(nil), keyPair.Public[:]...),
	}

	config := noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeIK,
		Initiator:     role == Initiator,
		StaticKeypair: staticKey,
	}
	if peerPubKey != nil {
		config.PeerStatic = append([]byte(nil), peerPubKey[:]...)
	}

	state, err := noise.NewHandshakeState(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	return &IKHandshake{role: role, state: state}, nil
}

// WriteMessage produces our next handshake message. The initiator writes
// first; the responder writes after reading the initiator's message and is
// then complete.
func (ik *IKHandshake) WriteMessage(payload []byte) ([]byte, error) {
	if ik.complete {
		return nil, ErrHandshakeComplete
	}
	if ik.wrote || (ik.role == Responder && !ik.read) {
		return nil, ErrWrongTurn
	}

	message, cs1, cs2, err := ik.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("%s write failed: %w", ik.role, err)
	}
	ik.wrote = true

	if ik.role == Responder {
		ik.finish(cs1, cs2)
	}
	return message, nil
}

// ReadMessage consumes the peer's handshake message and returns its payload.
// The initiator is complete after reading the responder's reply.
func (ik *IKHandshake) ReadMessage(message []byte) ([]byte, error) {
	if ik.complete {
		return nil, ErrHandshakeComplete
	}
	if ik.read || (ik.role == Initiator && !ik.wrote) {
		return nil, ErrWrongTurn
	}

	payload, cs1, cs2, err := ik.state.ReadMessage(nil, message)
	if err != nil {
		return nil, fmt.Errorf("%s read failed: %w", ik.role, err)
	}
	ik.read = true

	if ik.role == Initiator {
		ik.finish(cs1, cs2)
	}
	return payload, nil
}

// finish stores the split cipher states; cs1 protects initiator-to-responder
// traffic and cs2 the reverse direction.
func (ik *IKHandshake) finish(cs1, cs2 *noise.CipherState) {
	if ik.role == Initiator {
		ik.send, ik.recv = cs1, cs2
	} else {
		ik.send, ik.recv = cs2, cs1
	}
	ik.complete = true
}

// IsComplete returns true if handshake is finished and cipher states are available.
func (ik *IKHandshake) IsComplete() bool {
	return ik.complete
}

// CipherStates returns the send and receive cipher states.
func (ik *IKHandshake) CipherStates() (send, recv *noise.CipherState, err error) {
	if !ik.complete {
		return nil, nil, ErrHandshakeNotComplete
	}
	return ik.send, ik.recv, nil
}

// RemoteStaticKey returns the peer's static public key.
func (ik *IKHandshake) RemoteStaticKey() ([crypto.KeySize]byte, error) {
	var key [crypto.KeySize]byte
	remote := ik.state.PeerStatic()
	if len(remote) != crypto.KeySize {
		return key, ErrHandshakeNotComplete
	}
	copy(key[:], remote)
	return key, nil
}
