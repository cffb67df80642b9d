package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

// NonceSize is the size of a box nonce.
const NonceSize = 24

// Nonce is a 24-byte value used for encryption.
type Nonce [NonceSize]byte

// Overhead is the authenticator length box.Seal adds to every message.
const Overhead = box.Overhead

// MaxMessageSize bounds plaintexts accepted by Encrypt (16 MiB).
const MaxMessageSize = 16 * 1024 * 1024

// GenerateNonce creates a cryptographically secure random nonce.
func GenerateNonce() (Nonce, error) {
	var nonce Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return Nonce{}, err
	}
	return nonce, nil
}

// Encrypt encrypts a message for recipientPK with NaCl box.
func Encrypt(message []byte, nonce Nonce, recipientPK, senderSK [KeySize]byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, errors.New("empty message")
	}
	if len(message) > MaxMessageSize {
		return nil, errors.New("message too large")
	}

	return box.Seal(nil, message, (*[NonceSize]byte)(&nonce), &recipientPK, &senderSK), nil
}

// Seal encrypts message under a fresh nonce and returns nonce || ciphertext.
func Seal(message []byte, recipientPK, senderSK [KeySize]byte) ([]byte, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	ciphertext, err := Encrypt(message, nonce, recipientPK, senderSK)
	if err != nil {
		return nil, err
	}

	logger := NewLogger("Seal").WithFields(SecureFieldHash(recipientPK[:], "recipient"))
	logger.Debug("Sealed payload")

	out := make([]byte, 0, NonceSize+len(ciphertext))
	out = append(out, nonce[:]...)
	return append(out, ciphertext...), nil
}
