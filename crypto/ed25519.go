package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

// SignatureSize is the size of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Signature represents an Ed25519 signature.
type Signature [SignatureSize]byte

// SigningKeyPair holds an Ed25519 private seed and the matching public key.
type SigningKeyPair struct {
	Public  [KeySize]byte
	Private [KeySize]byte
}

// GenerateSigningKeyPair creates a new random Ed25519 key pair.
func GenerateSigningKeyPair() (*SigningKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	kp := &SigningKeyPair{}
	copy(kp.Public[:], pub)
	copy(kp.Private[:], priv.Seed())
	return kp, nil
}

// SigningKeyPairFromSeed rebuilds a signing key pair from its seed.
func SigningKeyPairFromSeed(seed [KeySize]byte) (*SigningKeyPair, error) {
	if isZeroKey(seed) {
		return nil, errors.New("invalid signing seed: all zeros")
	}
	priv := ed25519.NewKeyFromSeed(seed[:])

	kp := &SigningKeyPair{Private: seed}
	copy(kp.Public[:], priv.Public().(ed25519.PublicKey))
	return kp, nil
}

// Sign creates an Ed25519 signature for a message using the private seed.
func Sign(message []byte, privateKey [KeySize]byte) (Signature, error) {
	if len(message) == 0 {
		return Signature{}, errors.New("empty message")
	}

	edPrivateKey := ed25519.NewKeyFromSeed(privateKey[:])
	defer ZeroBytes(edPrivateKey)

	var signature Signature
	copy(signature[:], ed25519.Sign(edPrivateKey, message))
	return signature, nil
}

// Verify checks if a signature is valid for a message and public key.
func Verify(message []byte, signature Signature, publicKey [KeySize]byte) (bool, error) {
	if len(message) == 0 {
		return false, errors.New("empty message")
	}

	return ed25519.Verify(publicKey[:], message, signature[:]), nil
}
