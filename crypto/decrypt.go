package crypto

import (
	"errors"

	"golang.org/x/crypto/nacl/box"
)

// ErrDecryptionFailed indicates a ciphertext that does not authenticate.
var ErrDecryptionFailed = errors.New("decryption failed")

// Decrypt decrypts a message using authenticated encryption.
func Decrypt(ciphertext []byte, nonce Nonce, senderPK, recipientSK [KeySize]byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, errors.New("empty ciphertext")
	}

	decrypted, ok := box.Open(nil, ciphertext, (*[NonceSize]byte)(&nonce), &senderPK, &recipientSK)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return decrypted, nil
}

// Open reverses Seal.
func Open(sealed []byte, senderPK, recipientSK [KeySize]byte) ([]byte, error) {
	if len(sealed) < NonceSize+Overhead {
		return nil, errors.New("sealed message too short")
	}

	var nonce Nonce
	copy(nonce[:], sealed[:NonceSize])

	plaintext, err := Decrypt(sealed[NonceSize:], nonce, senderPK, recipientSK)
	if err != nil {
		NewLogger("Open").WithFields(SecureFieldHash(senderPK[:], "sender")).Warn("Sealed payload failed to authenticate")
		return nil, err
	}
	return plaintext, nil
}
