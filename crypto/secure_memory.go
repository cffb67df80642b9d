package crypto

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// SecureWipe overwrites data with zeros. It returns an error if data is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	zeros := make([]byte, len(data))
	subtle.ConstantTimeCompare(data, zeros)
	copy(data, zeros)

	runtime.KeepAlive(data)
	runtime.KeepAlive(zeros)

	return nil
}

// ZeroBytes erases data, ignoring the nil error from SecureWipe.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// WipeKeyPair erases the private half of kp.
func WipeKeyPair(kp *KeyPair) error {
	if kp == nil {
		return errors.New("cannot wipe nil KeyPair")
	}
	return SecureWipe(kp.Private[:])
}

// WipeIdentity erases both private keys held by id.
func WipeIdentity(id *Identity) error {
	if id == nil {
		return errors.New("cannot wipe nil Identity")
	}
	if err := WipeKeyPair(id.Box); err != nil {
		return err
	}
	if id.Signing == nil {
		return errors.New("cannot wipe nil SigningKeyPair")
	}
	return SecureWipe(id.Signing.Private[:])
}
