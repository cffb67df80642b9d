package crypto

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Identity bundles the encryption and signing key pairs of one participant.
type Identity struct {
	Box     *KeyPair
	Signing *SigningKeyPair
}

// identityFile is the on-disk form of an Identity.
type identityFile struct {
	BoxSecret   string `toml:"box_secret"`
	SigningSeed string `toml:"signing_seed"`
}

// GenerateIdentity creates fresh box and signing key pairs.
func GenerateIdentity() (*Identity, error) {
	boxKeys, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	signKeys, err := GenerateSigningKeyPair()
	if err != nil {
		return nil, err
	}
	return &Identity{Box: boxKeys, Signing: signKeys}, nil
}

// SaveIdentity writes id to path with mode 0600.
func SaveIdentity(path string, id *Identity) error {
	var buf bytes.Buffer
	err := toml.NewEncoder(&buf).Encode(identityFile{
		BoxSecret:   FormatKey(id.Box.Private),
		SigningSeed: FormatKey(id.Signing.Private),
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}

	NewLogger("SaveIdentity").
		WithField("path", path).
		WithFields(SecureFieldHash(id.Box.Public[:], "box_public")).
		Info("Saved identity")
	return nil
}

// LoadIdentity reads an identity written by SaveIdentity.
func LoadIdentity(path string) (*Identity, error) {
	var f identityFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}

	boxSecret, err := ParseKey(f.BoxSecret)
	if err != nil {
		return nil, fmt.Errorf("box_secret: %w", err)
	}
	seed, err := ParseKey(f.SigningSeed)
	if err != nil {
		return nil, fmt.Errorf("signing_seed: %w", err)
	}

	boxKeys, err := FromSecretKey(boxSecret)
	if err != nil {
		return nil, err
	}
	signKeys, err := SigningKeyPairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return &Identity{Box: boxKeys, Signing: signKeys}, nil
}

// LoadOrCreateIdentity loads path, generating and saving a new identity when
// the file does not exist.
func LoadOrCreateIdentity(path string) (*Identity, error) {
	id, err := LoadIdentity(path)
	if err == nil {
		return id, nil
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		return nil, err
	}

	id, err = GenerateIdentity()
	if err != nil {
		return nil, err
	}
	if err := SaveIdentity(path, id); err != nil {
		return nil, err
	}
	return id, nil
}
