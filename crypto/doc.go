// Package crypto implements the key material, signatures and authenticated
// encryption used around steganographic payloads.
//
// The steg codec itself provides no confidentiality. Callers that need it
// seal the payload with this package before hiding it and open it after
// revealing it.
//
// # Core Types
//
//   - [KeyPair]: NaCl crypto_box key pair (Curve25519) for encryption
//   - [SigningKeyPair]: Ed25519 seed and public key for signatures
//   - [Nonce]: 24-byte random nonce for box operations
//   - [Signature]: Ed25519 signature
//
// # Encryption and Decryption
//
//	sealed, _ := crypto.Seal(plaintext, peerPublicKey, myKeys.Private)
//	plaintext, _ := crypto.Open(sealed, peerPublicKey, myKeys.Private)
//
// Seal prepends a fresh random nonce to the ciphertext; Encrypt and Decrypt
// take the nonce explicitly.
//
// # Digital Signatures
//
//	signature, _ := crypto.Sign(message, signer.Private)
//	valid, _ := crypto.Verify(message, signature, signer.Public)
//
// # Key Files
//
// Keys are persisted as lowercase hex, one key per file, with mode 0600.
// See [SaveIdentity] and [LoadIdentity].
//
// # Logging
//
// [LoggerHelper] attaches function and package fields to logrus entries and
// [SecureFieldHash] logs only a short preview of sensitive values.
package crypto
