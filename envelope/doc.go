// Package envelope defines the relay wire messages and the pipeline that
// hides chat text inside carrier images.
//
// An Envelope is the CBOR-encoded unit exchanged with the relay. Chat
// messages never travel as text: the Sealer compresses the text, optionally
// encrypts it to the receiver, hides it in a copy of a cover image with the
// steg codec, and ships the resulting PNG in Envelope.Carrier together with an
// Ed25519 signature. The Opener reverses those steps.
//
//	sealer, _ := envelope.NewSealer(identity, cover, envelope.NewOptions())
//	env, _ := sealer.SealDirect("alice", bob, "meet at noon")
//
//	opener := envelope.NewOpener(bobIdentity)
//	msg, _ := opener.Open(env, alice)
//
// Hidden payloads start with a one-byte flag field:
//
//	bit 0  payload is zstd compressed
//	bit 1  payload is NaCl box sealed (nonce prepended)
package envelope
