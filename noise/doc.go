// Package noise secures client-to-relay links with the Noise IK pattern.
//
// The client is the initiator and must know the relay's static Curve25519
// public key in advance, typically from configuration. The relay responds
// and learns the client's static key from the first message. The suite is
// Noise_IK_25519_ChaChaPoly_SHA256 via the flynn/noise library.
//
// Message flow:
//
//	Initiator                       Responder
//	---------                       ---------
//	WriteMessage  --- e,es,s,ss --> ReadMessage
//	ReadMessage   <-- e,ee,se ----  WriteMessage
//
// After both sides are complete, CipherStates returns the send and receive
// states used by the transport package to protect every frame.
package noise
