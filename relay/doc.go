// Package relay implements the stegrelay server.
//
// Clients register a name together with their box and signing keys, then
// exchange chat envelopes whose text is hidden in PNG carriers. The relay
// never looks inside a carrier. It verifies that each chat envelope is
// signed by the registered sender, then forwards public messages to every
// other participant and direct messages to the named receiver.
//
// Request handling:
//
//	REG   register a name; duplicate names are rejected; ULST is broadcast
//	FTCH  reply with ULST
//	AMSG  verify and forward to every other participant
//	DMSG  verify and forward to the receiver, or reply ERR
//	BYE   unregister; ULST is broadcast
//
// When the relay has a Noise static key, every link is secured and the box
// key a client registers must equal the static key it authenticated with.
package relay
