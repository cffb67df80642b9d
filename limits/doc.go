// Package limits centralizes the size bounds applied to untrusted input.
//
// Every value that arrives from the network is checked here before any
// allocation proportional to it is made: transport frame lengths, carrier
// dimensions and participant names. Errors wrap ErrMessageEmpty,
// ErrMessageTooLarge or ErrCarrierTooLarge so callers can use errors.Is.
package limits
