package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxTextLength is the largest character count a text frame prefix can hold.
	MaxTextLength = 1<<16 - 1

	// MaxCarrierSide is the largest carrier width or height accepted from the network.
	MaxCarrierSide = 4096

	// MaxCarrierPixels bounds decoded carriers so a hostile PNG cannot force a
	// huge allocation (16 megapixels).
	MaxCarrierPixels = MaxCarrierSide * MaxCarrierSide

	// MaxFramePayload is the largest transport frame accepted (16 MiB).
	MaxFramePayload = 16 * 1024 * 1024

	// MaxNameLength bounds user names in registrations.
	MaxNameLength = 64
)

var (
	// ErrMessageEmpty indicates an empty message was provided.
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates a message exceeds its maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrCarrierTooLarge indicates carrier dimensions beyond MaxCarrierSide.
	ErrCarrierTooLarge = errors.New("carrier too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateFrameSize validates a transport frame length before it is read.
func ValidateFrameSize(length uint32) error {
	if length == 0 {
		return ErrMessageEmpty
	}
	if length > MaxFramePayload {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", ErrMessageTooLarge, length, MaxFramePayload)
	}
	return nil
}

// ValidateCarrierDimensions validates carrier dimensions received from a peer.
func ValidateCarrierDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: carrier %dx%d", ErrMessageEmpty, width, height)
	}
	if width > MaxCarrierSide || height > MaxCarrierSide {
		return fmt.Errorf("%w: carrier %dx%d exceeds %d per side", ErrCarrierTooLarge, width, height, MaxCarrierSide)
	}
	return nil
}

// ValidateName validates a participant name.
func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrMessageEmpty
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name length %d exceeds limit %d", ErrMessageTooLarge, len(name), MaxNameLength)
	}
	return nil
}
