package steg

import "errors"

var (
	// ErrValueTooLarge indicates an integer does not fit in its fixed-width
	// prefix, or a text character does not fit in one byte.
	ErrValueTooLarge = errors.New("value too large for field")

	// ErrCapacityExceeded indicates a frame needs more bits than the carrier
	// can hold under the codec's capacity policy. The carrier is not modified.
	ErrCapacityExceeded = errors.New("carrier capacity exceeded")

	// ErrSlotExhausted indicates the cursor has moved past the last slot of
	// the last bit-plane.
	ErrSlotExhausted = errors.New("no available slot remaining")

	// ErrChannelMismatch indicates an image frame whose channel count cannot
	// be represented by the selected frame layout.
	ErrChannelMismatch = errors.New("image channel count not supported by frame layout")

	// ErrInvalidBuffer indicates a nil, empty or inconsistent pixel buffer.
	ErrInvalidBuffer = errors.New("invalid pixel buffer")
)
