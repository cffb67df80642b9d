package steg

import (
	"bytes"
	"fmt"
)

// PixelBuffer is a decoded raster image stored row-major with channels
// innermost: sample (row, col, ch) lives at Pix[(row*Width+col)*Channels+ch].
type PixelBuffer struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
}

// NewPixelBuffer allocates a zeroed buffer of the given dimensions.
func NewPixelBuffer(height, width, channels int) (*PixelBuffer, error) {
	if height <= 0 || width <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%dx%d", ErrInvalidBuffer, height, width, channels)
	}
	return &PixelBuffer{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]uint8, height*width*channels),
	}, nil
}

// Validate checks that the dimensions are positive and match len(Pix).
func (pb *PixelBuffer) Validate() error {
	if pb == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidBuffer)
	}
	if pb.Height <= 0 || pb.Width <= 0 || pb.Channels <= 0 {
		return fmt.Errorf("%w: dimensions %dx%dx%d", ErrInvalidBuffer, pb.Height, pb.Width, pb.Channels)
	}
	if want := pb.Height * pb.Width * pb.Channels; len(pb.Pix) != want {
		return fmt.Errorf("%w: %d samples, want %d", ErrInvalidBuffer, len(pb.Pix), want)
	}
	return nil
}

// Samples returns Height*Width*Channels.
func (pb *PixelBuffer) Samples() int {
	return pb.Height * pb.Width * pb.Channels
}

func (pb *PixelBuffer) offset(row, col, ch int) int {
	return (row*pb.Width+col)*pb.Channels + ch
}

// At returns the sample at (row, col, ch).
func (pb *PixelBuffer) At(row, col, ch int) uint8 {
	return pb.Pix[pb.offset(row, col, ch)]
}

// Set stores v at (row, col, ch).
func (pb *PixelBuffer) Set(row, col, ch int, v uint8) {
	pb.Pix[pb.offset(row, col, ch)] = v
}

// Clone returns a deep copy of the buffer.
func (pb *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]uint8, len(pb.Pix))
	copy(pix, pb.Pix)
	return &PixelBuffer{
		Height:   pb.Height,
		Width:    pb.Width,
		Channels: pb.Channels,
		Pix:      pix,
	}
}

// Equal reports whether both buffers have the same dimensions and samples.
func (pb *PixelBuffer) Equal(other *PixelBuffer) bool {
	if pb == nil || other == nil {
		return pb == other
	}
	return pb.Height == other.Height &&
		pb.Width == other.Width &&
		pb.Channels == other.Channels &&
		bytes.Equal(pb.Pix, other.Pix)
}
