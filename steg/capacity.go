package steg

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// CapacityPolicy decides how many bit slots an encode may consume.
type CapacityPolicy uint8

const (
	// SinglePlane limits frames to one bit per sample (bit-plane 0 only).
	SinglePlane CapacityPolicy = iota
	// AllPlanes lets frames spill into higher bit-planes, up to eight bits
	// per sample. Spilled bits are visible in the carrier.
	AllPlanes
)

const (
	textPrefixBits        = 16
	binaryPrefixBits      = 64
	imageDimensionBits    = 16
	imageChannelBits      = 8
	sampleBits            = 8
	legacyImageChannels   = 3
	maxSixteenBitValue    = 1<<16 - 1
	maxEightBitValue      = 1<<8 - 1
	legacyImagePrefixBits = 2 * imageDimensionBits
	imagePrefixBits       = legacyImagePrefixBits + imageChannelBits
)

// String returns the policy name used in configuration files.
func (p CapacityPolicy) String() string {
	switch p {
	case SinglePlane:
		return "single-plane"
	case AllPlanes:
		return "all-planes"
	default:
		return fmt.Sprintf("CapacityPolicy(%d)", uint8(p))
	}
}

// ParseCapacityPolicy parses the names returned by CapacityPolicy.String.
func ParseCapacityPolicy(s string) (CapacityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single-plane", "single":
		return SinglePlane, nil
	case "all-planes", "all":
		return AllPlanes, nil
	default:
		return SinglePlane, fmt.Errorf("steg: unknown capacity policy %q", s)
	}
}

// TextFrameBits returns the bits needed for a text frame of n characters.
func TextFrameBits(n int) int {
	return textPrefixBits + sampleBits*n
}

// BinaryFrameBits returns the bits needed for a binary frame of n bytes.
func BinaryFrameBits(n int) int {
	return binaryPrefixBits + sampleBits*n
}

// ImageFrameBits returns the bits needed for an image frame.
func ImageFrameBits(width, height, channels int, legacy bool) int {
	prefix := imagePrefixBits
	if legacy {
		prefix = legacyImagePrefixBits
	}
	return prefix + sampleBits*width*height*channels
}

// Capacity returns the number of bit slots encodes may use under the codec's
// policy, counted from the origin.
func (c *Codec) Capacity() int {
	slots := c.buf.Samples()
	if c.opts.Policy == AllPlanes {
		return slots * planeCount
	}
	return slots
}

// TotalCapacity returns the number of bit slots across all eight planes.
func (c *Codec) TotalCapacity() int {
	return c.buf.Samples() * planeCount
}

// Remaining returns the slots still usable by an encode from the current
// cursor position.
func (c *Codec) Remaining() int {
	if r := c.Capacity() - c.Position(); r > 0 {
		return r
	}
	return 0
}

// readable returns the slots still addressable by the cursor.
func (c *Codec) readable() int {
	return c.TotalCapacity() - c.Position()
}

// ensureCapacity fails with ErrCapacityExceeded when required bits do not fit
// in the remaining capacity.
func (c *Codec) ensureCapacity(frame string, required int) error {
	remaining := c.Remaining()
	if required <= remaining {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function":  "ensureCapacity",
		"frame":     frame,
		"required":  required,
		"remaining": remaining,
		"policy":    c.opts.Policy.String(),
	}).Warn("Frame does not fit in carrier")

	return fmt.Errorf("%w: %s frame needs %d bits, %d available (%s)",
		ErrCapacityExceeded, frame, required, remaining, c.opts.Policy)
}

// ensureReadable fails with ErrSlotExhausted when a declared frame body is
// longer than the bits left in the carrier.
func (c *Codec) ensureReadable(frame string, count, unitBits uint64) error {
	available := uint64(c.readable())
	if count > available/unitBits {
		return fmt.Errorf("%w: %s frame declares %d units of %d bits, %d bits left",
			ErrSlotExhausted, frame, count, unitBits, available)
	}
	return nil
}
