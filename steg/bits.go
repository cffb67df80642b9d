package steg

import (
	"fmt"
)

// checkWidth validates that value can be written in width bits.
func checkWidth(value uint64, width int) error {
	if width <= 0 || width > 64 {
		return fmt.Errorf("steg: bit width %d out of range 1..64", width)
	}
	if width < 64 && value>>uint(width) != 0 {
		return fmt.Errorf("%w: %d does not fit in %d bits", ErrValueTooLarge, value, width)
	}
	return nil
}

// ToBits returns value as width bits, most significant bit first.
func ToBits(value uint64, width int) ([]uint8, error) {
	if err := checkWidth(value, width); err != nil {
		return nil, err
	}

	bits := make([]uint8, width)
	for i := 0; i < width; i++ {
		bits[i] = uint8(value>>uint(width-1-i)) & 1
	}
	return bits, nil
}

// FromBits interprets bits as an MSB-first unsigned integer. Any non-zero
// element counts as a one.
func FromBits(bits []uint8) uint64 {
	var value uint64
	for _, b := range bits {
		value <<= 1
		if b != 0 {
			value |= 1
		}
	}
	return value
}

// WriteBit stores bit (any non-zero value is a one) in the slot under the
// cursor and advances it.
func (c *Codec) WriteBit(bit uint8) error {
	if c.cur.exhausted {
		return fmt.Errorf("%w: carrier %dx%dx%d is full", ErrSlotExhausted, c.buf.Height, c.buf.Width, c.buf.Channels)
	}

	set, clear := planeMasks(c.cur.plane)
	i := c.buf.offset(c.cur.row, c.cur.col, c.cur.channel)
	if bit != 0 {
		c.buf.Pix[i] |= set
	} else {
		c.buf.Pix[i] &= clear
	}

	c.cur.advance(c.buf.Height, c.buf.Width, c.buf.Channels)
	return nil
}

// ReadBit returns the bit in the slot under the cursor and advances it.
func (c *Codec) ReadBit() (uint8, error) {
	if c.cur.exhausted {
		return 0, fmt.Errorf("%w: carrier %dx%dx%d fully read", ErrSlotExhausted, c.buf.Height, c.buf.Width, c.buf.Channels)
	}

	set, _ := planeMasks(c.cur.plane)
	sample := c.buf.Pix[c.buf.offset(c.cur.row, c.cur.col, c.cur.channel)]

	c.cur.advance(c.buf.Height, c.buf.Width, c.buf.Channels)

	if sample&set != 0 {
		return 1, nil
	}
	return 0, nil
}

// WriteBits writes each element of bits in order.
func (c *Codec) WriteBits(bits []uint8) error {
	for _, b := range bits {
		if err := c.WriteBit(b); err != nil {
			return err
		}
	}
	return nil
}

// ReadBits reads n bits in order.
func (c *Codec) ReadBits(n int) ([]uint8, error) {
	bits := make([]uint8, n)
	for i := range bits {
		b, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		bits[i] = b
	}
	return bits, nil
}

// writeValue writes value as a width-bit MSB-first field.
func (c *Codec) writeValue(value uint64, width int) error {
	if err := checkWidth(value, width); err != nil {
		return err
	}
	for i := width - 1; i >= 0; i-- {
		if err := c.WriteBit(uint8(value>>uint(i)) & 1); err != nil {
			return err
		}
	}
	return nil
}

// readValue reads a width-bit MSB-first field.
func (c *Codec) readValue(width int) (uint64, error) {
	if width <= 0 || width > 64 {
		return 0, fmt.Errorf("steg: bit width %d out of range 1..64", width)
	}
	var value uint64
	for i := 0; i < width; i++ {
		b, err := c.ReadBit()
		if err != nil {
			return 0, err
		}
		value = value<<1 | uint64(b)
	}
	return value, nil
}
