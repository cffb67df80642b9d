package steg

import (
	"github.com/sirupsen/logrus"
)

// Options configures a Codec.
type Options struct {
	// Policy selects how much of the carrier an encode may use.
	Policy CapacityPolicy
	// LegacyImageFrame drops the channel field from image frames and fixes
	// the channel count at three.
	LegacyImageFrame bool
}

// NewOptions returns the default codec options: single-plane capacity and
// image frames with an explicit channel count.
func NewOptions() *Options {
	return &Options{
		Policy:           SinglePlane,
		LegacyImageFrame: false,
	}
}

// Option mutates codec options.
type Option func(*Options)

// WithCapacityPolicy selects the capacity policy used by encode validation.
func WithCapacityPolicy(policy CapacityPolicy) Option {
	return func(o *Options) {
		o.Policy = policy
	}
}

// WithLegacyImageFrame selects the image frame layout without a channel field.
func WithLegacyImageFrame() Option {
	return func(o *Options) {
		o.LegacyImageFrame = true
	}
}

// WithOptions copies every field of opts.
func WithOptions(opts Options) Option {
	return func(o *Options) {
		*o = opts
	}
}

// Codec reads and writes frames through the low-order bits of a PixelBuffer.
type Codec struct {
	buf  *PixelBuffer
	cur  cursor
	opts Options
}

// NewCodec creates a codec positioned at the first slot of buf.
func NewCodec(buf *PixelBuffer, opts ...Option) (*Codec, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	options := NewOptions()
	for _, opt := range opts {
		opt(options)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewCodec",
		"height":   buf.Height,
		"width":    buf.Width,
		"channels": buf.Channels,
		"policy":   options.Policy.String(),
		"legacy":   options.LegacyImageFrame,
	}).Debug("Created steganographic codec")

	return &Codec{
		buf:  buf,
		opts: *options,
	}, nil
}

// Buffer returns the carrier the codec operates on.
func (c *Codec) Buffer() *PixelBuffer {
	return c.buf
}

// Position returns the number of bit slots consumed so far.
func (c *Codec) Position() int {
	return c.cur.position(c.buf.Height, c.buf.Width, c.buf.Channels)
}

// Reset moves the cursor back to the first slot of bit-plane 0.
func (c *Codec) Reset() {
	c.cur = cursor{}
}
