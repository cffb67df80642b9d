package steg

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EncodeText hides text in the carrier as a 16-bit character count followed
// by one byte per character. Every character must be a code point in 0..255.
// It returns the mutated carrier.
func (c *Codec) EncodeText(text string) (*PixelBuffer, error) {
	runes := []rune(text)
	if len(runes) > maxSixteenBitValue {
		return nil, fmt.Errorf("%w: text length %d exceeds %d characters", ErrValueTooLarge, len(runes), maxSixteenBitValue)
	}
	for i, r := range runes {
		if r < 0 || r > maxEightBitValue {
			return nil, fmt.Errorf("%w: character %q at index %d is not a single byte", ErrValueTooLarge, r, i)
		}
	}
	if err := c.ensureCapacity("text", TextFrameBits(len(runes))); err != nil {
		return nil, err
	}

	if err := c.writeValue(uint64(len(runes)), textPrefixBits); err != nil {
		return nil, err
	}
	for _, r := range runes {
		if err := c.writeValue(uint64(r), sampleBits); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":   "EncodeText",
		"characters": len(runes),
		"bits_used":  c.Position(),
	}).Debug("Encoded text frame")

	return c.buf, nil
}

// DecodeText reads a text frame written by EncodeText.
func (c *Codec) DecodeText() (string, error) {
	n, err := c.readValue(textPrefixBits)
	if err != nil {
		return "", err
	}
	if err := c.ensureReadable("text", n, sampleBits); err != nil {
		return "", err
	}

	runes := make([]rune, n)
	for i := range runes {
		v, err := c.readValue(sampleBits)
		if err != nil {
			return "", err
		}
		runes[i] = rune(v)
	}
	return string(runes), nil
}

// EncodeBinary hides data as a 64-bit byte count followed by the raw bytes.
// It returns the mutated carrier.
func (c *Codec) EncodeBinary(data []byte) (*PixelBuffer, error) {
	if err := c.ensureCapacity("binary", BinaryFrameBits(len(data))); err != nil {
		return nil, err
	}

	if err := c.writeValue(uint64(len(data)), binaryPrefixBits); err != nil {
		return nil, err
	}
	for _, b := range data {
		if err := c.writeValue(uint64(b), sampleBits); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "EncodeBinary",
		"bytes":     len(data),
		"bits_used": c.Position(),
	}).Debug("Encoded binary frame")

	return c.buf, nil
}

// DecodeBinary reads a binary frame written by EncodeBinary.
func (c *Codec) DecodeBinary() ([]byte, error) {
	n, err := c.readValue(binaryPrefixBits)
	if err != nil {
		return nil, err
	}
	if err := c.ensureReadable("binary", n, sampleBits); err != nil {
		return nil, err
	}

	data := make([]byte, n)
	for i := range data {
		v, err := c.readValue(sampleBits)
		if err != nil {
			return nil, err
		}
		data[i] = byte(v)
	}
	return data, nil
}

// EncodeImage hides inner as width, height and (unless legacy frames are
// selected) channel count, followed by every sample in row-major,
// channel-innermost order. It returns the mutated carrier.
func (c *Codec) EncodeImage(inner *PixelBuffer) (*PixelBuffer, error) {
	if err := inner.Validate(); err != nil {
		return nil, err
	}
	if inner.Width > maxSixteenBitValue || inner.Height > maxSixteenBitValue {
		return nil, fmt.Errorf("%w: image %dx%d exceeds %d pixels per side",
			ErrValueTooLarge, inner.Width, inner.Height, maxSixteenBitValue)
	}
	if c.opts.LegacyImageFrame {
		if inner.Channels != legacyImageChannels {
			return nil, fmt.Errorf("%w: legacy frames carry %d channels, image has %d",
				ErrChannelMismatch, legacyImageChannels, inner.Channels)
		}
	} else if inner.Channels > maxEightBitValue {
		return nil, fmt.Errorf("%w: %d channels exceeds %d", ErrValueTooLarge, inner.Channels, maxEightBitValue)
	}

	required := ImageFrameBits(inner.Width, inner.Height, inner.Channels, c.opts.LegacyImageFrame)
	if err := c.ensureCapacity("image", required); err != nil {
		return nil, err
	}

	if err := c.writeValue(uint64(inner.Width), imageDimensionBits); err != nil {
		return nil, err
	}
	if err := c.writeValue(uint64(inner.Height), imageDimensionBits); err != nil {
		return nil, err
	}
	if !c.opts.LegacyImageFrame {
		if err := c.writeValue(uint64(inner.Channels), imageChannelBits); err != nil {
			return nil, err
		}
	}
	// Pix is already row-major with channels innermost.
	for _, sample := range inner.Pix {
		if err := c.writeValue(uint64(sample), sampleBits); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "EncodeImage",
		"width":     inner.Width,
		"height":    inner.Height,
		"channels":  inner.Channels,
		"bits_used": c.Position(),
	}).Debug("Encoded image frame")

	return c.buf, nil
}

// DecodeImage reads an image frame written by EncodeImage.
func (c *Codec) DecodeImage() (*PixelBuffer, error) {
	width, err := c.readValue(imageDimensionBits)
	if err != nil {
		return nil, err
	}
	height, err := c.readValue(imageDimensionBits)
	if err != nil {
		return nil, err
	}
	channels := uint64(legacyImageChannels)
	if !c.opts.LegacyImageFrame {
		if channels, err = c.readValue(imageChannelBits); err != nil {
			return nil, err
		}
	}

	if err := c.ensureReadable("image", width*height*channels, sampleBits); err != nil {
		return nil, err
	}
	img, err := NewPixelBuffer(int(height), int(width), int(channels))
	if err != nil {
		return nil, err
	}

	for i := range img.Pix {
		v, err := c.readValue(sampleBits)
		if err != nil {
			return nil, err
		}
		img.Pix[i] = uint8(v)
	}
	return img, nil
}
