package carrier

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/opd-ai/stegrelay/steg"
)

// Format identifies a lossless carrier file format.
type Format uint8

const (
	FormatPNG Format = iota
	FormatBMP
	FormatTIFF
)

var (
	// ErrLossyFormat indicates an output format that would destroy hidden bits.
	ErrLossyFormat = errors.New("lossy carrier format")
	// ErrUnknownFormat indicates a file extension with no known format.
	ErrUnknownFormat = errors.New("unknown carrier format")
)

// String returns the conventional file extension without the dot.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".bmp":
		return FormatBMP, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".jpg", ".jpeg", ".gif", ".webp":
		return 0, fmt.Errorf("%w: %s", ErrLossyFormat, path)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Decode reads a PNG, BMP or TIFF image from r into a pixel buffer.
func Decode(r io.Reader, channels int) (*steg.PixelBuffer, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode carrier: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Decode",
		"format":   format,
		"bounds":   img.Bounds().String(),
		"channels": channels,
	}).Debug("Decoded carrier image")

	return FromImage(img, channels)
}

// checkFormat rejects formats that cannot store every sample of pb exactly.
// BMP keeps no usable alpha plane, so hidden bits in the fourth channel are lost.
func checkFormat(pb *steg.PixelBuffer, format Format) error {
	if format == FormatBMP && pb.Channels == RGBA {
		return fmt.Errorf("%w: %s cannot hold %d channel carriers", ErrLossyFormat, format, pb.Channels)
	}
	return nil
}

// Encode writes pb to w in the given format.
func Encode(w io.Writer, pb *steg.PixelBuffer, format Format) error {
	if err := checkFormat(pb, format); err != nil {
		return err
	}
	img, err := ToImage(pb)
	if err != nil {
		return err
	}

	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
}

// EncodePNG returns pb as PNG bytes.
func EncodePNG(pb *steg.PixelBuffer) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, pb, FormatPNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PNGDimensions returns the width and height recorded in a PNG header without
// decoding the pixel data.
func PNGDimensions(data []byte) (width, height int, err error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode carrier header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// DecodePNG parses PNG bytes produced by EncodePNG.
func DecodePNG(data []byte, channels int) (*steg.PixelBuffer, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode carrier: %w", err)
	}
	return FromImage(img, channels)
}

// Load reads a carrier file.
func Load(path string, channels int) (*steg.PixelBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f, channels)
}

// Save writes pb to path in the format implied by its extension.
func Save(path string, pb *steg.PixelBuffer) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := checkFormat(pb, format); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, pb, format); err != nil {
		f.Close()
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Save",
		"path":     path,
		"format":   format.String(),
	}).Debug("Wrote carrier image")

	return f.Close()
}
