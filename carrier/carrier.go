package carrier

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/opd-ai/stegrelay/steg"
)

// Channel layouts understood by FromImage and ToImage.
const (
	Gray = 1
	RGB  = 3
	RGBA = 4
)

// ErrUnsupportedChannels indicates a channel layout other than Gray, RGB or RGBA.
var ErrUnsupportedChannels = errors.New("unsupported channel count")

// FromImage copies img into a new pixel buffer with the given channel layout.
// The image origin is moved to (0,0).
func FromImage(img image.Image, channels int) (*steg.PixelBuffer, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image bounds %v", steg.ErrInvalidBuffer, b)
	}

	pb, err := steg.NewPixelBuffer(b.Dy(), b.Dx(), channels)
	if err != nil {
		return nil, err
	}

	switch channels {
	case Gray:
		gray := toGray(img)
		for y := 0; y < pb.Height; y++ {
			copy(pb.Pix[y*pb.Width:(y+1)*pb.Width], gray.Pix[y*gray.Stride:y*gray.Stride+pb.Width])
		}
	case RGB, RGBA:
		nrgba := toNRGBA(img)
		for y := 0; y < pb.Height; y++ {
			row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*pb.Width]
			for x := 0; x < pb.Width; x++ {
				for ch := 0; ch < channels; ch++ {
					pb.Set(y, x, ch, row[4*x+ch])
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}
	return pb, nil
}

// ToImage converts pb into an *image.Gray (one channel) or *image.NRGBA
// (three or four channels, opaque alpha for three).
func ToImage(pb *steg.PixelBuffer) (image.Image, error) {
	if err := pb.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, pb.Width, pb.Height)

	switch pb.Channels {
	case Gray:
		img := image.NewGray(rect)
		copy(img.Pix, pb.Pix)
		return img, nil
	case RGB, RGBA:
		img := image.NewNRGBA(rect)
		for y := 0; y < pb.Height; y++ {
			for x := 0; x < pb.Width; x++ {
				c := color.NRGBA{
					R: pb.At(y, x, 0),
					G: pb.At(y, x, 1),
					B: pb.At(y, x, 2),
					A: 0xFF,
				}
				if pb.Channels == RGBA {
					c.A = pb.At(y, x, 3)
				}
				img.SetNRGBA(x, y, c)
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, pb.Channels)
	}
}

// toNRGBA returns img as a zero-origin *image.NRGBA, copying only when the
// source is not already in that form.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
