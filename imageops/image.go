// Package imageops holds the per-image transforms used by the preparation
// pipeline: channel conversion, resizing, rescaling, model specific
// preprocessing and the random augmentations applied to training data.
//
// Images are kept as float32 buffers in row-major HWC layout so that the
// values produced by rescaling and preprocessing are not quantized between
// stages. Every function returns a new Image and never modifies its input,
// since the same image may be held by a cache and replayed later.
package imageops

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Shape is the (height, width, channels) triple of an image.
type Shape struct {
	Height   int `json:"height"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Height, s.Width, s.Channels)
}

// IsZero reports whether the shape was left unset.
func (s Shape) IsZero() bool {
	return s.Height == 0 && s.Width == 0 && s.Channels == 0
}

// Size is the number of values an image of this shape holds.
func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

// Image is a single image stored as float32 values in HWC order.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []float32
}

// NewImage returns a zero filled image.
func NewImage(height, width, channels int) Image {
	return Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]float32, height*width*channels),
	}
}

// FromPixels wraps pix (not copied) as an image of the given shape.
func FromPixels(shape Shape, pix []float32) (Image, error) {
	if len(pix) != shape.Size() {
		return Image{}, errors.Errorf("image shape %s needs %d values, got %d", shape, shape.Size(), len(pix))
	}
	return Image{Height: shape.Height, Width: shape.Width, Channels: shape.Channels, Pix: pix}, nil
}

// Shape returns the image shape.
func (img Image) Shape() Shape {
	return Shape{Height: img.Height, Width: img.Width, Channels: img.Channels}
}

// At returns the value at row y, column x and channel c.
func (img Image) At(y, x, c int) float32 {
	return img.Pix[(y*img.Width+x)*img.Channels+c]
}

// Set stores v at row y, column x and channel c.
func (img Image) Set(y, x, c int, v float32) {
	img.Pix[(y*img.Width+x)*img.Channels+c] = v
}

// Clone returns a deep copy of the image.
func (img Image) Clone() Image {
	out := img
	out.Pix = make([]float32, len(img.Pix))
	copy(out.Pix, img.Pix)
	return out
}

// Equal reports whether both images have the same shape and bit-identical values.
func (img Image) Equal(other Image) bool {
	if img.Shape() != other.Shape() || len(img.Pix) != len(other.Pix) {
		return false
	}
	for i, v := range img.Pix {
		if math.Float32bits(v) != math.Float32bits(other.Pix[i]) {
			return false
		}
	}
	return true
}

// FromImage converts a decoded image into an Image with the requested number
// of channels (1, 3 or 4). Values are kept in the [0, 255] range.
//
// Single channel images use imaging's luminance conversion.
func FromImage(src image.Image, channels int) (Image, error) {
	var nrgba *image.NRGBA
	switch channels {
	case 1:
		nrgba = imaging.Grayscale(src)
	case 3, 4:
		nrgba = imaging.Clone(src)
	default:
		return Image{}, errors.Errorf("unsupported number of channels %d, expected 1, 3 or 4", channels)
	}
	bounds := nrgba.Bounds()
	img := NewImage(bounds.Dy(), bounds.Dx(), channels)
	for y := 0; y < img.Height; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+img.Width*4]
		for x := 0; x < img.Width; x++ {
			px := row[x*4 : x*4+4]
			for c := 0; c < channels; c++ {
				img.Set(y, x, c, float32(px[c]))
			}
		}
	}
	return img, nil
}

// ToNRGBA converts the image into an 8-bit image.Image. Values are rounded
// and clamped to [0, 255]; single channel images are replicated over RGB and
// images without alpha are fully opaque.
func (img Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			var c color.NRGBA
			switch img.Channels {
			case 1:
				v := toUint8(img.At(y, x, 0))
				c = color.NRGBA{R: v, G: v, B: v, A: 255}
			case 3:
				c = color.NRGBA{R: toUint8(img.At(y, x, 0)), G: toUint8(img.At(y, x, 1)), B: toUint8(img.At(y, x, 2)), A: 255}
			default:
				c = color.NRGBA{R: toUint8(img.At(y, x, 0)), G: toUint8(img.At(y, x, 1)), B: toUint8(img.At(y, x, 2)), A: toUint8(img.At(y, x, 3))}
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

func toUint8(v float32) uint8 {
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(float64(v)))
}
