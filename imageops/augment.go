package imageops

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
)

// FlipMode selects which random flips are applied.
type FlipMode string

const (
	FlipNone       FlipMode = ""
	FlipHorizontal FlipMode = "horizontal"
	FlipVertical   FlipMode = "vertical"
	FlipBoth       FlipMode = "horizontal_and_vertical"
)

// Augmentation holds the magnitudes of the random augmentations. A zero
// value disables the corresponding stage.
//
//   - Rotation is a fraction of a full turn: angles are drawn in [-Rotation*2π, Rotation*2π].
//   - Zoom draws a factor in [1-Zoom, 1+Zoom]; factors above 1 zoom out.
//   - Brightness draws a delta in [-Brightness, Brightness] added to every value.
//   - TranslationHeight and TranslationWidth are fractions of the image size. Translation
//     only happens when both are set.
type Augmentation struct {
	Flip              FlipMode `json:"flip,omitempty"`
	Rotation          float64  `json:"rotation,omitempty"`
	Zoom              float64  `json:"zoom,omitempty"`
	Brightness        float64  `json:"brightness,omitempty"`
	TranslationWidth  float64  `json:"translation_width,omitempty"`
	TranslationHeight float64  `json:"translation_height,omitempty"`
}

// Validate checks the flip mode and that no magnitude is negative.
func (a Augmentation) Validate() error {
	switch a.Flip {
	case FlipNone, FlipHorizontal, FlipVertical, FlipBoth:
	default:
		return errors.Errorf("unknown flip mode %q", a.Flip)
	}
	for name, v := range map[string]float64{
		"Rotation":          a.Rotation,
		"Zoom":              a.Zoom,
		"Brightness":        a.Brightness,
		"TranslationWidth":  a.TranslationWidth,
		"TranslationHeight": a.TranslationHeight,
	} {
		if v < 0 || math.IsNaN(v) {
			return errors.Errorf("augmentation %s must be non-negative, got %g", name, v)
		}
	}
	return nil
}

// Stages lists the active augmentation stages in the order Apply runs them.
func (a Augmentation) Stages() []string {
	var stages []string
	if a.Flip != FlipNone {
		stages = append(stages, "random_flip")
	}
	if a.Rotation != 0 {
		stages = append(stages, "random_rotation")
	}
	if a.translates() {
		stages = append(stages, "random_translation")
	}
	if a.Zoom != 0 {
		stages = append(stages, "random_zoom")
	}
	if a.Brightness != 0 {
		stages = append(stages, "random_brightness")
	}
	return stages
}

func (a Augmentation) translates() bool {
	return a.TranslationWidth != 0 && a.TranslationHeight != 0
}

// Apply runs the active augmentations on img, drawing every random
// parameter from rng.
func (a Augmentation) Apply(img Image, rng *rand.Rand) Image {
	if a.Flip != FlipNone {
		horizontal := (a.Flip == FlipHorizontal || a.Flip == FlipBoth) && rng.IntN(2) == 1
		vertical := (a.Flip == FlipVertical || a.Flip == FlipBoth) && rng.IntN(2) == 1
		img = Flip(img, horizontal, vertical)
	}
	if a.Rotation != 0 {
		img = Rotate(img, uniform(rng, -a.Rotation, a.Rotation)*2*math.Pi)
	}
	if a.translates() {
		dy := uniform(rng, -a.TranslationHeight, a.TranslationHeight) * float64(img.Height)
		dx := uniform(rng, -a.TranslationWidth, a.TranslationWidth) * float64(img.Width)
		img = Translate(img, dy, dx)
	}
	if a.Zoom != 0 {
		z := 1 + uniform(rng, -a.Zoom, a.Zoom)
		img = Zoom(img, z, z)
	}
	if a.Brightness != 0 {
		img = AdjustBrightness(img, float32(uniform(rng, -a.Brightness, a.Brightness)))
	}
	return img
}

func uniform(rng *rand.Rand, low, high float64) float64 {
	return low + rng.Float64()*(high-low)
}

// Flip mirrors img left-right and/or top-bottom.
func Flip(img Image, horizontal, vertical bool) Image {
	if !horizontal && !vertical {
		return img
	}
	out := NewImage(img.Height, img.Width, img.Channels)
	for y := 0; y < img.Height; y++ {
		sy := y
		if vertical {
			sy = img.Height - 1 - y
		}
		for x := 0; x < img.Width; x++ {
			sx := x
			if horizontal {
				sx = img.Width - 1 - x
			}
			src := (sy*img.Width + sx) * img.Channels
			dst := (y*img.Width + x) * img.Channels
			copy(out.Pix[dst:dst+img.Channels], img.Pix[src:src+img.Channels])
		}
	}
	return out
}

// Rotate turns img counter-clockwise by radians around its center.
func Rotate(img Image, radians float64) Image {
	cy, cx := center(img)
	sin, cos := math.Sincos(radians)
	return warp(img, func(y, x float64) (float64, float64) {
		dy, dx := y-cy, x-cx
		return cy - sin*dx + cos*dy, cx + cos*dx + sin*dy
	})
}

// Translate shifts the content of img by dy rows and dx columns.
func Translate(img Image, dy, dx float64) Image {
	return warp(img, func(y, x float64) (float64, float64) {
		return y - dy, x - dx
	})
}

// Zoom rescales the content of img around its center. Factors above 1 zoom
// out, factors below 1 zoom in.
func Zoom(img Image, zy, zx float64) Image {
	cy, cx := center(img)
	return warp(img, func(y, x float64) (float64, float64) {
		return cy + (y-cy)*zy, cx + (x-cx)*zx
	})
}

// AdjustBrightness adds delta to every value, without clipping.
func AdjustBrightness(img Image, delta float32) Image {
	out := img
	out.Pix = make([]float32, len(img.Pix))
	for i, v := range img.Pix {
		out.Pix[i] = v + delta
	}
	return out
}

func center(img Image) (cy, cx float64) {
	return float64(img.Height-1) / 2, float64(img.Width-1) / 2
}

// warp builds a new image where each output pixel (y, x) is sampled
// bilinearly from img at source(y, x). Positions outside of img read as 0.
func warp(img Image, source func(y, x float64) (float64, float64)) Image {
	out := NewImage(img.Height, img.Width, img.Channels)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			sy, sx := source(float64(y), float64(x))
			y0, x0 := math.Floor(sy), math.Floor(sx)
			wy, wx := float32(sy-y0), float32(sx-x0)
			iy, ix := int(y0), int(x0)
			for c := 0; c < img.Channels; c++ {
				top := (1-wx)*pixelOrZero(img, iy, ix, c) + wx*pixelOrZero(img, iy, ix+1, c)
				bottom := (1-wx)*pixelOrZero(img, iy+1, ix, c) + wx*pixelOrZero(img, iy+1, ix+1, c)
				out.Set(y, x, c, (1-wy)*top+wy*bottom)
			}
		}
	}
	return out
}

func pixelOrZero(img Image, y, x, c int) float32 {
	if y < 0 || y >= img.Height || x < 0 || x >= img.Width {
		return 0
	}
	return img.At(y, x, c)
}
