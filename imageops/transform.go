package imageops

import (
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// RescaleFactor maps raw [0, 255] intensities into [0, 1].
const RescaleFactor = float32(1.0 / 255.0)

// PreprocessFunc is a model specific transformation applied to every image
// after resizing and rescaling. It must not modify its input.
type PreprocessFunc func(img Image) (Image, error)

// GrayscaleToRGB replicates the single channel of img over three channels.
func GrayscaleToRGB(img Image) (Image, error) {
	if img.Channels != 1 {
		return Image{}, errors.Errorf("grayscale to rgb needs a 1 channel image, got %d channels", img.Channels)
	}
	out := NewImage(img.Height, img.Width, 3)
	for i, v := range img.Pix {
		out.Pix[i*3] = v
		out.Pix[i*3+1] = v
		out.Pix[i*3+2] = v
	}
	return out, nil
}

// Resize scales img to height x width using a bilinear filter. The channel
// count is left untouched.
//
// Resizing goes through an 8-bit image, so it expects raw intensities in
// [0, 255]. An image that already has the requested size is returned as is.
func Resize(img Image, height, width int) (Image, error) {
	if height <= 0 || width <= 0 {
		return Image{}, errors.Errorf("invalid resize target %dx%d", height, width)
	}
	if img.Height == height && img.Width == width {
		return img, nil
	}
	switch img.Channels {
	case 1, 3, 4:
	default:
		return Image{}, errors.Errorf("resize supports 1, 3 or 4 channels, got %d", img.Channels)
	}
	resized := imaging.Resize(img.ToNRGBA(), width, height, imaging.Linear)
	out := NewImage(height, width, img.Channels)
	for y := 0; y < height; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < width; x++ {
			for c := 0; c < img.Channels; c++ {
				out.Set(y, x, c, float32(row[x*4+c]))
			}
		}
	}
	return out, nil
}

// Rescale multiplies every value of img by scale.
func Rescale(img Image, scale float32) Image {
	out := img
	out.Pix = make([]float32, len(img.Pix))
	for i, v := range img.Pix {
		out.Pix[i] = v * scale
	}
	return out
}

// imageNetMeanBGR is the per channel mean used by caffe style models.
var imageNetMeanBGR = [3]float32{103.939, 116.779, 123.68}

// CaffePreprocess is the ResNet50 style preprocessing: channels are swapped
// from RGB to BGR and the ImageNet mean is subtracted, without scaling.
func CaffePreprocess(img Image) (Image, error) {
	if img.Channels != 3 {
		return Image{}, errors.Errorf("caffe preprocessing needs 3 channels, got %d", img.Channels)
	}
	out := NewImage(img.Height, img.Width, 3)
	for i := 0; i < len(img.Pix); i += 3 {
		for c := 0; c < 3; c++ {
			out.Pix[i+c] = img.Pix[i+2-c] - imageNetMeanBGR[c]
		}
	}
	return out, nil
}

// Standardize returns a PreprocessFunc computing (x - mean[c]) / std[c] per channel.
func Standardize(mean, std []float32) PreprocessFunc {
	return func(img Image) (Image, error) {
		if len(mean) != img.Channels || len(std) != img.Channels {
			return Image{}, errors.Errorf("standardize configured for %d/%d channels, image has %d",
				len(mean), len(std), img.Channels)
		}
		out := NewImage(img.Height, img.Width, img.Channels)
		for i, v := range img.Pix {
			c := i % img.Channels
			if std[c] == 0 {
				return Image{}, errors.Errorf("standardize: zero std for channel %d", c)
			}
			out.Pix[i] = (v - mean[c]) / std[c]
		}
		return out, nil
	}
}

// TorchPreprocess normalizes images in [0, 1] with the ImageNet channel mean
// and standard deviation, as torchvision models expect.
var TorchPreprocess = Standardize(
	[]float32{0.485, 0.456, 0.406},
	[]float32{0.229, 0.224, 0.225},
)
