package datasets

import (
	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/pkg/errors"
)

// SyntheticLoader generates labeled random images. Each class has its own
// mean intensity with uniform noise around it, so the data is separable and
// its class distribution is exactly the requested one.
//
// Generation is deterministic for a given seed.
type SyntheticLoader struct {
	// Shape of the generated images. Defaults to Config.DatasetImageShape,
	// then to the size of Config.ImageShape with the channels images are
	// decoded with (1 when converting to RGB).
	Shape imageops.Shape

	// Number of samples per class of each partition. Nil partitions are not generated.
	Train, Validation, Test []int

	// Noise is the half width of the uniform noise, in intensity units. Defaults to 32.
	Noise float64
}

var _ Loader = SyntheticLoader{}

// Load implements Loader.
func (l SyntheticLoader) Load(cfg Config) (Partitions, error) {
	shape := l.Shape
	if shape.IsZero() {
		shape = cfg.DatasetImageShape
	}
	if shape.IsZero() {
		shape = imageops.Shape{Height: cfg.ImageShape.Height, Width: cfg.ImageShape.Width, Channels: cfg.sourceChannels()}
	}
	if shape.Size() <= 0 {
		return nil, errors.Errorf("synthetic loader: invalid image shape %s", shape)
	}
	noise := l.Noise
	if noise == 0 {
		noise = 32
	}
	parts := make(Partitions)
	for i, src := range []struct {
		kind   Kind
		counts []int
	}{{Train, l.Train}, {Validation, l.Validation}, {Test, l.Test}} {
		if src.counts == nil {
			continue
		}
		// Each partition gets its own stream.
		rng := partition.NewRand(cfg.EffectiveSeed(), 1000+i)
		numClasses := len(src.counts)
		var samples []partition.Sample
		for label, count := range src.counts {
			if count < 0 {
				return nil, errors.Errorf("synthetic loader: negative count %d for class %d", count, label)
			}
			mean := 255 * (float64(label) + 0.5) / float64(numClasses)
			for range count {
				img := imageops.NewImage(shape.Height, shape.Width, shape.Channels)
				for j := range img.Pix {
					v := mean + (2*rng.Float64()-1)*noise
					img.Pix[j] = float32(min(max(v, 0), 255))
				}
				samples = append(samples, partition.Sample{Image: img, Label: label})
			}
		}
		// Interleave classes deterministically.
		rng.Shuffle(len(samples), func(a, b int) { samples[a], samples[b] = samples[b], samples[a] })
		parts[src.kind] = partition.FromSamples(src.kind.String(), samples)
	}
	return parts, nil
}
