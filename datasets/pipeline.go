package datasets

import (
	"math/rand/v2"
	"runtime"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Pipeline describes how a raw partition is turned into model input. Stages
// run in this order, each one only when enabled:
//
//  1. grayscale to RGB, resize and rescale to [0, 1], model preprocessing,
//     fused into a single parallel map;
//  2. cache;
//  3. shuffle, with a buffer as large as the partition;
//  4. batch;
//  5. random augmentation;
//  6. repeat;
//  7. prefetch, always.
type Pipeline struct {
	// ResizeRescale resizes to ImageShape and rescales by imageops.RescaleFactor.
	ResizeRescale bool
	ImageShape    imageops.Shape

	// BatchSize 0 disables batching.
	BatchSize    int
	ConvertToRGB bool
	Preprocess   imageops.PreprocessFunc
	Shuffle      bool
	Augment      bool
	Augmentation imageops.Augmentation
	Cache        partition.CachePolicy
	Seed         uint64

	// Repeat 0 disables repetition, negative repeats forever.
	Repeat int

	// Prefetch buffer, runtime.NumCPU() when 0.
	Prefetch int
}

// Stages lists the names of the enabled stages, in order.
func (pl Pipeline) Stages() []string {
	var stages []string
	if pl.ConvertToRGB {
		stages = append(stages, "grayscale_to_rgb")
	}
	if pl.ResizeRescale {
		stages = append(stages, "resize", "rescale")
	}
	if pl.Preprocess != nil {
		stages = append(stages, "preprocess")
	}
	if pl.Cache.Kind != partition.CacheNone {
		stages = append(stages, "cache")
	}
	if pl.Shuffle {
		stages = append(stages, "shuffle")
	}
	if pl.BatchSize > 0 {
		stages = append(stages, "batch")
	}
	if pl.Augment {
		stages = append(stages, pl.Augmentation.Stages()...)
	}
	if pl.Repeat != 0 {
		stages = append(stages, "repeat")
	}
	return append(stages, "prefetch")
}

// Apply builds the prepared partition on top of p. Nothing is evaluated
// until the result is traversed, except that shuffling needs p to have a
// known cardinality.
func (pl Pipeline) Apply(p *partition.Partition) (*partition.Partition, error) {
	name := p.Name()
	stageErr := func(stage, field string, err error) error {
		return &StageError{Partition: name, Stage: stage, Field: field, Err: err}
	}

	if pl.ConvertToRGB || pl.ResizeRescale || pl.Preprocess != nil {
		if pl.ResizeRescale && (pl.ImageShape.Height <= 0 || pl.ImageShape.Width <= 0) {
			return nil, stageErr("resize", "ImageShape",
				errors.Wrapf(ErrInvalidConfig, "invalid image shape %s", pl.ImageShape))
		}
		p = p.Map(pl.preprocessSample(name))
	}

	cached, err := p.Cache(pl.Cache)
	if err != nil {
		return nil, stageErr("cache", "Cache", err)
	}
	p = cached

	if pl.Shuffle {
		card := p.Cardinality()
		if !card.Known() {
			return nil, stageErr("shuffle", "Shuffle",
				errors.Wrapf(partition.ErrUnknownCardinality, "shuffle buffer needs the partition size, got %s", card))
		}
		shuffled, err := p.Shuffle(max(int(card), 1), pl.Seed)
		if err != nil {
			return nil, stageErr("shuffle", "Shuffle", err)
		}
		p = shuffled
	}

	if pl.BatchSize > 0 {
		batched, err := p.Batch(pl.BatchSize)
		if err != nil {
			return nil, stageErr("batch", "BatchSize", err)
		}
		p = batched
	}

	if pl.Augment && len(pl.Augmentation.Stages()) > 0 {
		if err := pl.Augmentation.Validate(); err != nil {
			return nil, stageErr("augment", "Augmentation", err)
		}
		aug, seed := pl.Augmentation, pl.Seed
		p = p.Map(func(pos partition.Position, s partition.Sample) (partition.Sample, error) {
			s.Image = aug.Apply(s.Image, augmentationRand(seed, pos))
			return s, nil
		})
	}

	if pl.Repeat != 0 {
		p = p.Repeat(pl.Repeat)
	}

	buffer := pl.Prefetch
	if buffer <= 0 {
		buffer = runtime.NumCPU()
	}
	p = p.Prefetch(buffer)
	klog.V(1).Infof("prepared %s: %v", name, pl.Stages())
	return p, nil
}

// preprocessSample returns the fused per-sample preprocessing.
func (pl Pipeline) preprocessSample(name string) partition.SampleFunc {
	return func(_ partition.Position, s partition.Sample) (partition.Sample, error) {
		img := s.Image
		var err error
		if pl.ConvertToRGB {
			if img, err = imageops.GrayscaleToRGB(img); err != nil {
				return s, &StageError{Partition: name, Stage: "grayscale_to_rgb", Field: "ConvertToRGB", Err: err}
			}
		}
		if pl.ResizeRescale {
			if img, err = imageops.Resize(img, pl.ImageShape.Height, pl.ImageShape.Width); err != nil {
				return s, &StageError{Partition: name, Stage: "resize", Field: "ImageShape", Err: err}
			}
			img = imageops.Rescale(img, imageops.RescaleFactor)
		}
		if pl.Preprocess != nil {
			if img, err = pl.Preprocess(img); err != nil {
				return s, &StageError{Partition: name, Stage: "preprocess", Field: "Preprocess", Err: err}
			}
		}
		s.Image = img
		return s, nil
	}
}

// augmentationRand derives the generator of one sample from the seed and its
// position, so results don't depend on the order samples are mapped in.
func augmentationRand(seed uint64, pos partition.Position) *rand.Rand {
	return rand.New(rand.NewPCG(seed^0x9e3779b97f4a7c15, uint64(pos.Epoch)<<40^uint64(pos.Index)))
}

// pipelineFor returns the pipeline configured for the session's partitions.
func (s *Session) pipelineFor(kind Kind) Pipeline {
	pl := Pipeline{
		ResizeRescale: true,
		ImageShape:    s.cfg.ImageShape,
		BatchSize:     s.cfg.BatchSize,
		ConvertToRGB:  s.cfg.ConvertToRGB,
		Preprocess:    s.cfg.Preprocess,
		Augmentation:  s.cfg.Augmentation,
		Cache:         s.cfg.Cache,
		Seed:          s.cfg.Seed,
	}
	switch kind {
	case Train:
		pl.Shuffle = s.cfg.Shuffle
		pl.Augment = s.cfg.AugmentTrain
		pl.Repeat = s.cfg.Repeat
	case AttackTrain, AttackTest:
		pl.BatchSize = 1
		pl.Cache = partition.MemoryCache
	}
	return pl
}

// Prepare applies pl to p. It is the building block of PrepareDatasets,
// exposed for partitions the session doesn't manage.
func (s *Session) Prepare(p *partition.Partition, pl Pipeline) (*partition.Partition, error) {
	if p == nil {
		return nil, errors.Wrap(ErrNoData, "cannot prepare a nil partition")
	}
	return pl.Apply(p)
}

// PrepareDatasets prepares every present partition in place. The attack
// partitions are derived first from the unprepared train and test data:
// resized, rescaled and preprocessed like the others, batched by one, never
// shuffled nor augmented. Then train is prepared with the configured
// shuffling, augmentation and repetition, and validation and test with
// neither.
func (s *Session) PrepareDatasets() error {
	train := s.parts[Train]
	if train == nil {
		return errors.Wrapf(ErrNoData, "no %s partition to prepare", Train)
	}
	klog.Infof("Preparing %s (session %s)", s.cfg.Name, s.id)

	attacks := []struct{ from, to Kind }{{Train, AttackTrain}, {Test, AttackTest}}
	for _, a := range attacks {
		src := s.parts[a.from]
		if src == nil {
			delete(s.parts, a.to)
			continue
		}
		prepared, err := s.Prepare(src.WithName(a.to.String()), s.pipelineFor(a.to))
		if err != nil {
			return err
		}
		s.parts[a.to] = prepared
	}

	for _, kind := range []Kind{Train, Validation, Test} {
		src := s.parts[kind]
		if src == nil {
			continue
		}
		prepared, err := s.Prepare(src, s.pipelineFor(kind))
		if err != nil {
			return err
		}
		s.SetPartition(kind, prepared)
	}
	return nil
}
