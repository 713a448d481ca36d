package datasets

import (
	"math"
	"slices"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/pkg/errors"
)

// DefaultSeed is used when Config.Seed is left as 0.
const DefaultSeed = 42

// Kind identifies one of the partitions held by a Session.
type Kind int

const (
	Train Kind = iota
	Validation
	Test
	// AttackTrain and AttackTest are unshuffled, unaugmented copies of the
	// train and test data, batched by one, used by membership inference attacks.
	AttackTrain
	AttackTest
)

// Kinds lists every partition kind, in order.
var Kinds = []Kind{Train, Validation, Test, AttackTrain, AttackTest}

// String implements fmt.Stringer. It is also the partition name.
func (k Kind) String() string {
	switch k {
	case Train:
		return "train"
	case Validation:
		return "val"
	case Test:
		return "test"
	case AttackTrain:
		return "attack_train"
	case AttackTest:
		return "attack_test"
	}
	return "unknown"
}

// Partitions maps partition kinds to partitions. Missing kinds are absent partitions.
type Partitions map[Kind]*partition.Partition

// Config describes a dataset and how it should be prepared. It is a plain
// value: use the With* methods to derive modified copies.
type Config struct {
	// Name of the dataset, used for logging and catalog lookups.
	Name string

	// Path is an optional source directory. When set, catalog lookups read
	// from Path/Name.
	Path string

	// ImageShape is the shape images are transformed to. Only height and
	// width drive the resizing, channels describes the result.
	ImageShape imageops.Shape

	// DatasetImageShape is the shape of the original data, if known.
	DatasetImageShape imageops.Shape

	// BatchSize of the prepared train, validation and test partitions. 0 disables batching.
	BatchSize int

	ConvertToRGB bool
	AugmentTrain bool
	Shuffle      bool

	// FromCatalog loads the dataset from Catalog when no Loader is given.
	FromCatalog bool

	// BuildsInfo builds the Info record right after loading.
	BuildsInfo bool

	// Preprocess is an optional model specific preprocessing, e.g. imageops.CaffePreprocess.
	Preprocess imageops.PreprocessFunc

	Augmentation imageops.Augmentation

	// Seed drives shuffling, splitting and augmentation. 0 means DefaultSeed.
	Seed uint64

	// Repeat of the prepared train partition: 0 disables it, a negative value
	// repeats forever.
	Repeat int

	// Split holds the train/validation/test fractions used by Resplit.
	// Left at zero it is not validated.
	Split [3]float64

	// ClassNames are only used to display class keys.
	ClassNames []string

	// Cache is used by the prepared partitions. The zero value caches in memory.
	Cache partition.CachePolicy

	// Loader, if set, provides the partitions instead of the catalog.
	Loader Loader

	// Catalog is used when FromCatalog is set. Defaults to a DirCatalog.
	Catalog Catalog
}

// DefaultAugmentation returns the augmentation magnitudes used by default.
func DefaultAugmentation() imageops.Augmentation {
	return imageops.Augmentation{
		Flip:              imageops.FlipHorizontal,
		Rotation:          0.1,
		Zoom:              0.15,
		Brightness:        0.1,
		TranslationWidth:  0.1,
		TranslationHeight: 0.1,
	}
}

// WithClassNames returns a copy of c using names as class names.
func (c Config) WithClassNames(names []string) Config {
	c.ClassNames = slices.Clone(names)
	return c
}

// WithAugmentation returns a copy of c using the given augmentation magnitudes.
func (c Config) WithAugmentation(aug imageops.Augmentation) Config {
	c.Augmentation = aug
	return c
}

// EffectiveSeed returns the seed actually used.
func (c Config) EffectiveSeed() uint64 {
	if c.Seed == 0 {
		return DefaultSeed
	}
	return c.Seed
}

// Validate checks the configuration, returning an error wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Name == "" {
		return invalidConfig("Name", "dataset name is empty")
	}
	if c.ImageShape.Height <= 0 || c.ImageShape.Width <= 0 {
		return invalidConfig("ImageShape", "image shape %s must have positive height and width", c.ImageShape)
	}
	switch c.ImageShape.Channels {
	case 1, 3, 4:
	default:
		return invalidConfig("ImageShape", "image shape %s must have 1, 3 or 4 channels", c.ImageShape)
	}
	if c.ConvertToRGB && c.ImageShape.Channels != 3 {
		return invalidConfig("ConvertToRGB", "converting to rgb needs a 3 channel image shape, got %s", c.ImageShape)
	}
	if c.BatchSize < 0 {
		return invalidConfig("BatchSize", "batch size must not be negative, got %d", c.BatchSize)
	}
	if c.Split != ([3]float64{}) {
		if err := validateSplit(c.Split); err != nil {
			return err
		}
	}
	if err := c.Augmentation.Validate(); err != nil {
		return &StageError{Stage: "config", Field: "Augmentation", Err: errors.Wrap(ErrInvalidConfig, err.Error())}
	}
	return nil
}

func validateSplit(split [3]float64) error {
	sum := 0.0
	for _, f := range split {
		if f < 0 || f > 1 || math.IsNaN(f) {
			return invalidConfig("Split", "split fractions must be in [0, 1], got %v", split)
		}
		sum += f
	}
	if math.Abs(sum-1) > 1e-6 {
		return invalidConfig("Split", "split fractions must sum to 1, got %v (sum %g)", split, sum)
	}
	if split[0] == 0 {
		return invalidConfig("Split", "train fraction must be positive, got %v", split)
	}
	return nil
}

// sourceChannels is the number of channels images are decoded with.
func (c Config) sourceChannels() int {
	switch {
	case c.DatasetImageShape.Channels > 0:
		return c.DatasetImageShape.Channels
	case c.ConvertToRGB:
		return 1
	}
	return c.ImageShape.Channels
}
