package datasets

import (
	"testing"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, p *partition.Partition) []partition.Sample {
	t.Helper()
	samples, err := partition.Collect(p)
	require.NoError(t, err)
	return samples
}

func TestPipelineStages(t *testing.T) {
	pl := Pipeline{
		ResizeRescale: true,
		ConvertToRGB:  true,
		Preprocess:    imageops.CaffePreprocess,
		Shuffle:       true,
		BatchSize:     32,
		Augment:       true,
		Augmentation:  DefaultAugmentation(),
		Repeat:        -1,
	}
	assert.Equal(t, []string{
		"grayscale_to_rgb", "resize", "rescale", "preprocess", "cache", "shuffle", "batch",
		"random_flip", "random_rotation", "random_translation", "random_zoom", "random_brightness",
		"repeat", "prefetch",
	}, pl.Stages())

	assert.Equal(t, []string{"prefetch"}, Pipeline{Cache: partition.NoCache}.Stages())
}

func TestPipelineApply(t *testing.T) {
	s := loadedSession(t, syntheticConfig([]int{6, 5}, nil, nil))
	pl := Pipeline{
		ResizeRescale: true,
		ImageShape:    imageops.Shape{Height: 8, Width: 8, Channels: 3},
		ConvertToRGB:  true,
		BatchSize:     4,
	}
	p, err := s.Prepare(s.Partition(Train), pl)
	require.NoError(t, err)
	assert.True(t, p.Batched())
	assert.Equal(t, partition.Cardinality(3), p.Cardinality())

	var sizes []int
	require.NoError(t, partition.ForEach(p, func(el partition.Element) error {
		sizes = append(sizes, len(el.Samples))
		for _, sample := range el.Samples {
			assert.Equal(t, imageops.Shape{Height: 8, Width: 8, Channels: 3}, sample.Image.Shape())
			for _, v := range sample.Image.Pix {
				assert.True(t, v >= 0 && v <= 1, "rescaled value %g", v)
			}
		}
		return nil
	}))
	assert.Equal(t, []int{4, 4, 3}, sizes)

	_, err = s.Prepare(nil, pl)
	require.ErrorIs(t, err, ErrNoData)
}

func TestPipelineShuffleDeterminism(t *testing.T) {
	cfg := syntheticConfig([]int{40, 40}, nil, nil)
	cfg.Shuffle = true
	cfg.BatchSize = 8

	run := func() []partition.Sample {
		s := loadedSession(t, cfg)
		require.NoError(t, s.PrepareDatasets())
		return collect(t, s.Partition(Train))
	}
	first, second := run(), run()
	require.Len(t, first, 80)
	require.Len(t, second, 80)
	for i := range first {
		assert.Equal(t, first[i].Label, second[i].Label)
		assert.True(t, first[i].Image.Equal(second[i].Image), "sample %d differs", i)
	}

	cfg.Seed = 1234
	other := run()
	same := true
	for i := range first {
		if !first[i].Image.Equal(other[i].Image) {
			same = false
			break
		}
	}
	assert.False(t, same, "a different seed should give a different order")
}

func TestPipelineShuffleNeedsCardinality(t *testing.T) {
	s := loadedSession(t, syntheticConfig([]int{5, 5}, nil, nil))
	unknown := s.Partition(Train).Filter(func(partition.Sample) bool { return true })
	_, err := s.Prepare(unknown, Pipeline{Shuffle: true, Seed: 1})
	require.ErrorIs(t, err, partition.ErrUnknownCardinality)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "train", stageErr.Partition)
	assert.Equal(t, "shuffle", stageErr.Stage)
	assert.Equal(t, "Shuffle", stageErr.Field)
}

func TestPipelineStageErrorAtTraversal(t *testing.T) {
	cfg := syntheticConfig([]int{3}, nil, nil)
	cfg.DatasetImageShape.Channels = 3
	s := loadedSession(t, cfg)
	p, err := s.Prepare(s.Partition(Train), Pipeline{ConvertToRGB: true})
	require.NoError(t, err)
	_, err = partition.Collect(p)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "grayscale_to_rgb", stageErr.Stage)
	assert.Equal(t, "ConvertToRGB", stageErr.Field)
}

func TestPrepareDatasetsAttackPartitions(t *testing.T) {
	cfg := syntheticConfig([]int{12, 8}, []int{3, 3}, []int{4, 4})
	cfg.Shuffle = true
	cfg.AugmentTrain = true
	cfg.Augmentation = DefaultAugmentation()
	cfg.BatchSize = 4
	s := loadedSession(t, cfg)
	rawTrain, rawTest := s.Partition(Train), s.Partition(Test)

	require.NoError(t, s.PrepareDatasets())

	reference := Pipeline{
		ResizeRescale: true,
		ImageShape:    cfg.ImageShape,
		ConvertToRGB:  true,
		Cache:         partition.NoCache,
	}
	for _, tc := range []struct {
		attack Kind
		raw    *partition.Partition
	}{{AttackTrain, rawTrain}, {AttackTest, rawTest}} {
		attack := s.Partition(tc.attack)
		require.NotNil(t, attack, tc.attack.String())
		assert.Equal(t, tc.attack.String(), attack.Name())
		assert.Equal(t, tc.raw.Cardinality(), attack.Cardinality(), "batched by one")

		want, err := reference.Apply(tc.raw)
		require.NoError(t, err)
		wantSamples, gotSamples := collect(t, want), collect(t, attack)
		require.Len(t, gotSamples, len(wantSamples))
		for i := range wantSamples {
			assert.Equal(t, wantSamples[i].Label, gotSamples[i].Label)
			assert.True(t, wantSamples[i].Image.Equal(gotSamples[i].Image), "%s sample %d", tc.attack, i)
		}
	}

	train := collect(t, s.Partition(Train))
	require.Len(t, train, 20)
	attackTrain := collect(t, s.Partition(AttackTrain))
	differs := 0
	for i := range train {
		if !train[i].Image.Equal(attackTrain[i].Image) {
			differs++
		}
	}
	assert.Positive(t, differs, "train partition is augmented")

	assert.Equal(t, partition.Cardinality(2), s.Partition(Validation).Cardinality())
	assert.True(t, s.Partition(Test).Batched())
}

func TestPrepareDatasetsWithoutTest(t *testing.T) {
	s := loadedSession(t, syntheticConfig([]int{4, 4}, nil, nil))
	require.NoError(t, s.PrepareDatasets())
	assert.NotNil(t, s.Partition(AttackTrain))
	assert.Nil(t, s.Partition(AttackTest))
	assert.Nil(t, s.Partition(Test))

	empty, err := NewSession(syntheticConfig(nil, nil, nil))
	require.NoError(t, err)
	require.ErrorIs(t, empty.PrepareDatasets(), ErrNoData)
}

func TestPrepareDatasetsRepeatAndFileCache(t *testing.T) {
	cfg := syntheticConfig([]int{3, 3}, nil, nil)
	cfg.Repeat = 2
	cfg.BatchSize = 2
	cfg.Cache = partition.FileCache(t.TempDir())
	s := loadedSession(t, cfg)
	require.NoError(t, s.PrepareDatasets())
	train := s.Partition(Train)
	assert.Equal(t, partition.Cardinality(6), train.Cardinality())
	assert.Len(t, collect(t, train), 12)
	assert.Len(t, collect(t, train), 12)

	counts, err := s.DatasetCount()
	require.NoError(t, err)
	assert.Equal(t, 12, counts.Train)
}

func TestPrepareCaffe(t *testing.T) {
	cfg := syntheticConfig([]int{2}, nil, nil)
	cfg.Preprocess = imageops.CaffePreprocess
	s := loadedSession(t, cfg)
	require.NoError(t, s.PrepareDatasets())
	samples := collect(t, s.Partition(AttackTrain))
	require.Len(t, samples, 2)
	for _, v := range samples[0].Image.Pix {
		assert.Less(t, v, float32(0), "mean subtraction after rescaling leaves negative values")
	}
}
