package main

import (
	"testing"

	"github.com/Noofbiz/ppmlDatasets/datasets"
	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackProgressRestoresTrain(t *testing.T) {
	s, err := datasets.NewSession(datasets.Config{
		Name:         "synthetic",
		ImageShape:   imageops.Shape{Height: 4, Width: 4, Channels: 3},
		ConvertToRGB: true,
		BatchSize:    2,
		Loader:       datasets.SyntheticLoader{Train: []int{3, 2}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Load(nil))
	train := s.Partition(datasets.Train)

	restore := trackProgress(s)
	assert.NotSame(t, train, s.Partition(datasets.Train))
	info, err := s.BuildInfo()
	require.NoError(t, err)
	assert.Equal(t, 5, info.TrainCount)

	restore()
	assert.Same(t, train, s.Partition(datasets.Train))
	require.NoError(t, s.PrepareDatasets())
	assert.Equal(t, partition.Cardinality(3), s.Partition(datasets.Train).Cardinality())
}

func TestParseSplit(t *testing.T) {
	split, err := parseSplit("0.7, 0.2,0.1")
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0.7, 0.2, 0.1}, split)

	_, err = parseSplit("0.5,0.5")
	require.Error(t, err)
	_, err = parseInts("700,x")
	require.Error(t, err)
}
