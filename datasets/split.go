package datasets

import (
	"math"

	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MergeAll concatenates train, test and validation (in that order, absent
// ones skipped) into the new train partition. When percentage is below 100
// only the first ceil(n * percentage / 100) samples are kept.
//
// Validation and test are removed, since their samples are now part of train.
func (s *Session) MergeAll(percentage int) (*partition.Partition, error) {
	merged, err := s.merged(percentage)
	if err != nil {
		return nil, err
	}
	s.SetPartition(Train, merged)
	s.SetPartition(Validation, nil)
	s.SetPartition(Test, nil)
	klog.Infof("Merged %s partitions into %s samples of train", s.cfg.Name, merged.NumSamples())
	return merged, nil
}

// merged builds the MergeAll partition without touching the session.
func (s *Session) merged(percentage int) (*partition.Partition, error) {
	if percentage <= 0 || percentage > 100 {
		return nil, invalidConfig("percentage", "percentage of loaded data must be in (0, 100], got %d", percentage)
	}
	train := s.parts[Train]
	if train == nil {
		return nil, errors.Wrapf(ErrNoData, "no %s partition to merge into", Train)
	}
	if train.Batched() {
		return nil, errors.Errorf("cannot merge prepared (batched) partitions")
	}
	var others []*partition.Partition
	for _, kind := range []Kind{Test, Validation} {
		if p := s.parts[kind]; p != nil {
			others = append(others, p)
		}
	}
	merged := train.Concatenate(others...)
	if !merged.Cardinality().Known() {
		var err error
		if merged, err = merged.Recount(); err != nil {
			return nil, errors.WithMessage(err, "merging partitions")
		}
	}
	if percentage != 100 {
		n := int64(merged.Cardinality())
		keep := int64(math.Ceil(float64(n) * float64(percentage) / 100))
		merged = merged.Take(keep)
	}
	return merged.WithName(Train.String()), nil
}

// Resplit merges all partitions (keeping percentage of them, see MergeAll),
// shuffles the merged samples once and carves new train, validation and test
// partitions out of them according to split. The session is left untouched
// if reading the merged samples fails.
//
// train gets round(split[0] * n) samples. The rest goes entirely to test if
// split[1] is 0, entirely to validation if split[2] is 0, and is otherwise
// divided between them with validation taking the split[1] / (split[1] + split[2])
// fraction, without shuffling again.
func (s *Session) Resplit(split [3]float64, percentage int) error {
	if err := validateSplit(split); err != nil {
		return err
	}
	merged, err := s.merged(percentage)
	if err != nil {
		return err
	}
	samples, err := s.shuffledSamples(merged)
	if err != nil {
		return err
	}

	trainN := min(roundHalfEven(split[0]*float64(len(samples))), len(samples))
	rest := samples[trainN:]
	var val, test []partition.Sample
	switch {
	case split[1] == 0:
		test = rest
	case split[2] == 0:
		val = rest
	default:
		valN := roundHalfEven(split[1] / (split[1] + split[2]) * float64(len(rest)))
		val, test = rest[:valN], rest[valN:]
	}

	s.SetPartition(Train, partition.FromSamples(Train.String(), samples[:trainN]))
	s.SetPartition(Validation, nil)
	s.SetPartition(Test, nil)
	if split[1] != 0 {
		s.SetPartition(Validation, partition.FromSamples(Validation.String(), val))
	}
	if split[2] != 0 {
		s.SetPartition(Test, partition.FromSamples(Test.String(), test))
	}
	klog.Infof("Resplit %s into train=%d val=%d test=%d", s.cfg.Name, trainN, len(val), len(test))
	return nil
}

// SplitValFromTrain moves a shuffled valFraction of the train samples into
// a new validation partition, replacing any previous one. It returns the new
// train and validation sizes.
func (s *Session) SplitValFromTrain(valFraction float64) (trainCount, valCount int, err error) {
	if !(valFraction > 0 && valFraction < 1) {
		return 0, 0, invalidConfig("valFraction", "validation fraction must be in (0, 1), got %g", valFraction)
	}
	train := s.parts[Train]
	if train == nil {
		return 0, 0, errors.Wrapf(ErrNoData, "no %s partition to split", Train)
	}
	samples, err := s.shuffledSamples(train)
	if err != nil {
		return 0, 0, err
	}
	valCount = min(roundHalfEven(valFraction*float64(len(samples))), len(samples))
	trainCount = len(samples) - valCount
	s.SetPartition(Train, partition.FromSamples(Train.String(), samples[:trainCount]))
	s.SetPartition(Validation, partition.FromSamples(Validation.String(), samples[trainCount:]))
	return trainCount, valCount, nil
}

// shuffledSamples materializes p and shuffles its samples with the session seed.
func (s *Session) shuffledSamples(p *partition.Partition) ([]partition.Sample, error) {
	if p.Batched() {
		return nil, errors.Errorf("cannot split prepared (batched) partition %q", p.Name())
	}
	samples, err := partition.Collect(p)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading partition %q", p.Name())
	}
	rng := partition.NewRand(s.cfg.Seed, 0)
	rng.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })
	return samples, nil
}
