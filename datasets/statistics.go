package datasets

import (
	"fmt"

	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/Noofbiz/ppmlDatasets/stats"
	"github.com/pkg/errors"
)

// Counts holds the number of samples of each partition, 0 when absent.
type Counts struct {
	Train      int `json:"train"`
	Validation int `json:"val"`
	Test       int `json:"test"`
}

// Total is the sum of all counts.
func (c Counts) Total() int { return c.Train + c.Validation + c.Test }

// ClassWeight is the balanced weight of one class of the train partition.
type ClassWeight struct {
	Label int `json:"label"`
	// Key is the display name of the class: "name(label)" when class names
	// are configured, the label otherwise.
	Key    string  `json:"key"`
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

// ClassDistribution returns the class distribution of p. A nil p means the
// train partition, whose distribution is cached until force is set or the
// train partition is replaced. Explicit partitions are never cached.
func (s *Session) ClassDistribution(p *partition.Partition, force bool) (stats.Distribution, error) {
	useCache := p == nil
	p, err := s.partitionOrTrain(p)
	if err != nil {
		return stats.Distribution{}, err
	}
	if useCache && !force && s.distribution != nil {
		return *s.distribution, nil
	}

	var labels []int
	if p.NumSamples().Known() {
		labels = make([]int, 0, p.NumSamples())
	}
	err = partition.ForEach(p, func(el partition.Element) error {
		for _, sample := range el.Samples {
			labels = append(labels, sample.Label)
		}
		return nil
	})
	if err != nil {
		return stats.Distribution{}, errors.WithMessagef(err, "class distribution of %q", p.Name())
	}
	d := stats.NewDistribution(labels)
	if useCache {
		s.distribution = &d
	}
	return d, nil
}

// classKeys returns the display key of every label of d. Class names are
// only used when there is exactly one per distributed label.
func (s *Session) classKeys(d stats.Distribution) []string {
	names := s.cfg.ClassNames
	useNames := len(names) > 0 && len(names) == len(d.Labels)
	keys := make([]string, len(d.Labels))
	for i, label := range d.Labels {
		if useNames && label >= 0 && label < len(names) {
			keys[i] = fmt.Sprintf("%s(%d)", names[label], label)
		} else {
			keys[i] = fmt.Sprint(label)
		}
	}
	return keys
}

// ClassWeights returns the balanced class weights of the train partition,
// ordered by label.
func (s *Session) ClassWeights() ([]ClassWeight, error) {
	d, err := s.ClassDistribution(nil, false)
	if err != nil {
		return nil, err
	}
	weights, err := stats.BalancedWeights(d.PerSample)
	if err != nil {
		return nil, errors.WithMessage(err, "class weights")
	}
	keys := s.classKeys(d)
	result := make([]ClassWeight, len(d.Labels))
	for i, l := range d.Labels {
		result[i] = ClassWeight{Label: l, Key: keys[i], Count: d.Counts[i], Weight: weights[l]}
	}
	return result, nil
}

// ClassImbalance returns the class balance score of the train partition,
// see stats.Imbalance.
func (s *Session) ClassImbalance() (float64, error) {
	d, err := s.ClassDistribution(nil, false)
	if err != nil {
		return 0, err
	}
	return stats.Imbalance(d.Counts)
}

// DataEntropy summarizes the per-sample value entropy of p, or of the train
// partition if p is nil.
func (s *Session) DataEntropy(p *partition.Partition) (stats.EntropySummary, error) {
	p, err := s.partitionOrTrain(p)
	if err != nil {
		return stats.EntropySummary{}, err
	}
	var acc stats.EntropyAccumulator
	err = partition.ForEach(p, func(el partition.Element) error {
		for _, sample := range el.Samples {
			acc.Add(sample.Image.Pix)
		}
		return nil
	})
	if err != nil {
		return stats.EntropySummary{}, errors.WithMessagef(err, "data entropy of %q", p.Name())
	}
	summary, err := acc.Summary()
	if err != nil {
		return stats.EntropySummary{}, errors.WithMessagef(err, "data entropy of %q", p.Name())
	}
	return summary, nil
}

// DatasetCount returns the number of samples of train, validation and test.
// Partitions with an unknown count are counted by traversing them.
func (s *Session) DatasetCount() (Counts, error) {
	var counts Counts
	for _, c := range []struct {
		kind Kind
		dst  *int
	}{{Train, &counts.Train}, {Validation, &counts.Validation}, {Test, &counts.Test}} {
		p := s.parts[c.kind]
		if p == nil {
			continue
		}
		n := p.NumSamples()
		switch {
		case n == partition.Infinite:
			return Counts{}, errors.Wrapf(partition.ErrInfinite, "counting %s", c.kind)
		case !n.Known():
			_, samples, err := partition.Count(p)
			if err != nil {
				return Counts{}, errors.WithMessagef(err, "counting %s", c.kind)
			}
			n = partition.Cardinality(samples)
		}
		*c.dst = int(n)
	}
	return counts, nil
}
