package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Aggregate summarizes a series of values.
type Aggregate struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewAggregate computes the aggregate of values. It returns ErrEmpty for no values.
func NewAggregate(values []float64) (Aggregate, error) {
	if len(values) == 0 {
		return Aggregate{}, ErrEmpty
	}
	return Aggregate{
		Avg: stat.Mean(values, nil),
		Min: floats.Min(values),
		Max: floats.Max(values),
	}, nil
}

// EntropySummary aggregates the per-sample entropies of a partition.
type EntropySummary struct {
	Raw        Aggregate `json:"raw"`
	Normalized Aggregate `json:"normalized"`

	Samples int `json:"samples"`
	// ConstantSamples counts samples with a single distinct value, whose
	// entropies are reported as 0.
	ConstantSamples int `json:"constant_samples"`
}

// EntropyAccumulator collects per-sample entropies during a traversal.
// The zero value is ready to use.
type EntropyAccumulator struct {
	raw, normalized []float64
	constant        int
}

// Add computes and records the entropies of one sample.
func (acc *EntropyAccumulator) Add(values []float32) {
	raw, normalized := SampleEntropy(values)
	if raw == 0 {
		acc.constant++
	}
	acc.raw = append(acc.raw, raw)
	acc.normalized = append(acc.normalized, normalized)
}

// Summary returns the aggregates of all samples added so far, or ErrEmpty.
func (acc *EntropyAccumulator) Summary() (EntropySummary, error) {
	raw, err := NewAggregate(acc.raw)
	if err != nil {
		return EntropySummary{}, err
	}
	normalized, err := NewAggregate(acc.normalized)
	if err != nil {
		return EntropySummary{}, err
	}
	return EntropySummary{
		Raw:             raw,
		Normalized:      normalized,
		Samples:         len(acc.raw),
		ConstantSamples: acc.constant,
	}, nil
}

// Summarize computes the entropy summary of a set of samples given as value slices.
func Summarize(samples [][]float32) (EntropySummary, error) {
	var acc EntropyAccumulator
	for _, s := range samples {
		acc.Add(s)
	}
	return acc.Summary()
}
