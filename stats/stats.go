// Package stats holds the descriptive statistics computed over dataset
// partitions: class distribution, balanced class weights, the Shannon based
// class imbalance score and per-sample value entropy.
//
// Functions here are pure, they work over labels and values already
// extracted from a partition.
package stats

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmpty is returned when there is no data to compute a statistic on.
	ErrEmpty = errors.New("no samples")

	// ErrDegenerate is returned when a statistic is undefined for the data,
	// e.g. the imbalance score of a single class.
	ErrDegenerate = errors.New("statistic is undefined for this data")
)

// Distribution is the class distribution of a partition.
type Distribution struct {
	// Labels are the distinct labels, sorted.
	Labels []int
	// Counts[i] is the number of samples with Labels[i].
	Counts []int
	// PerSample holds the label of every sample, in partition order.
	PerSample []int
}

// NewDistribution computes the distribution of the given per-sample labels.
func NewDistribution(perSample []int) Distribution {
	counts := make(map[int]int)
	for _, l := range perSample {
		counts[l]++
	}
	d := Distribution{PerSample: perSample}
	for l := range counts {
		d.Labels = append(d.Labels, l)
	}
	slices.Sort(d.Labels)
	d.Counts = make([]int, len(d.Labels))
	for i, l := range d.Labels {
		d.Counts[i] = counts[l]
	}
	return d
}

// Total is the number of samples.
func (d Distribution) Total() int { return len(d.PerSample) }

// NumClasses is the number of distinct labels.
func (d Distribution) NumClasses() int { return len(d.Labels) }

// Count returns the number of samples with label l.
func (d Distribution) Count(l int) int {
	if i, found := slices.BinarySearch(d.Labels, l); found {
		return d.Counts[i]
	}
	return 0
}

// BalancedWeights returns for every label the weight n / (k * count), where
// n is the number of samples and k the number of distinct labels. Weighting
// each sample by the weight of its class makes every class contribute the
// same total weight.
func BalancedWeights(perSample []int) (map[int]float64, error) {
	if len(perSample) == 0 {
		return nil, ErrEmpty
	}
	d := NewDistribution(perSample)
	n, k := float64(d.Total()), float64(d.NumClasses())
	weights := make(map[int]float64, len(d.Labels))
	for i, l := range d.Labels {
		weights[l] = n / (k * float64(d.Counts[i]))
	}
	return weights, nil
}

// Imbalance returns the class balance score H / ln(k), where H is the Shannon
// entropy of the class proportions and k the number of classes with at least
// one sample. It is 1 for perfectly balanced classes and tends to 0 as the
// samples concentrate into one class.
//
// It returns ErrDegenerate when fewer than two classes are present.
func Imbalance(counts []int) (float64, error) {
	var probs []float64
	n := 0
	for _, c := range counts {
		if c < 0 {
			return 0, errors.Errorf("negative class count %d", c)
		}
		if c > 0 {
			probs = append(probs, float64(c))
			n += c
		}
	}
	if n == 0 {
		return 0, ErrEmpty
	}
	if len(probs) < 2 {
		return 0, errors.Wrapf(ErrDegenerate, "class imbalance needs at least 2 classes, got %d", len(probs))
	}
	floats.Scale(1/float64(n), probs)
	score := stat.Entropy(probs) / math.Log(float64(len(probs)))
	return min(max(score, 0), 1), nil
}

// SampleEntropy returns the Shannon entropy (natural log) of the distribution
// of distinct values in values, and that entropy normalized by the log of the
// number of distinct values. A constant sample has both entropies equal to 0.
func SampleEntropy(values []float32) (raw, normalized float64) {
	if len(values) == 0 {
		return 0, 0
	}
	histogram := make(map[uint32]int)
	for _, v := range values {
		histogram[math.Float32bits(canonical(v))]++
	}
	if len(histogram) < 2 {
		return 0, 0
	}
	probs := make([]float64, 0, len(histogram))
	for _, c := range histogram {
		probs = append(probs, float64(c)/float64(len(values)))
	}
	raw = stat.Entropy(probs)
	return raw, raw / math.Log(float64(len(histogram)))
}

// canonical maps -0 to 0 and every NaN to the same value.
func canonical(v float32) float32 {
	if v == 0 {
		return 0
	}
	if v != v {
		return float32(math.NaN())
	}
	return v
}
