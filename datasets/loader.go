package datasets

import (
	"github.com/Noofbiz/ppmlDatasets/partition"
)

// Loader provides the raw partitions of a dataset. Partitions it cannot
// provide are simply left out of the returned map.
//
// Loaded partitions must be unbatched, with images holding raw intensities
// in [0, 255].
type Loader interface {
	Load(cfg Config) (Partitions, error)
}

// LoaderFunc adapts a function into a Loader.
type LoaderFunc func(cfg Config) (Partitions, error)

// Load implements Loader.
func (f LoaderFunc) Load(cfg Config) (Partitions, error) { return f(cfg) }

// Catalog is a source of named datasets. dir, when not empty, is the
// directory the dataset is stored in.
type Catalog interface {
	Lookup(name, dir string) (Partitions, error)
}

// FilterFunc selects the samples kept when loading.
type FilterFunc func(partition.Sample) bool

// KeepLabels returns a FilterFunc keeping only samples with one of the given labels.
func KeepLabels(labels ...int) FilterFunc {
	keep := make(map[int]bool, len(labels))
	for _, l := range labels {
		keep[l] = true
	}
	return func(s partition.Sample) bool { return keep[s.Label] }
}
