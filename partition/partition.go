// Package partition implements the lazy partition runtime used by the
// dataset preparation layer.
//
// A Partition is a named, ordered sequence of elements that is only evaluated
// when traversed. Each element is a chunk of labeled samples: a single sample
// for unbatched partitions, up to the batch size for batched ones. Stages such
// as Map, Shuffle or Batch never modify their input, they return a new
// Partition wrapping it, so a Partition can be reused and traversed many
// times.
//
// Partitions carry an explicit cardinality tag for elements and samples.
// Stages that cannot know the resulting count (Filter, for instance) mark it
// as Unknown, and it is only restored by an explicit Recount.
package partition

import (
	"fmt"
	"io"
	"strconv"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownCardinality is returned by operations that need the size of a
	// partition whose cardinality tag is Unknown.
	ErrUnknownCardinality = errors.New("partition cardinality is unknown")

	// ErrInfinite is returned by operations that would traverse an infinite partition to its end.
	ErrInfinite = errors.New("partition is infinite")
)

// Cardinality is the number of elements (or samples) of a partition.
// Non-negative values are exact counts.
type Cardinality int64

const (
	// Infinite marks partitions that never reach their end, e.g. repeated forever.
	Infinite Cardinality = -1
	// Unknown marks partitions whose size can only be learned by traversing them.
	Unknown Cardinality = -2
)

// Known reports whether c is an exact count.
func (c Cardinality) Known() bool { return c >= 0 }

// String implements fmt.Stringer.
func (c Cardinality) String() string {
	switch c {
	case Infinite:
		return "infinite"
	case Unknown:
		return "unknown"
	}
	return strconv.FormatInt(int64(c), 10)
}

// Sample is a single labeled image.
type Sample struct {
	Image imageops.Image
	Label int
}

// Element is the unit yielded by a partition: one sample when unbatched, a
// batch of samples otherwise.
type Element struct {
	Samples []Sample
}

// Iterator walks over a partition once. Next returns io.EOF after the last
// element. Close must be called when the traversal is abandoned early, and is
// safe to call more than once.
type Iterator interface {
	Next() (Element, error)
	Close()
}

// Partition is a lazily evaluated sequence of elements. See package documentation.
type Partition struct {
	name     string
	elements Cardinality
	samples  Cardinality
	batched  bool

	// open starts a traversal. epoch is the repetition index when the
	// partition is consumed by Repeat, 0 otherwise.
	open func(epoch int) Iterator
}

// OpenFunc starts a new traversal of a source.
type OpenFunc func() Iterator

// New creates an unbatched partition from a source. elements is the number of
// samples the source yields, or Unknown.
func New(name string, elements Cardinality, open OpenFunc) *Partition {
	return &Partition{
		name:     name,
		elements: elements,
		samples:  elements,
		open:     func(int) Iterator { return open() },
	}
}

// FromSamples creates an unbatched partition over an in-memory slice. The
// slice is not copied and must not be modified afterwards.
func FromSamples(name string, samples []Sample) *Partition {
	return New(name, Cardinality(len(samples)), func() Iterator {
		return &sliceIterator{samples: samples}
	})
}

type sliceIterator struct {
	samples []Sample
	pos     int
}

func (it *sliceIterator) Next() (Element, error) {
	if it.pos >= len(it.samples) {
		return Element{}, io.EOF
	}
	s := it.samples[it.pos]
	it.pos++
	return Element{Samples: []Sample{s}}, nil
}

func (it *sliceIterator) Close() {}

// FuncIterator adapts a function into an Iterator. next must return io.EOF at the end.
type FuncIterator struct {
	NextFn  func() (Element, error)
	CloseFn func()
}

// Next implements Iterator.
func (it *FuncIterator) Next() (Element, error) { return it.NextFn() }

// Close implements Iterator.
func (it *FuncIterator) Close() {
	if it.CloseFn != nil {
		it.CloseFn()
		it.CloseFn = nil
	}
}

// Name returns the partition name, used in logs and errors.
func (p *Partition) Name() string { return p.name }

// Cardinality returns the element cardinality tag.
func (p *Partition) Cardinality() Cardinality { return p.elements }

// NumSamples returns the sample cardinality tag.
func (p *Partition) NumSamples() Cardinality { return p.samples }

// Batched reports whether the elements are batches.
func (p *Partition) Batched() bool { return p.batched }

// Open starts a new traversal from the beginning.
func (p *Partition) Open() Iterator { return p.open(0) }

// String implements fmt.Stringer.
func (p *Partition) String() string {
	return fmt.Sprintf("Partition(%q, elements=%s, samples=%s, batched=%v)", p.name, p.elements, p.samples, p.batched)
}

// derive returns a shallow copy of p, to be modified by a stage.
func (p *Partition) derive() *Partition {
	c := *p
	return &c
}

// WithName returns the same partition under another name.
func (p *Partition) WithName(name string) *Partition {
	c := p.derive()
	c.name = name
	return c
}

// WithCardinality returns the same partition with the given cardinality tags.
// The caller is responsible for their correctness.
func (p *Partition) WithCardinality(elements, samples Cardinality) *Partition {
	c := p.derive()
	c.elements = elements
	c.samples = samples
	return c
}

// Recount traverses the partition and returns it tagged with its exact
// element and sample counts.
func (p *Partition) Recount() (*Partition, error) {
	elements, samples, err := Count(p)
	if err != nil {
		return nil, errors.WithMessagef(err, "recounting partition %q", p.name)
	}
	return p.WithCardinality(Cardinality(elements), Cardinality(samples)), nil
}

// ForEach traverses p calling fn for every element. It stops at the first
// error, returned as is.
func ForEach(p *Partition, fn func(Element) error) error {
	if p.elements == Infinite {
		return errors.Wrapf(ErrInfinite, "traversing partition %q", p.name)
	}
	it := p.Open()
	defer it.Close()
	for {
		el, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(el); err != nil {
			return err
		}
	}
}

// Count traverses p and returns its number of elements and samples.
func Count(p *Partition) (elements, samples int64, err error) {
	err = ForEach(p, func(el Element) error {
		elements++
		samples += int64(len(el.Samples))
		return nil
	})
	return
}

// Collect traverses p and returns all its samples, unbatched, in order.
func Collect(p *Partition) ([]Sample, error) {
	var samples []Sample
	if p.samples.Known() {
		samples = make([]Sample, 0, p.samples)
	}
	err := ForEach(p, func(el Element) error {
		samples = append(samples, el.Samples...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}
