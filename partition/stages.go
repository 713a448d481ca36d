package partition

import (
	"io"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Position identifies a sample within a traversal: the epoch (repetition
// index) and the position of the sample within that epoch.
type Position struct {
	Epoch int
	Index int64
}

// SampleFunc transforms one sample. It must not modify its input, and must be
// safe for concurrent use.
type SampleFunc func(pos Position, s Sample) (Sample, error)

// Map applies fn to every sample of p. Samples are processed in parallel but
// yielded in their original order, with batches kept intact.
func (p *Partition) Map(fn SampleFunc) *Partition {
	c := p.derive()
	c.open = func(epoch int) Iterator {
		window := runtime.GOMAXPROCS(0)
		return &mapIterator{src: p.open(epoch), fn: fn, epoch: epoch, window: window}
	}
	return c
}

type mapIterator struct {
	src     Iterator
	fn      SampleFunc
	epoch   int
	index   int64
	window  int
	pending []Element
	done    bool
	err     error
}

func (it *mapIterator) Next() (Element, error) {
	if it.err != nil {
		return Element{}, it.err
	}
	if len(it.pending) == 0 {
		if it.done {
			return Element{}, io.EOF
		}
		if err := it.fill(); err != nil {
			it.err = err
			return Element{}, err
		}
		if len(it.pending) == 0 {
			return Element{}, io.EOF
		}
	}
	el := it.pending[0]
	it.pending = it.pending[1:]
	return el, nil
}

// fill reads up to window elements from the source and maps all their
// samples concurrently.
func (it *mapIterator) fill() error {
	var in []Element
	for len(in) < it.window {
		el, err := it.src.Next()
		if err == io.EOF {
			it.done = true
			break
		}
		if err != nil {
			return err
		}
		in = append(in, el)
	}
	out := make([]Element, len(in))
	var g errgroup.Group
	g.SetLimit(it.window)
	for i, el := range in {
		samples := make([]Sample, len(el.Samples))
		out[i] = Element{Samples: samples}
		for j, s := range el.Samples {
			pos := Position{Epoch: it.epoch, Index: it.index}
			it.index++
			g.Go(func() error {
				mapped, err := it.fn(pos, s)
				if err != nil {
					return err
				}
				samples[j] = mapped
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	it.pending = out
	return nil
}

func (it *mapIterator) Close() { it.src.Close() }

// Filter keeps the samples for which keep returns true. Batches left empty
// are dropped. The cardinality of the result is Unknown until Recount.
func (p *Partition) Filter(keep func(Sample) bool) *Partition {
	c := p.derive()
	c.elements, c.samples = Unknown, Unknown
	c.open = func(epoch int) Iterator {
		src := p.open(epoch)
		return &FuncIterator{
			NextFn: func() (Element, error) {
				for {
					el, err := src.Next()
					if err != nil {
						return Element{}, err
					}
					var kept []Sample
					for _, s := range el.Samples {
						if keep(s) {
							kept = append(kept, s)
						}
					}
					if len(kept) > 0 {
						return Element{Samples: kept}, nil
					}
				}
			},
			CloseFn: src.Close,
		}
	}
	return c
}

// Inspect calls fn for every element as it is yielded, without changing it.
func (p *Partition) Inspect(fn func(Element)) *Partition {
	c := p.derive()
	c.open = func(epoch int) Iterator {
		src := p.open(epoch)
		return &FuncIterator{
			NextFn: func() (Element, error) {
				el, err := src.Next()
				if err == nil {
					fn(el)
				}
				return el, err
			},
			CloseFn: src.Close,
		}
	}
	return c
}

func addCardinality(a, b Cardinality) Cardinality {
	switch {
	case a == Infinite || b == Infinite:
		return Infinite
	case !a.Known() || !b.Known():
		return Unknown
	}
	return a + b
}

// Concatenate returns the elements of p followed by those of others, in order.
// The result is named after p.
func (p *Partition) Concatenate(others ...*Partition) *Partition {
	parts := append([]*Partition{p}, others...)
	c := p.derive()
	for _, o := range others {
		c.elements = addCardinality(c.elements, o.elements)
		c.samples = addCardinality(c.samples, o.samples)
		c.batched = c.batched || o.batched
	}
	c.open = func(epoch int) Iterator {
		idx := 0
		var cur Iterator
		return &FuncIterator{
			NextFn: func() (Element, error) {
				for idx < len(parts) {
					if cur == nil {
						cur = parts[idx].open(epoch)
					}
					el, err := cur.Next()
					if err != io.EOF {
						return el, err
					}
					cur.Close()
					cur = nil
					idx++
				}
				return Element{}, io.EOF
			},
			CloseFn: func() {
				if cur != nil {
					cur.Close()
				}
			},
		}
	}
	return c
}

// Take keeps the first n elements of p.
func (p *Partition) Take(n int64) *Partition {
	if n < 0 {
		n = 0
	}
	c := p.derive()
	switch {
	case p.elements == Infinite:
		c.elements = Cardinality(n)
	case p.elements.Known():
		c.elements = min(p.elements, Cardinality(n))
	}
	c.samples = Unknown
	if !p.batched {
		c.samples = c.elements
	} else if c.elements == p.elements {
		c.samples = p.samples
	}
	c.open = func(epoch int) Iterator {
		src := p.open(epoch)
		var taken int64
		return &FuncIterator{
			NextFn: func() (Element, error) {
				if taken >= n {
					return Element{}, io.EOF
				}
				el, err := src.Next()
				if err == nil {
					taken++
				}
				return el, err
			},
			CloseFn: src.Close,
		}
	}
	return c
}

// Skip drops the first n elements of p.
func (p *Partition) Skip(n int64) *Partition {
	if n < 0 {
		n = 0
	}
	c := p.derive()
	if p.elements.Known() {
		c.elements = max(p.elements-Cardinality(n), 0)
	}
	c.samples = Unknown
	if !p.batched {
		c.samples = c.elements
	} else if n == 0 {
		c.samples = p.samples
	}
	c.open = func(epoch int) Iterator {
		src := p.open(epoch)
		skipped := int64(0)
		return &FuncIterator{
			NextFn: func() (Element, error) {
				for skipped < n {
					if _, err := src.Next(); err != nil {
						return Element{}, err
					}
					skipped++
				}
				return src.Next()
			},
			CloseFn: src.Close,
		}
	}
	return c
}

// Batch groups the samples of p into batches of size samples. The final batch
// may be shorter. Batching an already batched partition regroups its samples.
func (p *Partition) Batch(size int) (*Partition, error) {
	if size <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", size)
	}
	c := p.derive()
	c.batched = true
	switch {
	case p.samples.Known():
		c.elements = (p.samples + Cardinality(size) - 1) / Cardinality(size)
	case p.samples == Infinite:
		c.elements = Infinite
	default:
		c.elements = Unknown
	}
	c.open = func(epoch int) Iterator {
		src := p.open(epoch)
		var pending []Sample
		done := false
		return &FuncIterator{
			NextFn: func() (Element, error) {
				for !done && len(pending) < size {
					el, err := src.Next()
					if err == io.EOF {
						done = true
						break
					}
					if err != nil {
						return Element{}, err
					}
					pending = append(pending, el.Samples...)
				}
				if len(pending) == 0 {
					return Element{}, io.EOF
				}
				n := min(size, len(pending))
				batch := make([]Sample, n)
				copy(batch, pending[:n])
				pending = pending[n:]
				return Element{Samples: batch}, nil
			},
			CloseFn: src.Close,
		}
	}
	return c, nil
}

// Repeat traverses p count times in a row, each pass with an increasing epoch
// so shuffling and random augmentations differ between passes. A negative
// count repeats forever.
func (p *Partition) Repeat(count int) *Partition {
	c := p.derive()
	if count < 0 {
		c.elements, c.samples = Infinite, Infinite
		if p.elements == 0 {
			c.elements, c.samples = 0, 0
		}
	} else {
		c.elements = mulCardinality(p.elements, count)
		c.samples = mulCardinality(p.samples, count)
	}
	c.open = func(int) Iterator {
		epoch := 0
		cur := p.open(epoch)
		passYielded := false
		return &FuncIterator{
			NextFn: func() (Element, error) {
				for count < 0 || epoch < count {
					el, err := cur.Next()
					if err != io.EOF {
						passYielded = passYielded || err == nil
						return el, err
					}
					cur.Close()
					if count < 0 && !passYielded {
						// An empty source repeated forever is still empty.
						break
					}
					epoch++
					passYielded = false
					if count < 0 || epoch < count {
						cur = p.open(epoch)
					}
				}
				return Element{}, io.EOF
			},
			CloseFn: func() { cur.Close() },
		}
	}
	return c
}

func mulCardinality(c Cardinality, count int) Cardinality {
	if !c.Known() {
		return c
	}
	return c * Cardinality(count)
}
