package partition

import (
	"io"
	"math/rand/v2"

	"github.com/pkg/errors"
)

// NewRand returns the generator used for a given seed and epoch. Every stage
// that needs randomness derives its generator from these two values only, so
// traversals are reproducible.
func NewRand(seed uint64, epoch int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(epoch)))
}

// Shuffle randomizes the order of the elements of p using a buffer of the
// given size: the buffer is filled from p and each yielded element is drawn
// uniformly from it. A buffer at least as large as the partition gives a
// uniform permutation.
//
// The order depends only on seed and on the epoch of the traversal.
func (p *Partition) Shuffle(buffer int, seed uint64) (*Partition, error) {
	if buffer <= 0 {
		return nil, errors.Errorf("shuffle buffer must be positive, got %d", buffer)
	}
	c := p.derive()
	c.open = func(epoch int) Iterator {
		return &shuffleIterator{src: p.open(epoch), size: buffer, rng: NewRand(seed, epoch)}
	}
	return c, nil
}

type shuffleIterator struct {
	src  Iterator
	size int
	rng  *rand.Rand
	buf  []Element
	done bool
}

func (it *shuffleIterator) Next() (Element, error) {
	for !it.done && len(it.buf) < it.size {
		el, err := it.src.Next()
		if err == io.EOF {
			it.done = true
			break
		}
		if err != nil {
			return Element{}, err
		}
		it.buf = append(it.buf, el)
	}
	if len(it.buf) == 0 {
		return Element{}, io.EOF
	}
	i := it.rng.IntN(len(it.buf))
	el := it.buf[i]
	last := len(it.buf) - 1
	it.buf[i] = it.buf[last]
	it.buf[last] = Element{}
	it.buf = it.buf[:last]
	return el, nil
}

func (it *shuffleIterator) Close() {
	it.buf = nil
	it.src.Close()
}
