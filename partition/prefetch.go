package partition

import (
	"io"
	"sync"
)

// Prefetch reads up to buffer elements ahead of the consumer in a background
// goroutine. The goroutine is stopped when the iterator reaches its end or is closed.
func (p *Partition) Prefetch(buffer int) *Partition {
	if buffer <= 0 {
		buffer = 1
	}
	c := p.derive()
	c.open = func(epoch int) Iterator {
		it := &prefetchIterator{
			results: make(chan prefetched, buffer),
			stop:    make(chan struct{}),
		}
		go it.produce(p.open(epoch))
		return it
	}
	return c
}

type prefetched struct {
	el  Element
	err error
}

type prefetchIterator struct {
	results chan prefetched
	stop    chan struct{}
	once    sync.Once
	done    bool
}

func (it *prefetchIterator) produce(src Iterator) {
	defer close(it.results)
	defer src.Close()
	for {
		el, err := src.Next()
		select {
		case it.results <- prefetched{el: el, err: err}:
		case <-it.stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (it *prefetchIterator) Next() (Element, error) {
	if it.done {
		return Element{}, io.EOF
	}
	r, ok := <-it.results
	if !ok {
		it.done = true
		return Element{}, io.EOF
	}
	if r.err != nil {
		it.done = true
	}
	return r.el, r.err
}

func (it *prefetchIterator) Close() {
	it.once.Do(func() { close(it.stop) })
}
