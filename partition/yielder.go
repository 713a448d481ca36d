package partition

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
)

// Yielder exposes a partition as a gomlx train.Dataset. Each element becomes
// one yield, with one images tensor as input and one labels tensor as label,
// so the partition should be batched beforehand.
type Yielder struct {
	p  *Partition
	it Iterator
}

var _ train.Dataset = (*Yielder)(nil)

// NewYielder creates a Yielder over p.
func NewYielder(p *Partition) *Yielder {
	return &Yielder{p: p}
}

// Name implements train.Dataset.
func (y *Yielder) Name() string { return y.p.Name() }

// Reset implements train.Dataset. The next Yield starts a new traversal.
func (y *Yielder) Reset() {
	if y.it != nil {
		y.it.Close()
		y.it = nil
	}
}

// Yield implements train.Dataset. It returns io.EOF at the end of the partition.
func (y *Yielder) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if y.it == nil {
		y.it = y.p.Open()
	}
	el, err := y.it.Next()
	if err != nil {
		if err == io.EOF {
			y.Reset()
		}
		return nil, nil, nil, err
	}
	flat, err := MakeBatchFlat(el.Samples)
	if err != nil {
		return nil, nil, nil, err
	}
	images, labelsT, err := flat.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{images}, []*tensors.Tensor{labelsT}, nil
}
