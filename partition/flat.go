package partition

import (
	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// BatchFlat stores a batch of images in one contiguous buffer, in
// (batch, height, width, channels) order, with the labels alongside.
type BatchFlat struct {
	Buf      []float32
	Labels   []int32
	Batch    int
	Height   int
	Width    int
	Channels int
}

// MakeBatchFlat flattens samples into contiguous buffers. All images must
// have the same shape.
func MakeBatchFlat(samples []Sample) (*BatchFlat, error) {
	if len(samples) == 0 {
		return &BatchFlat{}, nil
	}
	shape := samples[0].Image.Shape()
	size := shape.Size()
	b := &BatchFlat{
		Buf:      make([]float32, len(samples)*size),
		Labels:   make([]int32, len(samples)),
		Batch:    len(samples),
		Height:   shape.Height,
		Width:    shape.Width,
		Channels: shape.Channels,
	}
	for i, s := range samples {
		if got := s.Image.Shape(); got != shape || len(s.Image.Pix) != size {
			return nil, errors.Errorf("inconsistent image shapes in batch at example %d: expected %s, got %s",
				i, shape, got)
		}
		copy(b.Buf[i*size:], s.Image.Pix)
		b.Labels[i] = int32(s.Label)
	}
	return b, nil
}

// Shape returns the shape of each image of the batch.
func (b *BatchFlat) Shape() imageops.Shape {
	return imageops.Shape{Height: b.Height, Width: b.Width, Channels: b.Channels}
}

// ToGomlxTensors converts the batch into an images tensor shaped
// [batch, height, width, channels] and a labels tensor shaped [batch].
func (b *BatchFlat) ToGomlxTensors() (images, labels *tensors.Tensor, err error) {
	if b.Batch == 0 {
		return nil, nil, errors.New("cannot convert an empty batch to tensors")
	}
	images = tensors.FromFlatDataAndDimensions(b.Buf, b.Batch, b.Height, b.Width, b.Channels)
	labels = tensors.FromFlatDataAndDimensions(b.Labels, b.Batch)
	return images, labels, nil
}
