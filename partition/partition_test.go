package partition

import (
	"io"
	"os"
	"testing"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSamples builds n 2x2 single channel samples whose values and label are
// derived from their index.
func makeSamples(n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		img := imageops.NewImage(2, 2, 1)
		for j := range img.Pix {
			img.Pix[j] = float32(i*10 + j)
		}
		samples[i] = Sample{Image: img, Label: i % 3}
	}
	return samples
}

func labelsOf(t *testing.T, p *Partition) []int {
	t.Helper()
	samples, err := Collect(p)
	require.NoError(t, err)
	labels := make([]int, len(samples))
	for i, s := range samples {
		labels[i] = int(s.Image.Pix[0]) / 10
	}
	return labels
}

func TestFromSamples(t *testing.T) {
	p := FromSamples("train", makeSamples(5))
	assert.Equal(t, "train", p.Name())
	assert.Equal(t, Cardinality(5), p.Cardinality())
	assert.Equal(t, Cardinality(5), p.NumSamples())
	assert.False(t, p.Batched())

	// Traversable more than once.
	for range 2 {
		assert.Equal(t, []int{0, 1, 2, 3, 4}, labelsOf(t, p))
	}
}

func TestCardinalityString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "infinite", Infinite.String())
	assert.Equal(t, "12", Cardinality(12).String())
	assert.False(t, Unknown.Known())
	assert.True(t, Cardinality(0).Known())
}

func TestFilterAndRecount(t *testing.T) {
	p := FromSamples("train", makeSamples(10)).Filter(func(s Sample) bool { return s.Label == 0 })
	assert.Equal(t, Unknown, p.Cardinality())
	assert.Equal(t, Unknown, p.NumSamples())

	p, err := p.Recount()
	require.NoError(t, err)
	assert.Equal(t, Cardinality(4), p.Cardinality())
	assert.Equal(t, Cardinality(4), p.NumSamples())
	assert.Equal(t, []int{0, 3, 6, 9}, labelsOf(t, p))
}

func TestMapKeepsOrder(t *testing.T) {
	var positions []int64
	p := FromSamples("train", makeSamples(50)).Map(func(pos Position, s Sample) (Sample, error) {
		out := s
		out.Image = imageops.Rescale(s.Image, 2)
		out.Label = int(pos.Index)
		return out, nil
	}).Inspect(func(el Element) {
		positions = append(positions, int64(el.Samples[0].Label))
	})
	samples, err := Collect(p)
	require.NoError(t, err)
	require.Len(t, samples, 50)
	for i, s := range samples {
		assert.Equal(t, float32(i*10*2), s.Image.Pix[0])
		assert.Equal(t, int64(i), positions[i])
	}
}

func TestMapError(t *testing.T) {
	boom := errors.New("boom")
	p := FromSamples("train", makeSamples(10)).Map(func(pos Position, s Sample) (Sample, error) {
		if pos.Index == 7 {
			return Sample{}, boom
		}
		return s, nil
	})
	_, err := Collect(p)
	require.ErrorIs(t, err, boom)
}

func TestConcatenateTakeSkip(t *testing.T) {
	samples := makeSamples(10)
	a := FromSamples("a", samples[:4])
	b := FromSamples("b", samples[4:])
	all := a.Concatenate(b)
	assert.Equal(t, "a", all.Name())
	assert.Equal(t, Cardinality(10), all.Cardinality())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, labelsOf(t, all))

	head := all.Take(3)
	assert.Equal(t, Cardinality(3), head.Cardinality())
	assert.Equal(t, []int{0, 1, 2}, labelsOf(t, head))

	tail := all.Skip(3)
	assert.Equal(t, Cardinality(7), tail.Cardinality())
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, labelsOf(t, tail))

	assert.Equal(t, Cardinality(0), all.Skip(20).Cardinality())
	assert.Empty(t, labelsOf(t, all.Skip(20)))

	unknown := all.Filter(func(Sample) bool { return true })
	assert.Equal(t, Unknown, a.Concatenate(unknown).Cardinality())
}

func TestBatch(t *testing.T) {
	p, err := FromSamples("train", makeSamples(10)).Batch(4)
	require.NoError(t, err)
	assert.True(t, p.Batched())
	assert.Equal(t, Cardinality(3), p.Cardinality())
	assert.Equal(t, Cardinality(10), p.NumSamples())

	var sizes []int
	require.NoError(t, ForEach(p, func(el Element) error {
		sizes = append(sizes, len(el.Samples))
		return nil
	}))
	assert.Equal(t, []int{4, 4, 2}, sizes)

	elements, samples, err := Count(p)
	require.NoError(t, err)
	assert.Equal(t, int64(3), elements)
	assert.Equal(t, int64(10), samples)

	_, err = p.Batch(0)
	require.Error(t, err)
}

func TestShuffleDeterministic(t *testing.T) {
	src := FromSamples("train", makeSamples(100))
	p1, err := src.Shuffle(100, 42)
	require.NoError(t, err)
	p2, err := src.Shuffle(100, 42)
	require.NoError(t, err)
	p3, err := src.Shuffle(100, 7)
	require.NoError(t, err)

	order := labelsOf(t, p1)
	assert.Equal(t, order, labelsOf(t, p2))
	assert.Equal(t, order, labelsOf(t, p1), "same partition traversed twice")
	assert.NotEqual(t, order, labelsOf(t, p3))
	assert.ElementsMatch(t, labelsOf(t, src), order)
	assert.NotEqual(t, labelsOf(t, src), order)

	_, err = src.Shuffle(0, 1)
	require.Error(t, err)
}

func TestRepeat(t *testing.T) {
	src := FromSamples("train", makeSamples(3))
	p := src.Repeat(2)
	assert.Equal(t, Cardinality(6), p.Cardinality())
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, labelsOf(t, p))

	forever := src.Repeat(-1)
	assert.Equal(t, Infinite, forever.Cardinality())
	_, err := Collect(forever)
	require.ErrorIs(t, err, ErrInfinite)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, labelsOf(t, forever.Take(7)))

	empty := FromSamples("empty", nil).Repeat(-1)
	it := empty.Open()
	defer it.Close()
	_, err = it.Next()
	require.Equal(t, io.EOF, err)
}

func TestShuffleDiffersBetweenEpochs(t *testing.T) {
	src := FromSamples("train", makeSamples(20))
	shuffled, err := src.Shuffle(20, 3)
	require.NoError(t, err)
	order := labelsOf(t, shuffled.Repeat(2))
	require.Len(t, order, 40)
	assert.NotEqual(t, order[:20], order[20:])
	assert.ElementsMatch(t, order[:20], order[20:])
}

func TestPrefetch(t *testing.T) {
	p := FromSamples("train", makeSamples(25)).Prefetch(4)
	assert.Equal(t, Cardinality(25), p.Cardinality())
	labels := labelsOf(t, p)
	require.Len(t, labels, 25)
	for i, l := range labels {
		assert.Equal(t, i, l)
	}

	// Abandoning a traversal must not block.
	it := p.Open()
	_, err := it.Next()
	require.NoError(t, err)
	it.Close()
	it.Close()
}

func TestMemoryCache(t *testing.T) {
	calls := 0
	src := FromSamples("train", makeSamples(5)).Map(func(pos Position, s Sample) (Sample, error) {
		return s, nil
	}).Inspect(func(Element) { calls++ })
	p, err := src.Cache(MemoryCache)
	require.NoError(t, err)

	// A partial traversal doesn't fill the cache.
	it := p.Open()
	_, err = it.Next()
	require.NoError(t, err)
	it.Close()

	calls = 0
	assert.Equal(t, []int{0, 1, 2, 3, 4}, labelsOf(t, p))
	assert.Equal(t, 5, calls)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, labelsOf(t, p))
	assert.Equal(t, 5, calls, "second traversal must be replayed from the cache")

	same, err := src.Cache(NoCache)
	require.NoError(t, err)
	assert.Same(t, src, same)
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	src := FromSamples("train", makeSamples(6)).Inspect(func(Element) { calls++ })
	policy := FileCache(dir)
	p, err := src.Cache(policy)
	require.NoError(t, err)

	first, err := Collect(p)
	require.NoError(t, err)
	assert.Equal(t, 6, calls)
	_, err = os.Stat(policy.CachePath("train"))
	require.NoError(t, err)

	second, err := Collect(p)
	require.NoError(t, err)
	assert.Equal(t, 6, calls, "second traversal must read the cache file")
	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Image.Equal(second[i].Image))
		assert.Equal(t, first[i].Label, second[i].Label)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	_, err = src.Cache(CachePolicy{Kind: CacheFile})
	require.Error(t, err)
}

func TestYielder(t *testing.T) {
	p, err := FromSamples("train", makeSamples(5)).Batch(2)
	require.NoError(t, err)
	y := NewYielder(p)
	assert.Equal(t, "train", y.Name())

	var batches []int
	for {
		_, inputs, labels, err := y.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		require.Len(t, labels, 1)
		dims := inputs[0].Shape().Dimensions
		assert.Equal(t, []int{dims[0], 2, 2, 1}, dims)
		assert.Equal(t, []int{dims[0]}, labels[0].Shape().Dimensions)
		batches = append(batches, dims[0])
	}
	assert.Equal(t, []int{2, 2, 1}, batches)

	// After io.EOF the dataset starts over.
	_, inputs, _, err := y.Yield()
	require.NoError(t, err)
	assert.Equal(t, 2, inputs[0].Shape().Dimensions[0])
	y.Reset()
}

func TestMakeBatchFlat(t *testing.T) {
	samples := makeSamples(3)
	flat, err := MakeBatchFlat(samples)
	require.NoError(t, err)
	assert.Equal(t, 3, flat.Batch)
	assert.Equal(t, imageops.Shape{Height: 2, Width: 2, Channels: 1}, flat.Shape())
	assert.Equal(t, []int32{0, 1, 2}, flat.Labels)
	assert.Equal(t, float32(21), flat.Buf[4*2+1])

	samples[1].Image = imageops.NewImage(3, 2, 1)
	_, err = MakeBatchFlat(samples)
	require.Error(t, err)

	empty, err := MakeBatchFlat(nil)
	require.NoError(t, err)
	_, _, err = empty.ToGomlxTensors()
	require.Error(t, err)
}
