package main

// Example command that demonstrates the full preparation flow on a small
// synthetic dataset: loading, resplitting, computing the dataset info,
// preparing the partitions and converting a batch into gomlx tensors.
//
// Usage:
//   go run ./datasets/example

import (
	"fmt"
	"log"

	"github.com/Noofbiz/ppmlDatasets/datasets"
	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
)

func main() {
	cfg := datasets.Config{
		Name:              "synthetic-mnist",
		ImageShape:        imageops.Shape{Height: 32, Width: 32, Channels: 3},
		DatasetImageShape: imageops.Shape{Height: 28, Width: 28, Channels: 1},
		BatchSize:         16,
		ConvertToRGB:      true,
		AugmentTrain:      true,
		Shuffle:           true,
		Augmentation:      datasets.DefaultAugmentation(),
		Loader: datasets.SyntheticLoader{
			Train: []int{420, 180},
			Test:  []int{100, 100},
		},
	}.WithClassNames([]string{"even", "odd"})

	s, err := datasets.NewSession(cfg)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := s.Load(nil); err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}

	// Merge everything and carve a 70/20/10 split out of it.
	if err := s.Resplit([3]float64{0.7, 0.2, 0.1}, 100); err != nil {
		log.Fatalf("failed to resplit: %v", err)
	}

	info, err := s.BuildInfo()
	if err != nil {
		log.Fatalf("failed to build dataset info: %v", err)
	}
	fmt.Println(info)

	if err := s.PrepareDatasets(); err != nil {
		log.Fatalf("failed to prepare datasets: %v", err)
	}
	for _, kind := range datasets.Kinds {
		if p := s.Partition(kind); p != nil {
			fmt.Println(p)
		}
	}

	// Take the first training batch as gomlx tensors.
	y := partition.NewYielder(s.Partition(datasets.Train))
	_, inputs, labels, err := y.Yield()
	if err != nil {
		log.Fatalf("failed to yield a batch: %v", err)
	}
	y.Reset()
	fmt.Printf("Created training tensors: images=%s labels=%s\n", inputs[0].Shape(), labels[0].Shape())
}
