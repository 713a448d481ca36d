// dsinfo loads an image classification dataset, optionally merges, resplits
// and prepares it, and prints its description: partition sizes, class
// distribution and weights, class imbalance and data entropy.
//
// Examples:
//
//	dsinfo -synthetic=700,300 -height=32 -width=32 -channels=3 -rgb
//	dsinfo -name=pets -path=./data -catalog -split=0.7,0.2,0.1 -json
//	dsinfo -name=mnist -csv-train='mnist/train*.csv' -dataset-shape=28,28,1 -prepare -batch=64 -peek=3
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Noofbiz/ppmlDatasets/datasets"
	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	mldatasets "github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagName    = flag.String("name", "synthetic", "Name of the dataset.")
	flagPath    = flag.String("path", "", "Directory holding the dataset, read as <path>/<name> by the catalog.")
	flagCatalog = flag.Bool("catalog", false, "Load the dataset from the directory catalog.")
	flagCache   = flag.String("cache", "", "Directory for file caches of the prepared partitions. In memory if empty.")

	flagCSVTrain = flag.String("csv-train", "", "Glob pattern of the train CSV files.")
	flagCSVVal   = flag.String("csv-val", "", "Glob pattern of the validation CSV files.")
	flagCSVTest  = flag.String("csv-test", "", "Glob pattern of the test CSV files.")

	flagSynthetic = flag.String("synthetic", "", "Comma separated per class sample counts of a synthetic train partition, e.g. 700,300.")

	flagHeight       = flag.Int("height", 32, "Target image height.")
	flagWidth        = flag.Int("width", 32, "Target image width.")
	flagChannels     = flag.Int("channels", 3, "Target image channels.")
	flagDatasetShape = flag.String("dataset-shape", "", "Shape of the stored images as height,width,channels. Required for CSV files.")

	flagBatch      = flag.Int("batch", 32, "Batch size of the prepared partitions, 0 to disable batching.")
	flagRGB        = flag.Bool("rgb", false, "Convert grayscale images to RGB.")
	flagAugment    = flag.Bool("augment", false, "Augment the train partition with the default augmentations.")
	flagShuffle    = flag.Bool("shuffle", true, "Shuffle the train partition.")
	flagSeed       = flag.Uint64("seed", datasets.DefaultSeed, "Random seed.")
	flagCaffe      = flag.Bool("caffe", false, "Apply ResNet50 style (caffe) preprocessing.")
	flagClassNames = flag.String("class-names", "", "Comma separated class names, used to display the classes.")

	flagSplit        = flag.String("split", "", "Resplit into train,val,test fractions, e.g. 0.7,0.2,0.1.")
	flagPercentage   = flag.Int("percentage", 100, "Percentage of the merged data kept by -merge and -split.")
	flagMerge        = flag.Bool("merge", false, "Merge all partitions into train.")
	flagValFromTrain = flag.Float64("val-from-train", 0, "Fraction of train moved into a new validation partition.")

	flagPrepare = flag.Bool("prepare", false, "Prepare the partitions and list them.")
	flagJSON    = flag.Bool("json", false, "Print the dataset info as JSON.")
	flagPeek    = flag.Int("peek", 0, "Yield this many prepared train batches as gomlx tensors and print their shapes.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := buildConfig()
	if err != nil {
		klog.Errorf("%v. See 'dsinfo -help'.", err)
		os.Exit(1)
	}
	s := must.M1(datasets.NewSession(cfg))
	must.M(s.Load(nil))
	if s.Partition(datasets.Train) == nil {
		klog.Errorf("No train partition loaded for %q: use -synthetic, -csv-train or -catalog.", cfg.Name)
		os.Exit(1)
	}

	switch {
	case *flagSplit != "":
		split, err := parseSplit(*flagSplit)
		if err != nil {
			klog.Fatalf("Invalid -split=%q: %v", *flagSplit, err)
		}
		must.M(s.Resplit(split, *flagPercentage))
	case *flagMerge:
		_ = must.M1(s.MergeAll(*flagPercentage))
	}
	if *flagValFromTrain > 0 {
		trainCount, valCount := must.M2(s.SplitValFromTrain(*flagValFromTrain))
		klog.Infof("Split validation from train: train=%d val=%d", trainCount, valCount)
	}

	restore := trackProgress(s)
	info := must.M1(s.BuildInfo())
	restore()
	if *flagJSON {
		encoded := must.M1(json.MarshalIndent(info, "", "  "))
		fmt.Println(string(encoded))
	} else {
		fmt.Println(info)
	}

	if *flagPrepare || *flagPeek > 0 {
		must.M(s.PrepareDatasets())
		for _, kind := range datasets.Kinds {
			if p := s.Partition(kind); p != nil {
				fmt.Println(p)
			}
		}
	}
	if *flagPeek > 0 {
		peek(s.Partition(datasets.Train), *flagPeek)
	}
}

func buildConfig() (datasets.Config, error) {
	cfg := datasets.Config{
		Name:         *flagName,
		Path:         *flagPath,
		ImageShape:   imageops.Shape{Height: *flagHeight, Width: *flagWidth, Channels: *flagChannels},
		BatchSize:    *flagBatch,
		ConvertToRGB: *flagRGB,
		AugmentTrain: *flagAugment,
		Shuffle:      *flagShuffle,
		FromCatalog:  *flagCatalog,
		Seed:         *flagSeed,
	}
	if *flagAugment {
		cfg = cfg.WithAugmentation(datasets.DefaultAugmentation())
	}
	if *flagCaffe {
		cfg.Preprocess = imageops.CaffePreprocess
	}
	if *flagClassNames != "" {
		cfg = cfg.WithClassNames(strings.Split(*flagClassNames, ","))
	}
	if *flagCache != "" {
		cfg.Cache = partition.FileCache(*flagCache)
	}
	if *flagDatasetShape != "" {
		dims, err := parseInts(*flagDatasetShape)
		if err != nil || len(dims) != 3 {
			return cfg, errors.Errorf("invalid -dataset-shape=%q, expected height,width,channels", *flagDatasetShape)
		}
		cfg.DatasetImageShape = imageops.Shape{Height: dims[0], Width: dims[1], Channels: dims[2]}
	}

	switch {
	case *flagSynthetic != "":
		counts, err := parseInts(*flagSynthetic)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid -synthetic=%q", *flagSynthetic)
		}
		cfg.Loader = datasets.SyntheticLoader{Train: counts}
	case *flagCSVTrain != "" || *flagCSVVal != "" || *flagCSVTest != "":
		cfg.Loader = datasets.CSVLoader{Train: *flagCSVTrain, Validation: *flagCSVVal, Test: *flagCSVTest}
	}
	return cfg, nil
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	values := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseSplit(s string) ([3]float64, error) {
	var split [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return split, errors.Errorf("expected 3 fractions, got %d", len(parts))
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return split, err
		}
		split[i] = v
	}
	return split, nil
}

// trackProgress wraps the train partition so the traversals done by the
// statistics report their progress. The returned function puts the unwrapped
// partition back.
func trackProgress(s *datasets.Session) (restore func()) {
	train := s.Partition(datasets.Train)
	total := train.NumSamples()
	if !total.Known() {
		return func() {}
	}
	var bar *progressbar.ProgressBar
	seen := int64(0)
	s.SetPartition(datasets.Train, train.Inspect(func(el partition.Element) {
		if bar == nil || seen >= int64(total) {
			bar = progressbar.Default(int64(total), "reading "+train.Name())
			seen = 0
		}
		seen += int64(len(el.Samples))
		_ = bar.Add(len(el.Samples))
		if seen >= int64(total) {
			_ = bar.Finish()
		}
	}))
	return func() { s.SetPartition(datasets.Train, train) }
}

// peek yields n batches through gomlx's dataset wrappers and prints their shapes.
func peek(train *partition.Partition, n int) {
	ds := mldatasets.Take(partition.NewYielder(train), n)
	fmt.Printf("Peeking into %s:\n", ds.Name())
	for i := 0; ; i++ {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		must.M(err)
		fmt.Printf("  batch #%d: images=%s labels=%s\n", i, inputs[0].Shape(), labels[0].Shape())
	}
}
