package datasets

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CSVLoader loads partitions from Kaggle style pixel CSV files: a header
// followed by one row per image, with a label column and one column per
// pixel value in HWC order (e.g. "label,pixel0,pixel1,...").
//
// Files are only read when a partition is traversed. Rows are counted up
// front so the partitions carry an exact cardinality.
type CSVLoader struct {
	// Glob patterns of the files of each partition. Empty patterns are skipped.
	Train, Validation, Test string

	// LabelColumn is the name of the label column, "label" by default.
	LabelColumn string

	// Shape of the images in the files. Defaults to Config.DatasetImageShape.
	Shape imageops.Shape
}

var _ Loader = CSVLoader{}

// Load implements Loader.
func (l CSVLoader) Load(cfg Config) (Partitions, error) {
	shape := l.Shape
	if shape.IsZero() {
		shape = cfg.DatasetImageShape
	}
	if shape.Size() <= 0 {
		return nil, invalidConfig("DatasetImageShape", "csv loader needs the shape of the stored images")
	}
	labelCol := l.LabelColumn
	if labelCol == "" {
		labelCol = "label"
	}

	parts := make(Partitions)
	for _, src := range []struct {
		kind    Kind
		pattern string
	}{{Train, l.Train}, {Validation, l.Validation}, {Test, l.Test}} {
		if src.pattern == "" {
			continue
		}
		p, err := newCSVPartition(src.kind.String(), src.pattern, labelCol, shape)
		if err != nil {
			return nil, err
		}
		parts[src.kind] = p
	}
	return parts, nil
}

// csvSource is the set of files backing one partition.
type csvSource struct {
	paths    []string
	labelCol string
	shape    imageops.Shape
}

func newCSVPartition(name, pattern, labelCol string, shape imageops.Shape) (*partition.Partition, error) {
	paths, err := globCSV(pattern)
	if err != nil {
		return nil, err
	}
	src := &csvSource{paths: paths, labelCol: labelCol, shape: shape}
	rows, err := src.rows()
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("csv %s: %d rows in %d files matching %s", name, rows, len(paths), pattern)
	return partition.New(name, partition.Cardinality(rows), src.open), nil
}

// rows counts the records of all files, headers excluded, without parsing them.
func (src *csvSource) rows() (int, error) {
	total := 0
	for _, path := range src.paths {
		file, err := os.Open(path)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to open CSV %s", path)
		}
		reader := csv.NewReader(file)
		reader.ReuseRecord = true
		n := -1
		for {
			_, err = reader.Read()
			if err != nil {
				break
			}
			n++
		}
		_ = file.Close()
		if err != io.EOF {
			return 0, errors.Wrapf(err, "failed to count rows in %s", path)
		}
		if n < 0 {
			return 0, errors.Errorf("%s has no header", path)
		}
		total += n
	}
	return total, nil
}

func (src *csvSource) open() partition.Iterator {
	return &csvIterator{src: src}
}

// csvIterator streams the rows of all files in order.
type csvIterator struct {
	src      *csvSource
	fileIdx  int
	file     *os.File
	reader   *csv.Reader
	labelIdx int
	pixelIdx []int
	row      int
}

func (it *csvIterator) Next() (partition.Element, error) {
	for {
		if it.reader == nil {
			if it.fileIdx >= len(it.src.paths) {
				return partition.Element{}, io.EOF
			}
			if err := it.openFile(it.src.paths[it.fileIdx]); err != nil {
				return partition.Element{}, err
			}
		}
		record, err := it.reader.Read()
		if err == io.EOF {
			it.closeFile()
			it.fileIdx++
			continue
		}
		path := it.src.paths[it.fileIdx]
		if err != nil {
			return partition.Element{}, errors.Wrapf(err, "failed to read %s", path)
		}
		it.row++
		sample, err := it.parse(record)
		if err != nil {
			return partition.Element{}, errors.WithMessagef(err, "%s row %d", path, it.row)
		}
		return partition.Element{Samples: []partition.Sample{sample}}, nil
	}
}

// openFile opens path and maps its header into column indices.
func (it *csvIterator) openFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open CSV %s", path)
	}
	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		_ = file.Close()
		return errors.Wrapf(err, "failed to read header of %s", path)
	}
	it.labelIdx = -1
	it.pixelIdx = it.pixelIdx[:0]
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), it.src.labelCol) {
			it.labelIdx = i
			continue
		}
		it.pixelIdx = append(it.pixelIdx, i)
	}
	if it.labelIdx < 0 {
		_ = file.Close()
		return errors.Errorf("required column %q not found in %s", it.src.labelCol, path)
	}
	if len(it.pixelIdx) != it.src.shape.Size() {
		_ = file.Close()
		return errors.Errorf("%s has %d pixel columns, image shape %s needs %d",
			path, len(it.pixelIdx), it.src.shape, it.src.shape.Size())
	}
	it.file, it.reader, it.row = file, reader, 0
	return nil
}

func (it *csvIterator) parse(record []string) (partition.Sample, error) {
	label, err := strconv.Atoi(strings.TrimSpace(record[it.labelIdx]))
	if err != nil {
		return partition.Sample{}, errors.Wrapf(err, "failed to parse column %q", it.src.labelCol)
	}
	pix := make([]float32, len(it.pixelIdx))
	for i, col := range it.pixelIdx {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 32)
		if err != nil {
			return partition.Sample{}, errors.Wrapf(err, "failed to parse column %d", col)
		}
		pix[i] = float32(v)
	}
	img, err := imageops.FromPixels(it.src.shape, pix)
	if err != nil {
		return partition.Sample{}, err
	}
	return partition.Sample{Image: img, Label: label}, nil
}

func (it *csvIterator) closeFile() {
	if it.file != nil {
		_ = it.file.Close()
	}
	it.file, it.reader = nil, nil
}

func (it *csvIterator) Close() {
	it.closeFile()
	it.fileIdx = len(it.src.paths)
}
