package datasets

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/Noofbiz/ppmlDatasets/partition"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultCatalogRoot is where DirCatalog looks for datasets when no Root is given.
const DefaultCatalogRoot = "data"

// splitDirs maps the partition kinds to the sub-directories of a dataset.
var splitDirs = []struct {
	kind Kind
	dir  string
}{
	{Train, "train"},
	{Validation, "val"},
	{Test, "test"},
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff"}

// DirCatalog is a Catalog reading datasets laid out on disk as
//
//	<dir>/{train,val,test}/<class name>/<image files>
//
// Class directories are sorted by name and labeled by their index. The
// classes are the union over all splits, so labels agree between partitions.
// Images are only decoded when a partition is traversed.
type DirCatalog struct {
	// Root holds one directory per dataset name. Used when Lookup gets no dir.
	Root string

	// Channels images are decoded with: 1, 3 or 4.
	Channels int
}

var _ Catalog = DirCatalog{}

// Lookup implements Catalog.
func (c DirCatalog) Lookup(name, dir string) (Partitions, error) {
	if dir == "" {
		root := c.Root
		if root == "" {
			root = DefaultCatalogRoot
		}
		dir = filepath.Join(root, name)
	}
	channels := c.Channels
	if channels == 0 {
		channels = 3
	}

	classes, err := c.classNames(dir)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, errors.Wrapf(ErrNoData, "no class directories found for dataset %q in %s", name, dir)
	}

	parts := make(Partitions)
	for _, split := range splitDirs {
		splitDir := filepath.Join(dir, split.dir)
		if _, err := os.Stat(splitDir); err != nil {
			continue
		}
		files, labels, err := listImages(splitDir, classes)
		if err != nil {
			return nil, err
		}
		parts[split.kind] = imageFilesPartition(split.kind.String(), files, labels, channels)
		klog.V(1).Infof("catalog %s: %d images in %s", name, len(files), splitDir)
	}
	return parts, nil
}

// classNames returns the sorted class directory names of the dataset in dir.
func (c DirCatalog) classNames(dir string) ([]string, error) {
	seen := make(map[string]bool)
	for _, split := range splitDirs {
		entries, err := os.ReadDir(filepath.Join(dir, split.dir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "reading %s", dir)
		}
		for _, e := range entries {
			if e.IsDir() {
				seen[e.Name()] = true
			}
		}
	}
	classes := make([]string, 0, len(seen))
	for name := range seen {
		classes = append(classes, name)
	}
	slices.Sort(classes)
	return classes, nil
}

func listImages(splitDir string, classes []string) (files []string, labels []int, err error) {
	for label, class := range classes {
		entries, err := os.ReadDir(filepath.Join(splitDir, class))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, errors.Wrapf(err, "reading class directory %s", class)
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			files = append(files, filepath.Join(splitDir, class, e.Name()))
			labels = append(labels, label)
		}
	}
	return files, labels, nil
}

// imageFilesPartition lazily decodes files in order.
func imageFilesPartition(name string, files []string, labels []int, channels int) *partition.Partition {
	return partition.New(name, partition.Cardinality(len(files)), func() partition.Iterator {
		pos := 0
		return &partition.FuncIterator{NextFn: func() (partition.Element, error) {
			if pos >= len(files) {
				return partition.Element{}, io.EOF
			}
			path, label := files[pos], labels[pos]
			pos++
			decoded, err := imaging.Open(path)
			if err != nil {
				return partition.Element{}, errors.Wrapf(err, "decoding %s", path)
			}
			img, err := imageops.FromImage(decoded, channels)
			if err != nil {
				return partition.Element{}, errors.WithMessagef(err, "converting %s", path)
			}
			return partition.Element{Samples: []partition.Sample{{Image: img, Label: label}}}, nil
		}}
	})
}
