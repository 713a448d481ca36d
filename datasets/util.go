package datasets

import (
	"math"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
)

// globCSV returns the sorted files matching pattern, failing if there are none.
func globCSV(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to glob pattern %s", pattern)
	}
	if len(paths) == 0 {
		return nil, errors.Wrapf(ErrNoData, "no CSV files found matching pattern %s", pattern)
	}
	slices.Sort(paths)
	return paths, nil
}

// FindCSVInAssets finds the CSV files in a directory, returned as a glob pattern.
func FindCSVInAssets(dir string) (string, error) {
	pattern := filepath.Join(dir, "*.csv")
	if _, err := globCSV(pattern); err != nil {
		return "", err
	}
	return pattern, nil
}

// roundHalfEven rounds x to the nearest integer, ties to even.
func roundHalfEven(x float64) int {
	return int(math.RoundToEven(x))
}
