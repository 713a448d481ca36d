package datasets

import (
	"os"
	"testing"

	"github.com/Noofbiz/ppmlDatasets/imageops"
	"github.com/stretchr/testify/require"
)

// writeCSVFile writes a CSV file with the given header and rows to path.
func writeCSVFile(t *testing.T, path, header string, rows []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create csv %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(header + "\n"); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

// syntheticConfig returns a configuration of small grayscale images,
// converted to RGB, generated by a SyntheticLoader.
func syntheticConfig(train, val, test []int) Config {
	return Config{
		Name:              "synthetic",
		ImageShape:        imageops.Shape{Height: 8, Width: 8, Channels: 3},
		DatasetImageShape: imageops.Shape{Height: 6, Width: 6, Channels: 1},
		ConvertToRGB:      true,
		Loader:            SyntheticLoader{Train: train, Validation: val, Test: test},
	}
}

// loadedSession creates a session from cfg and loads it.
func loadedSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(nil))
	return s
}
