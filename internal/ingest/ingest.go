// Package ingest reads consolidation test samples from AGS4, CSV and YAML files.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verte-zerg/preconsol/internal/model"
)

var (
	// ErrNoSamples is returned when a file holds no usable sample.
	ErrNoSamples = errors.New("no samples found")
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// LoadFile reads every sample in path, picking the reader by extension.
func LoadFile(path string) ([]model.Sample, error) {
	var read func(*os.File, string) ([]model.Sample, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ags":
		read = func(f *os.File, src string) ([]model.Sample, error) { return ReadAGS(f, src) }
	case ".csv":
		read = func(f *os.File, src string) ([]model.Sample, error) { return ReadCSV(f, src) }
	case ".yaml", ".yml":
		read = func(f *os.File, src string) ([]model.Sample, error) { return ReadYAML(f, src) }
	default:
		return nil, fmt.Errorf("%w: %q (use .ags, .csv or .yaml)", ErrUnsupportedFormat, filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only input.
			_ = cerr
		}
	}()
	samples, err := read(file, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return samples, nil
}

// Find returns the sample with the given name.
func Find(samples []model.Sample, name string) (model.Sample, error) {
	for _, s := range samples {
		if s.Name == name {
			return s, nil
		}
	}
	names := make([]string, len(samples))
	for i, s := range samples {
		names[i] = s.Name
	}
	return model.Sample{}, fmt.Errorf("sample %q not found (available: %s)", name, strings.Join(names, ", "))
}

// sampleName is the file name without directory and extension.
func sampleName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
