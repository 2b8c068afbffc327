package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"

	"github.com/verte-zerg/preconsol/internal/casagrande"
	"github.com/verte-zerg/preconsol/internal/model"
)

// ReadCSV reads rows of sample,load,void_ratio with a header row. Without a
// sample column every row belongs to one sample named after the source file.
// Samples keep the order of their first row.
func ReadCSV(r io.Reader, source string) ([]model.Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrNoSamples)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	loadCol, ok := cols["load"]
	if !ok {
		return nil, fmt.Errorf("CSV header has no load column")
	}
	voidCol, ok := cols["void_ratio"]
	if !ok {
		return nil, fmt.Errorf("CSV header has no void_ratio column")
	}
	sampleCol, hasSample := cols["sample"]

	var samples []model.Sample
	index := map[string]int{}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		load, err := cast.ToFloat64E(strings.TrimSpace(rec[loadCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid load %q: %w", line, rec[loadCol], err)
		}
		voids, err := cast.ToFloat64E(strings.TrimSpace(rec[voidCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid void_ratio %q: %w", line, rec[voidCol], err)
		}
		name := sampleName(source)
		if hasSample {
			name = strings.TrimSpace(rec[sampleCol])
		}
		i, ok := index[name]
		if !ok {
			i = len(samples)
			index[name] = i
			samples = append(samples, model.Sample{Name: name, Source: source})
		}
		samples[i].Points = append(samples[i].Points, casagrande.SamplePoint{AxialLoad: load, VoidRatio: voids})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrNoSamples)
	}
	return samples, nil
}
