package ingest

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/preconsol/internal/casagrande"
	"github.com/verte-zerg/preconsol/internal/model"
)

type yamlFile struct {
	Samples []yamlSample `yaml:"samples"`
}

type yamlSample struct {
	Name   string                   `yaml:"name"`
	Points []casagrande.SamplePoint `yaml:"points"`
}

// ReadYAML reads a document of the form
//
//	samples:
//	  - name: BH01_2.50m_U_1
//	    points:
//	      - {load: 50, void_ratio: 0.90}
func ReadYAML(r io.Reader, source string) ([]model.Sample, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc yamlFile
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty document", ErrNoSamples)
		}
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	if len(doc.Samples) == 0 {
		return nil, fmt.Errorf("%w: samples list is empty", ErrNoSamples)
	}
	samples := make([]model.Sample, 0, len(doc.Samples))
	seen := map[string]bool{}
	for i, s := range doc.Samples {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = fmt.Sprintf("%s_%d", sampleName(source), i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate sample name %q", name)
		}
		seen[name] = true
		samples = append(samples, model.Sample{Name: name, Source: source, Points: s.Points})
	}
	return samples, nil
}
