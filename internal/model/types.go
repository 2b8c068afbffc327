// Package model defines shared data structures.
package model

import (
	"strings"
	"time"

	"github.com/verte-zerg/preconsol/internal/casagrande"
)

// Config defines estimation and export settings.
type Config struct {
	Degree        int
	Smoothing     float64
	KneeScale     string
	Linspace      int
	MaxExhaustive int
	DPI           int
	Width         float64
	Height        float64
}

// Options converts the settings into engine options.
func (c Config) Options() (casagrande.Options, error) {
	scale, err := casagrande.ParseKneeScale(c.KneeScale)
	if err != nil {
		return casagrande.Options{}, err
	}
	opts := casagrande.Options{
		Fit:           casagrande.FitOptions{Degree: c.Degree, Smoothing: c.Smoothing},
		KneeScale:     scale,
		Linspace:      c.Linspace,
		MaxExhaustive: c.MaxExhaustive,
		Export: casagrande.ExportOptions{
			DPI:    c.DPI,
			Width:  c.Width,
			Height: c.Height,
		},
	}
	if err := opts.Validate(); err != nil {
		return casagrande.Options{}, err
	}
	return opts, nil
}

// HistoryConfig defines filters for listing saved estimates.
type HistoryConfig struct {
	Sample string
	Since  *time.Time
	Last   int
}

// Sample is one named consolidation test read from an input file.
type Sample struct {
	Name   string
	Source string
	Points []casagrande.SamplePoint
}

// FileStem is the sample name made safe for use as a file name.
func (s Sample) FileStem() string {
	stem := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s.Name)
	if stem == "" {
		return "estimate"
	}
	return stem
}

// EstimateRecord is an accepted estimate with the control points that
// produced it.
type EstimateRecord struct {
	ID              string
	CreatedAt       time.Time
	Sample          string
	Source          string
	Degree          int
	KneeScale       string
	KneeLoad        float64
	KneeVoidRatio   float64
	VirginSlope     float64
	VirginIntercept float64
	VirginPoints    []casagrande.SamplePoint
	Points          []casagrande.SamplePoint
	Pressure        float64
	VoidRatio       float64
}

// NewEstimateRecord snapshots a session that holds an estimate.
func NewEstimateRecord(sample Sample, s *casagrande.Session) (EstimateRecord, bool) {
	est, ok := s.Estimate()
	if !ok {
		return EstimateRecord{}, false
	}
	opts := s.Options()
	knee := s.Knee()
	line := s.VirginLine()
	return EstimateRecord{
		Sample:          sample.Name,
		Source:          sample.Source,
		Degree:          opts.Fit.Degree,
		KneeScale:       opts.KneeScale.String(),
		KneeLoad:        knee.AxialLoad,
		KneeVoidRatio:   knee.VoidRatio,
		VirginSlope:     line.Slope,
		VirginIntercept: line.Intercept,
		VirginPoints:    line.Points,
		Points:          s.Series().Points(),
		Pressure:        est.Pressure,
		VoidRatio:       est.VoidRatio,
	}, true
}
