// Package casagrande estimates preconsolidation pressure from consolidation
// test data with the Casagrande construction and supports interactive
// refinement of its control points.
package casagrande

import (
	"fmt"
	"path/filepath"
)

const (
	DefaultDPI          = 100
	DefaultFigureWidth  = 12.0
	DefaultFigureHeight = 8.0
)

// Options configures a Session.
type Options struct {
	Fit           FitOptions
	KneeScale     KneeScale
	Linspace      int
	MaxExhaustive int
	Export        ExportOptions
}

// ExportOptions sizes rasterized figures.
type ExportOptions struct {
	DPI    int
	Width  float64
	Height float64
}

// DefaultOptions returns the settings of the classic construction.
func DefaultOptions() Options {
	return Options{
		Fit:           DefaultFitOptions(),
		KneeScale:     KneeScaleLog,
		Linspace:      DefaultLinspace,
		MaxExhaustive: DefaultMaxExhaustive,
		Export: ExportOptions{
			DPI:    DefaultDPI,
			Width:  DefaultFigureWidth,
			Height: DefaultFigureHeight,
		},
	}
}

// Validate reports option values the engine cannot work with.
func (o Options) Validate() error {
	if o.Fit.Degree < 1 || o.Fit.Degree > maxDegree {
		return fmt.Errorf("degree must be between 1 and %d", maxDegree)
	}
	if o.Fit.Smoothing < 0 {
		return fmt.Errorf("smoothing must be >= 0")
	}
	if o.Linspace < 2 {
		return fmt.Errorf("linspace must be >= 2")
	}
	if o.MaxExhaustive < 2 {
		return fmt.Errorf("max-exhaustive must be >= 2")
	}
	if o.Export.DPI <= 0 {
		return fmt.Errorf("dpi must be > 0")
	}
	if o.Export.Width <= 0 || o.Export.Height <= 0 {
		return fmt.Errorf("figure size must be > 0")
	}
	return nil
}

// Session owns one sample's estimation state. It is driven by a single
// interactive caller and is not safe for concurrent use.
type Session struct {
	opts Options

	loaded     bool
	series     Series
	curve      *Curve
	knee       KneePoint
	kneeIndex  int
	candidates []float64
	virgin     VirginLine

	estimate    Estimate
	hasEstimate bool

	drag dragState
}

// NewSession returns an empty session.
func NewSession(opts Options) *Session {
	return &Session{opts: opts}
}

// Options returns the session configuration.
func (s *Session) Options() Options { return s.opts }

// LoadSeries replaces the session with a new sample. All derived state of the
// previous sample is discarded first, so a failed load leaves the session
// empty.
func (s *Session) LoadSeries(raw []SamplePoint) error {
	*s = Session{opts: s.opts}

	series, err := NewSeries(raw)
	if err != nil {
		return err
	}
	curve, err := FitCurve(series, s.opts.Fit)
	if err != nil {
		return err
	}
	knee, err := LocateKnee(series, s.opts.KneeScale, s.opts.Linspace)
	if err != nil {
		return err
	}
	virgin, err := SolveVirginLine(series, knee.Knee, VirginOptions{MaxExhaustive: s.opts.MaxExhaustive})
	if err != nil {
		return err
	}
	est, err := Intersect(Bisector(curve, knee.Knee), virgin, knee.Candidates)
	if err != nil {
		return err
	}

	s.loaded = true
	s.series = series
	s.curve = curve
	s.knee = knee.Knee
	s.kneeIndex = knee.Index
	s.candidates = knee.Candidates
	s.virgin = virgin
	s.estimate = est
	s.hasEstimate = true
	return nil
}

// Loaded reports whether a series is active.
func (s *Session) Loaded() bool { return s.loaded }

// Series returns the active series.
func (s *Session) Series() Series { return s.series }

// Curve returns the fitted curve, nil when nothing is loaded.
func (s *Session) Curve() *Curve { return s.curve }

// Knee returns the current knee control point.
func (s *Session) Knee() KneePoint { return s.knee }

// VirginLine returns a copy of the current virgin line.
func (s *Session) VirginLine() VirginLine { return s.virgin.clone() }

// Candidates returns the loads searched for the intersection.
func (s *Session) Candidates() []float64 { return s.candidates }

// Estimate returns the published estimate, if any.
func (s *Session) Estimate() (Estimate, bool) { return s.estimate, s.hasEstimate }

// CurrentPressure returns the published preconsolidation pressure, or 0.
func (s *Session) CurrentPressure() float64 { return s.estimate.Pressure }

// CurrentVoidRatio returns the void ratio at the published pressure, or 0.
func (s *Session) CurrentVoidRatio() float64 { return s.estimate.VoidRatio }

// Tangent returns the knee tangent line.
func (s *Session) Tangent() AnchoredLine { return Tangent(s.curve, s.knee) }

// Bisector returns the current bisector line.
func (s *Session) Bisector() AnchoredLine { return Bisector(s.curve, s.knee) }

// recomputeEstimate runs only the intersection step and publishes the result
// on success.
func (s *Session) recomputeEstimate() error {
	est, err := Intersect(s.Bisector(), s.virgin, s.candidates)
	if err != nil {
		return err
	}
	s.estimate = est
	s.hasEstimate = true
	return nil
}

// ExportRequest asks a persistence collaborator to rasterize a figure.
type ExportRequest struct {
	Path   string
	DPI    int
	Width  float64
	Height float64
	Figure Figure
}

// ExportImage describes the current figure for rasterization at path. A
// missing extension becomes ".png". Nothing is written here.
func (s *Session) ExportImage(path string) (ExportRequest, error) {
	if !s.loaded {
		return ExportRequest{}, ErrNoSession
	}
	if path == "" {
		return ExportRequest{}, fmt.Errorf("export path is empty")
	}
	if filepath.Ext(path) == "" {
		path += ".png"
	}
	return ExportRequest{
		Path:   path,
		DPI:    s.opts.Export.DPI,
		Width:  s.opts.Export.Width,
		Height: s.opts.Export.Height,
		Figure: s.Figure(),
	}, nil
}
