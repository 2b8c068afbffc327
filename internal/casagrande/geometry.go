package casagrande

import (
	"fmt"
	"math"
)

// Primitive names emitted for every figure.
const (
	NameSplineCurve          = "spline_curve"
	NameStraightestLine      = "straightest_line"
	NameHorizontalLine       = "horizontal_line"
	NamePeakCurvatureLine    = "peak_curvature_line"
	NameBisectorLine         = "bisector_line"
	NameSamples              = "samples"
	NameVirginHandles        = "virgin_handles"
	NameKneeHandle           = "knee_handle"
	NamePreconsolidation     = "preconsolidation_point"
	NamePreconsolidationNote = "preconsolidation_label"
)

const plotYPadding = 0.2

// PrimitiveKind is the drawing primitive type.
type PrimitiveKind int

const (
	Polyline PrimitiveKind = iota
	Scatter
	Label
)

// Color is a named colour understood by the renderers.
type Color string

const (
	Blue  Color = "blue"
	Red   Color = "red"
	Black Color = "black"
)

// XY is a point in data coordinates, or in axes fractions for labels.
type XY struct {
	X, Y float64
}

// Primitive is one renderable element of a figure.
type Primitive struct {
	Name   string
	Kind   PrimitiveKind
	Points []XY
	Color  Color
	Dashed bool
	// Handle marks draggable control points.
	Handle bool
	// Text and AxesFraction apply to labels.
	Text         string
	AxesFraction bool
}

// Figure is the complete render description of a session.
type Figure struct {
	Title      string
	XLabel     string
	YLabel     string
	LogX       bool
	XMin, XMax float64
	YMin, YMax float64
	Primitives []Primitive
}

// Find returns the primitive with the given name.
func (f Figure) Find(name string) (Primitive, bool) {
	for _, p := range f.Primitives {
		if p.Name == name {
			return p, true
		}
	}
	return Primitive{}, false
}

// View is the state the emitter reads. It never fits or solves anything.
type View struct {
	Series      Series
	Curve       *Curve
	Knee        KneePoint
	Virgin      VirginLine
	Estimate    Estimate
	HasEstimate bool
	Samples     int
}

// PressureLabel formats the estimate annotation.
func PressureLabel(pressure float64) string {
	return fmt.Sprintf("Preconsolidation Pressure: %.0fkPa", pressure)
}

// Emit translates a view into primitives.
func Emit(v View) Figure {
	first, last := v.Series.First(), v.Series.Last()
	fig := Figure{
		XLabel: "Axial Load  [kPa]",
		YLabel: "Voids Ratio",
		LogX:   true,
		XMin:   math.Pow(10, math.Floor(math.Log10(first.AxialLoad))),
		XMax:   math.Pow(10, math.Ceil(math.Log10(last.AxialLoad))),
	}
	ys := v.Series.VoidRatios()
	lo, hi := ys[0], ys[0]
	for _, y := range ys {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	fig.YMin = lo * (1 - plotYPadding)
	fig.YMax = hi * (1 + plotYPadding)

	samples := v.Samples
	if samples < 2 {
		samples = DefaultLinspace
	}
	loads := Linspace(first.AxialLoad, last.AxialLoad, samples)
	curve := make([]XY, len(loads))
	for i, x := range loads {
		curve[i] = XY{X: x, Y: v.Curve.AtLoad(x)}
	}

	tangent := Tangent(v.Curve, v.Knee)
	bisector := tangent
	bisector.Slope /= 2

	fig.Primitives = []Primitive{
		{Name: NameSplineCurve, Kind: Polyline, Color: Blue, Points: curve},
		{
			Name: NameStraightestLine, Kind: Polyline, Color: Red, Dashed: true,
			Points: []XY{{first.AxialLoad, v.Virgin.At(first.AxialLoad)}, {last.AxialLoad, v.Virgin.At(last.AxialLoad)}},
		},
		{
			Name: NameHorizontalLine, Kind: Polyline, Color: Red,
			Points: []XY{{v.Knee.AxialLoad, v.Knee.VoidRatio}, {last.AxialLoad, v.Knee.VoidRatio}},
		},
		{
			Name: NamePeakCurvatureLine, Kind: Polyline, Color: Red,
			Points: []XY{{first.AxialLoad, tangent.At(first.AxialLoad)}, {last.AxialLoad, tangent.At(last.AxialLoad)}},
		},
		{
			Name: NameBisectorLine, Kind: Polyline, Color: Red, Dashed: true,
			Points: []XY{{v.Knee.AxialLoad, bisector.At(v.Knee.AxialLoad)}, {last.AxialLoad, bisector.At(last.AxialLoad)}},
		},
		{Name: NameSamples, Kind: Scatter, Color: Blue, Points: pointsXY(v.Series.points)},
		{Name: NameVirginHandles, Kind: Scatter, Color: Red, Handle: true, Points: pointsXY(v.Virgin.Points)},
		{Name: NameKneeHandle, Kind: Scatter, Color: Red, Handle: true, Points: []XY{{v.Knee.AxialLoad, v.Knee.VoidRatio}}},
	}
	if v.HasEstimate {
		fig.Primitives = append(fig.Primitives,
			Primitive{Name: NamePreconsolidation, Kind: Scatter, Color: Black, Points: []XY{{v.Estimate.Pressure, v.Estimate.VoidRatio}}},
			Primitive{Name: NamePreconsolidationNote, Kind: Label, Color: Black, AxesFraction: true,
				Points: []XY{{0.97, 0.95}}, Text: PressureLabel(v.Estimate.Pressure)},
		)
	}
	return fig
}

func pointsXY(pts []SamplePoint) []XY {
	out := make([]XY, len(pts))
	for i, p := range pts {
		out[i] = XY{X: p.AxialLoad, Y: p.VoidRatio}
	}
	return out
}

// Figure emits the current geometry of the session. It returns an empty
// figure when nothing is loaded.
func (s *Session) Figure() Figure {
	if !s.loaded {
		return Figure{}
	}
	return Emit(View{
		Series:      s.series,
		Curve:       s.curve,
		Knee:        s.knee,
		Virgin:      s.virgin,
		Estimate:    s.estimate,
		HasEstimate: s.hasEstimate,
		Samples:     s.opts.Linspace,
	})
}
