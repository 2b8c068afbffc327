package casagrande

import "math"

const minSeriesLen = 3

// SamplePoint is one consolidation increment.
type SamplePoint struct {
	AxialLoad float64 `json:"load" yaml:"load"`
	VoidRatio float64 `json:"void_ratio" yaml:"void_ratio"`
}

// Series is a validated, strictly ascending sequence of sample points.
type Series struct {
	points []SamplePoint
}

// Ascending keeps the first point and every later point whose load strictly
// exceeds the last kept load. Points are never reordered.
func Ascending(raw []SamplePoint) []SamplePoint {
	out := make([]SamplePoint, 0, len(raw))
	for i, p := range raw {
		if i == 0 || p.AxialLoad > out[len(out)-1].AxialLoad {
			out = append(out, p)
		}
	}
	return out
}

// NewSeries filters raw points and validates the result.
func NewSeries(raw []SamplePoint) (Series, error) {
	pts := Ascending(raw)
	if len(pts) < minSeriesLen {
		return Series{}, stageErr(ErrInsufficientData, StageFilter,
			"%d ascending points from %d raw points, need at least %d", len(pts), len(raw), minSeriesLen)
	}
	for i, p := range pts {
		if !(p.AxialLoad > 0) || math.IsInf(p.AxialLoad, 0) {
			return Series{}, stageErr(ErrInsufficientData, StageFilter,
				"point %d has non-positive or infinite load %v", i, p.AxialLoad)
		}
		if math.IsNaN(p.VoidRatio) || math.IsInf(p.VoidRatio, 0) {
			return Series{}, stageErr(ErrInsufficientData, StageFilter,
				"point %d has invalid void ratio %v", i, p.VoidRatio)
		}
	}
	return Series{points: pts}, nil
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.points) }

// At returns the i-th point.
func (s Series) At(i int) SamplePoint { return s.points[i] }

// Points returns a copy of the points.
func (s Series) Points() []SamplePoint {
	return append([]SamplePoint(nil), s.points...)
}

// First returns the lowest-load point.
func (s Series) First() SamplePoint { return s.points[0] }

// Last returns the highest-load point.
func (s Series) Last() SamplePoint { return s.points[len(s.points)-1] }

// Loads returns the axial loads in order.
func (s Series) Loads() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.AxialLoad
	}
	return out
}

// LogLoads returns log10 of the axial loads in order.
func (s Series) LogLoads() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = math.Log10(p.AxialLoad)
	}
	return out
}

// VoidRatios returns the void ratios in order.
func (s Series) VoidRatios() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.VoidRatio
	}
	return out
}

// Contains reports whether load lies in the closed load domain of the series.
func (s Series) Contains(load float64) bool {
	return load >= s.First().AxialLoad && load <= s.Last().AxialLoad
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
