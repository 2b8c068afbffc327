package casagrande

import (
	"fmt"
	"math"
	"strings"
)

// DefaultLinspace is the number of candidate loads between the knee and the
// last load used by the intersection search.
const DefaultLinspace = 10_000

// KneeSensitivity is the Kneedle S parameter.
const KneeSensitivity = 1.0

// KneeScale selects the abscissa used for knee detection.
type KneeScale int

const (
	// KneeScaleLog detects the knee on void ratio against log10(load).
	KneeScaleLog KneeScale = iota
	// KneeScaleLinear detects the knee on void ratio against raw load.
	KneeScaleLinear
)

func (s KneeScale) String() string {
	if s == KneeScaleLinear {
		return "linear"
	}
	return "log"
}

// ParseKneeScale parses "log" or "linear".
func ParseKneeScale(v string) (KneeScale, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "log":
		return KneeScaleLog, nil
	case "linear":
		return KneeScaleLinear, nil
	default:
		return KneeScaleLog, fmt.Errorf("unknown knee scale %q (use log or linear)", v)
	}
}

// KneePoint is the draggable point of maximum curvature.
type KneePoint struct {
	AxialLoad float64
	VoidRatio float64
	Log10Load float64
}

func newKneePoint(load, voidRatio float64) KneePoint {
	return KneePoint{AxialLoad: load, VoidRatio: voidRatio, Log10Load: math.Log10(load)}
}

// KneeResult is the knee plus the candidate loads between it and the last
// point of the series.
type KneeResult struct {
	Knee       KneePoint
	Index      int
	Candidates []float64
}

// LocateKnee finds the knee of a concave, decreasing consolidation curve with
// the Kneedle method and returns the first knee found.
func LocateKnee(series Series, scale KneeScale, linspace int) (KneeResult, error) {
	n := series.Len()
	if n < minSeriesLen {
		return KneeResult{}, stageErr(ErrInsufficientData, StageKnee, "%d points, need %d", n, minSeriesLen)
	}
	if linspace < 2 {
		linspace = DefaultLinspace
	}
	x := series.LogLoads()
	if scale == KneeScaleLinear {
		x = series.Loads()
	}
	y := series.VoidRatios()

	xn, ok := normalize(x)
	if !ok {
		return KneeResult{}, stageErr(ErrNoKneeFound, StageKnee, "loads span no range")
	}
	yn, ok := normalize(y)
	if !ok {
		return KneeResult{}, stageErr(ErrNoKneeFound, StageKnee, "void ratios are constant")
	}
	// Concave decreasing curves are flipped into increasing ones.
	flipped := make([]float64, n)
	for i := range yn {
		flipped[i] = yn[n-1-i]
	}
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = flipped[i] - xn[i]
	}

	maxima := relativeExtrema(diff, func(a, b float64) bool { return a >= b })
	minima := relativeExtrema(diff, func(a, b float64) bool { return a <= b })
	if len(maxima) == 0 {
		return KneeResult{}, stageErr(ErrNoKneeFound, StageKnee, "difference curve has no local maximum")
	}

	var meanStep float64
	for i := 1; i < n; i++ {
		meanStep += xn[i] - xn[i-1]
	}
	meanStep = math.Abs(meanStep / float64(n-1))

	isMax := make(map[int]bool, len(maxima))
	for _, i := range maxima {
		isMax[i] = true
	}
	isMin := make(map[int]bool, len(minima))
	for _, i := range minima {
		isMin[i] = true
	}

	threshold := 0.0
	thresholdIndex := -1
	for i := maxima[0]; i < n-1; i++ {
		if isMax[i] {
			threshold = diff[i] - KneeSensitivity*meanStep
			thresholdIndex = i
		}
		if isMin[i] {
			threshold = 0
		}
		if thresholdIndex < 0 || diff[i+1] >= threshold {
			continue
		}
		idx := n - 1 - thresholdIndex
		if idx >= n-1 {
			return KneeResult{}, stageErr(ErrNoKneeFound, StageKnee,
				"knee at last load %v leaves no points beyond it", series.Last().AxialLoad)
		}
		p := series.At(idx)
		return KneeResult{
			Knee:       newKneePoint(p.AxialLoad, p.VoidRatio),
			Index:      idx,
			Candidates: Linspace(p.AxialLoad, series.Last().AxialLoad, linspace),
		}, nil
	}
	return KneeResult{}, stageErr(ErrNoKneeFound, StageKnee, "difference curve never drops below its threshold")
}

func normalize(v []float64) ([]float64, bool) {
	lo, hi := v[0], v[0]
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi-lo == 0 {
		return nil, false
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - lo) / (hi - lo)
	}
	return out, true
}

// relativeExtrema returns indices i where cmp holds against both neighbours.
// Edges compare against themselves.
func relativeExtrema(v []float64, cmp func(a, b float64) bool) []int {
	var out []int
	last := len(v) - 1
	for i := range v {
		prev := max(i-1, 0)
		next := min(i+1, last)
		if cmp(v[i], v[prev]) && cmp(v[i], v[next]) {
			out = append(out, i)
		}
	}
	return out
}
