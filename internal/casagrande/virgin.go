package casagrande

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultMaxExhaustive bounds the exhaustive subset search. Above it the
// solver scans contiguous windows instead: 2^16 fits is still interactive,
// 2^30 is not.
const DefaultMaxExhaustive = 16

// VirginLine is void ratio = Slope*log10(load) + Intercept together with the
// control points that define it.
type VirginLine struct {
	Slope     float64
	Intercept float64
	Points    []SamplePoint
}

// At returns the void ratio on the line at an axial load.
func (v VirginLine) At(load float64) float64 {
	return v.Slope*math.Log10(load) + v.Intercept
}

// MinLoad returns the lowest control point load.
func (v VirginLine) MinLoad() float64 {
	lo := math.Inf(1)
	for _, p := range v.Points {
		lo = math.Min(lo, p.AxialLoad)
	}
	return lo
}

func (v VirginLine) clone() VirginLine {
	v.Points = append([]SamplePoint(nil), v.Points...)
	return v
}

// FitLogLine is the least-squares fit of void ratio against log10(load).
func FitLogLine(points []SamplePoint) (slope, intercept float64, err error) {
	if len(points) < 2 {
		return 0, 0, stageErr(ErrInsufficientVirginPoints, StageVirgin, "%d points, need 2", len(points))
	}
	distinct := false
	for _, p := range points[1:] {
		if p.AxialLoad != points[0].AxialLoad {
			distinct = true
			break
		}
	}
	if !distinct {
		return 0, 0, stageErr(ErrInsufficientVirginPoints, StageVirgin, "all %d points share load %v", len(points), points[0].AxialLoad)
	}
	a := mat.NewDense(len(points), 2, nil)
	y := make([]float64, len(points))
	for i, p := range points {
		a.Set(i, 0, math.Log10(p.AxialLoad))
		a.Set(i, 1, 1)
		y[i] = p.VoidRatio
	}
	b := mat.NewVecDense(len(y), y)
	c := mat.NewVecDense(2, nil)

	qr := new(mat.QR)
	qr.Factorize(a)
	if err := qr.SolveVecTo(c, false, b); err != nil {
		return 0, 0, &Error{Kind: ErrInsufficientVirginPoints, Stage: StageVirgin, Detail: "degenerate least-squares system", Err: err}
	}
	return c.AtVec(0), c.AtVec(1), nil
}

// VirginOptions configures the virgin-line search.
type VirginOptions struct {
	MaxExhaustive int
}

// SolveVirginLine returns the steepest least-squares line over subsets of the
// points beyond the knee. Ties keep the earliest subset in lexicographic order.
func SolveVirginLine(series Series, knee KneePoint, opts VirginOptions) (VirginLine, error) {
	var beyond []SamplePoint
	for _, p := range series.points {
		if p.AxialLoad > knee.AxialLoad {
			beyond = append(beyond, p)
		}
	}
	if len(beyond) < 2 {
		return VirginLine{}, stageErr(ErrInsufficientVirginPoints, StageVirgin,
			"%d points beyond knee load %v, need 2", len(beyond), knee.AxialLoad)
	}
	limit := opts.MaxExhaustive
	if limit <= 0 {
		limit = DefaultMaxExhaustive
	}

	var best VirginLine
	found := false
	consider := func(subset []SamplePoint) error {
		m, c, err := FitLogLine(subset)
		if err != nil {
			return err
		}
		if !found || math.Abs(m) > math.Abs(best.Slope) {
			best = VirginLine{Slope: m, Intercept: c, Points: append([]SamplePoint(nil), subset...)}
			found = true
		}
		return nil
	}

	if len(beyond) <= limit {
		subset := make([]SamplePoint, 0, len(beyond))
		for size := 2; size <= len(beyond); size++ {
			var err error
			combinations(len(beyond), size, func(idx []int) bool {
				subset = subset[:0]
				for _, i := range idx {
					subset = append(subset, beyond[i])
				}
				err = consider(subset)
				return err == nil
			})
			if err != nil {
				return VirginLine{}, err
			}
		}
		return best, nil
	}

	for size := 2; size <= len(beyond); size++ {
		for start := 0; start+size <= len(beyond); start++ {
			if err := consider(beyond[start : start+size]); err != nil {
				return VirginLine{}, err
			}
		}
	}
	return best, nil
}

// combinations calls yield with every k-subset of 0..n-1 in lexicographic
// order until yield returns false. The slice is reused between calls.
func combinations(n, k int, yield func([]int) bool) {
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !yield(idx) {
			return
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
