package casagrande

import (
	"math"
)

const (
	// itpEpsilon is the bracket width, in log10(load), at which refinement stops.
	itpEpsilon = 1e-12
	iscloseAbs = 1e-8
	minRelExp  = -8
	maxRelExp  = 2
)

// Estimate is the preconsolidation pressure and the void ratio at it.
type Estimate struct {
	Pressure  float64
	VoidRatio float64
}

// AnchoredLine is a straight line in log10(load) space through a fixed point.
type AnchoredLine struct {
	Slope     float64
	LogLoad   float64
	VoidRatio float64
}

// At evaluates the line at an axial load.
func (l AnchoredLine) At(load float64) float64 {
	return l.AtLog(math.Log10(load))
}

// AtLog evaluates the line at log10(load).
func (l AnchoredLine) AtLog(logLoad float64) float64 {
	return (logLoad-l.LogLoad)*l.Slope + l.VoidRatio
}

// Tangent is the curve's linear approximation at the knee.
func Tangent(curve *Curve, knee KneePoint) AnchoredLine {
	return AnchoredLine{
		Slope:     curve.Slope(knee.Log10Load),
		LogLoad:   knee.Log10Load,
		VoidRatio: curve.At(knee.Log10Load),
	}
}

// Bisector halves the angle between the knee tangent and a horizontal line:
// its slope is the mean of the tangent slope and zero.
func Bisector(curve *Curve, knee KneePoint) AnchoredLine {
	t := Tangent(curve, knee)
	t.Slope /= 2
	return t
}

// Intersect finds where the bisector meets the virgin line among the
// candidate loads. The first sign change of their difference is refined with
// the ITP method; if the difference never changes sign, the first candidate
// within an escalating relative tolerance is used. The lowest-load crossing
// wins when several exist.
func Intersect(bisector AnchoredLine, virgin VirginLine, candidates []float64) (Estimate, error) {
	if len(candidates) == 0 {
		return Estimate{}, stageErr(ErrNoIntersectionFound, StageIntersect, "no candidate loads")
	}
	diff := func(logLoad float64) float64 {
		return bisector.AtLog(logLoad) - (virgin.Slope*logLoad + virgin.Intercept)
	}

	prevLog := math.Log10(candidates[0])
	prev := diff(prevLog)
	if prev == 0 {
		return estimateAt(bisector, prevLog), nil
	}
	for _, load := range candidates[1:] {
		curLog := math.Log10(load)
		cur := diff(curLog)
		if cur == 0 {
			return estimateAt(bisector, curLog), nil
		}
		if math.Signbit(cur) != math.Signbit(prev) {
			f, ya, yb := diff, prev, cur
			if ya > 0 {
				f = func(x float64) float64 { return -diff(x) }
				ya, yb = -ya, -yb
			}
			root := prevLog
			if curLog-prevLog > 2*itpEpsilon {
				root = SolveITP(f, prevLog, curLog, itpEpsilon, 1, 0.2/(curLog-prevLog), ya, yb)
			}
			return estimateAt(bisector, root), nil
		}
		prevLog, prev = curLog, cur
	}

	if est, ok := escalatingTolerance(bisector, virgin, candidates); ok {
		return est, nil
	}
	return Estimate{}, stageErr(ErrNoIntersectionFound, StageIntersect,
		"bisector and virgin line do not meet between %v and %v", candidates[0], candidates[len(candidates)-1])
}

func estimateAt(bisector AnchoredLine, logLoad float64) Estimate {
	return Estimate{Pressure: math.Pow(10, logLoad), VoidRatio: bisector.AtLog(logLoad)}
}

// escalatingTolerance returns the first candidate where the two lines agree
// within a relative tolerance, trying 1e-8 first and relaxing up to 1e2.
func escalatingTolerance(bisector AnchoredLine, virgin VirginLine, candidates []float64) (Estimate, bool) {
	a := make([]float64, len(candidates))
	b := make([]float64, len(candidates))
	for i, load := range candidates {
		a[i] = bisector.At(load)
		b[i] = virgin.At(load)
	}
	for exp := minRelExp; exp <= maxRelExp; exp++ {
		rtol := math.Pow(10, float64(exp))
		for i := range candidates {
			if math.Abs(a[i]-b[i]) <= iscloseAbs+rtol*math.Abs(b[i]) {
				return Estimate{Pressure: candidates[i], VoidRatio: a[i]}, true
			}
		}
	}
	return Estimate{}, false
}

// SolveITP finds a root of f in [a, b] with the ITP method, given ya = f(a) < 0
// and yb = f(b) > 0. The result is within epsilon of the crossing when f is
// monotonic on the bracket. k2 is fixed at 2.
func SolveITP(f func(float64) float64, a, b, epsilon float64, n0 int, k1, ya, yb float64) float64 {
	n12 := int(max(math.Ceil(math.Log2((b-a)/epsilon))-1, 0))
	nmax := n0 + n12
	scaledEpsilon := epsilon * math.Ldexp(1, nmax)
	for b-a > 2*epsilon {
		mid := 0.5 * (a + b)
		r := scaledEpsilon - 0.5*(b-a)
		xf := (yb*a - ya*b) / (yb - ya)
		sigma := mid - xf
		delta := k1 * (b - a) * (b - a)
		xt := mid
		if delta <= math.Abs(mid-xf) {
			xt = xf + math.Copysign(delta, sigma)
		}
		x := mid - math.Copysign(r, sigma)
		if math.Abs(xt-mid) <= r {
			x = xt
		}
		y := f(x)
		switch {
		case y > 0:
			b, yb = x, y
		case y < 0:
			a, ya = x, y
		default:
			return x
		}
		scaledEpsilon *= 0.5
	}
	return 0.5 * (a + b)
}
