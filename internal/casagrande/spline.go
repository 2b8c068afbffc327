package casagrande

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	DefaultDegree    = 2
	DefaultSmoothing = 0.0
	maxDegree        = 5
)

// Spline is a clamped B-spline given by its knot vector, coefficients and
// degree. len(knots) == len(coeffs)+degree+1.
type Spline struct {
	knots  []float64
	coeffs []float64
	degree int
}

// Degree returns the polynomial degree.
func (s *Spline) Degree() int { return s.degree }

// Knots returns a copy of the knot vector.
func (s *Spline) Knots() []float64 { return append([]float64(nil), s.knots...) }

// span returns the knot span index used to evaluate x. Values outside the
// knot range use the first or last span, which extends the end polynomials.
func (s *Spline) span(x float64) int {
	n := len(s.coeffs)
	k := s.degree
	if x < s.knots[k] {
		return k
	}
	if x >= s.knots[n] {
		return n - 1
	}
	// Largest l in [k, n-1] with knots[l] <= x.
	l := sort.Search(n-k, func(i int) bool { return s.knots[k+i] > x }) + k - 1
	if l < k {
		l = k
	}
	return l
}

// Eval evaluates the spline at x with de Boor's algorithm.
func (s *Spline) Eval(x float64) float64 {
	k := s.degree
	l := s.span(x)
	d := make([]float64, k+1)
	for j := 0; j <= k; j++ {
		d[j] = s.coeffs[j+l-k]
	}
	for r := 1; r <= k; r++ {
		for j := k; j >= r; j-- {
			lo := s.knots[j+l-k]
			hi := s.knots[j+1+l-r]
			alpha := (x - lo) / (hi - lo)
			d[j] = (1-alpha)*d[j-1] + alpha*d[j]
		}
	}
	return d[k]
}

// Derivative returns the first derivative as a spline of one degree lower.
func (s *Spline) Derivative() *Spline {
	k := s.degree
	if k == 0 {
		return &Spline{knots: s.Knots(), coeffs: make([]float64, len(s.coeffs)), degree: 0}
	}
	n := len(s.coeffs)
	coeffs := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		den := s.knots[i+k+1] - s.knots[i+1]
		if den == 0 {
			continue
		}
		coeffs[i] = float64(k) * (s.coeffs[i+1] - s.coeffs[i]) / den
	}
	return &Spline{
		knots:  append([]float64(nil), s.knots[1:len(s.knots)-1]...),
		coeffs: coeffs,
		degree: k - 1,
	}
}

// basis fills out with the k+1 non-zero basis functions at x on span l
// (The NURBS Book, A2.2).
func basis(knots []float64, k, l int, x float64, out []float64) {
	left := make([]float64, k+1)
	right := make([]float64, k+1)
	out[0] = 1
	for j := 1; j <= k; j++ {
		left[j] = x - knots[l+1-j]
		right[j] = knots[l+j] - x
		saved := 0.0
		for r := 0; r < j; r++ {
			temp := out[r] / (right[r+1] + left[j-r])
			out[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		out[j] = saved
	}
}

// clampedKnots builds a knot vector with degree+1 repeated end knots.
func clampedKnots(lo, hi float64, interior []float64, k int) []float64 {
	knots := make([]float64, 0, len(interior)+2*(k+1))
	for i := 0; i <= k; i++ {
		knots = append(knots, lo)
	}
	knots = append(knots, interior...)
	for i := 0; i <= k; i++ {
		knots = append(knots, hi)
	}
	return knots
}

// interpolationKnots places interior knots the way FITPACK does for s = 0:
// at data abscissae for odd degree and at midpoints for even degree.
func interpolationKnots(x []float64, k int) []float64 {
	count := len(x) - k - 1
	if count <= 0 {
		return nil
	}
	interior := make([]float64, count)
	k3 := k / 2
	for l := 0; l < count; l++ {
		j := k3 + 1 + l
		if k%2 == 1 {
			interior[l] = x[j]
		} else {
			interior[l] = (x[j] + x[j-1]) / 2
		}
	}
	return interior
}

// leastSquaresSpline solves for the coefficients on a fixed knot vector.
func leastSquaresSpline(x, y, knots []float64, k int) (*Spline, error) {
	n := len(knots) - k - 1
	m := len(x)
	a := mat.NewDense(m, n, nil)
	row := make([]float64, k+1)
	probe := &Spline{knots: knots, coeffs: make([]float64, n), degree: k}
	for i, xi := range x {
		l := probe.span(xi)
		basis(knots, k, l, xi, row)
		for j := 0; j <= k; j++ {
			a.Set(i, l-k+j, row[j])
		}
	}
	b := mat.NewVecDense(m, y)
	c := mat.NewVecDense(n, nil)

	qr := new(mat.QR)
	qr.Factorize(a)
	if err := qr.SolveVecTo(c, false, b); err != nil {
		return nil, err
	}
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = c.AtVec(i)
	}
	return &Spline{knots: knots, coeffs: coeffs, degree: k}, nil
}

// FitSpline fits a B-spline of degree k through (x, y). x must be strictly
// ascending. A smoothing factor of zero interpolates; a positive factor adds
// knots only until the residual sum of squares drops to s.
func FitSpline(x, y []float64, k int, s float64) (*Spline, error) {
	if k < 1 || k > maxDegree {
		return nil, stageErr(ErrFitDegenerate, StageFit, "degree %d outside 1..%d", k, maxDegree)
	}
	if s < 0 || math.IsNaN(s) {
		return nil, stageErr(ErrFitDegenerate, StageFit, "smoothing factor %v must be >= 0", s)
	}
	if len(x) != len(y) {
		return nil, stageErr(ErrFitDegenerate, StageFit, "%d abscissae for %d ordinates", len(x), len(y))
	}
	if len(x) < k+1 {
		return nil, stageErr(ErrFitDegenerate, StageFit, "%d points for degree %d, need %d", len(x), k, k+1)
	}
	lo, hi := x[0], x[len(x)-1]
	if s == 0 {
		sp, err := leastSquaresSpline(x, y, clampedKnots(lo, hi, interpolationKnots(x, k), k), k)
		if err != nil {
			return nil, &Error{Kind: ErrFitDegenerate, Stage: StageFit, Detail: "singular collocation system", Err: err}
		}
		return sp, nil
	}

	maxInterior := len(x) - k - 1
	var interior []float64
	for {
		sp, err := leastSquaresSpline(x, y, clampedKnots(lo, hi, interior, k), k)
		if err != nil {
			return nil, &Error{Kind: ErrFitDegenerate, Stage: StageFit, Detail: "singular least-squares system", Err: err}
		}
		if len(interior) >= maxInterior || residualSumSquares(sp, x, y) <= s {
			return sp, nil
		}
		next, ok := splitWorstInterval(sp, x, y, interior)
		if !ok {
			return sp, nil
		}
		interior = next
	}
}

func residualSumSquares(sp *Spline, x, y []float64) float64 {
	var sum float64
	for i := range x {
		r := y[i] - sp.Eval(x[i])
		sum += r * r
	}
	return sum
}

// splitWorstInterval inserts a knot at the middle data point of the knot
// interval with the largest residual sum of squares.
func splitWorstInterval(sp *Spline, x, y, interior []float64) ([]float64, bool) {
	bounds := make([]float64, 0, len(interior)+2)
	bounds = append(bounds, x[0])
	bounds = append(bounds, interior...)
	bounds = append(bounds, x[len(x)-1])

	bestErr := -1.0
	bestKnot := 0.0
	for i := 0; i+1 < len(bounds); i++ {
		var inside []int
		var fp float64
		for j, xj := range x {
			if xj < bounds[i] || xj > bounds[i+1] {
				continue
			}
			r := y[j] - sp.Eval(xj)
			fp += r * r
			if xj > bounds[i] && xj < bounds[i+1] {
				inside = append(inside, j)
			}
		}
		if len(inside) == 0 || fp <= bestErr {
			continue
		}
		bestErr = fp
		bestKnot = x[inside[len(inside)/2]]
	}
	if bestErr < 0 {
		return nil, false
	}
	next := append(append([]float64(nil), interior...), bestKnot)
	sort.Float64s(next)
	return next, true
}

// FitOptions configures the curve fitter.
type FitOptions struct {
	Degree    int
	Smoothing float64
}

// DefaultFitOptions is a quadratic interpolating spline.
func DefaultFitOptions() FitOptions {
	return FitOptions{Degree: DefaultDegree, Smoothing: DefaultSmoothing}
}

// Curve is void ratio as a function of log10(axial load) with its derivative.
type Curve struct {
	spline *Spline
	deriv  *Spline
	minLog float64
	maxLog float64
}

// FitCurve fits the series in log10(load) space.
func FitCurve(series Series, opts FitOptions) (*Curve, error) {
	xs := series.LogLoads()
	sp, err := FitSpline(xs, series.VoidRatios(), opts.Degree, opts.Smoothing)
	if err != nil {
		return nil, err
	}
	return &Curve{
		spline: sp,
		deriv:  sp.Derivative(),
		minLog: xs[0],
		maxLog: xs[len(xs)-1],
	}, nil
}

// At returns the void ratio at log10(load).
func (c *Curve) At(logLoad float64) float64 { return c.spline.Eval(logLoad) }

// Slope returns d(void ratio)/d(log10 load) at log10(load).
func (c *Curve) Slope(logLoad float64) float64 { return c.deriv.Eval(logLoad) }

// AtLoad returns the void ratio at an axial load.
func (c *Curve) AtLoad(load float64) float64 { return c.At(math.Log10(load)) }

// Domain returns the axial load range the curve was fitted on.
func (c *Curve) Domain() (lo, hi float64) {
	return math.Pow(10, c.minLog), math.Pow(10, c.maxLog)
}

// Spline exposes the underlying fitted spline.
func (c *Curve) Spline() *Spline { return c.spline }
