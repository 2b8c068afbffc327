package casagrande

import (
	"errors"
	"math"
	"testing"
)

func TestIntersectRefinesCrossing(t *testing.T) {
	bisector := AnchoredLine{Slope: -0.1, LogLoad: 2, VoidRatio: 1}
	virgin := VirginLine{Slope: -0.5, Intercept: 2.2}
	est, err := Intersect(bisector, virgin, Linspace(100, 10000, 10000))
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	want := math.Pow(10, 2.5)
	if math.Abs(est.Pressure-want)/want > 1e-9 {
		t.Fatalf("pressure %v, want %v", est.Pressure, want)
	}
	if !closeTo(est.VoidRatio, 0.95, 1e-9) {
		t.Fatalf("void ratio %v, want 0.95", est.VoidRatio)
	}
}

func TestIntersectFallsBackToTolerance(t *testing.T) {
	bisector := AnchoredLine{Slope: 0, LogLoad: 2, VoidRatio: 1}
	virgin := VirginLine{Slope: 0, Intercept: 1.05}
	candidates := Linspace(100, 1000, 50)
	est, err := Intersect(bisector, virgin, candidates)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	if est.Pressure != candidates[0] || est.VoidRatio != 1 {
		t.Fatalf("expected first candidate at void ratio 1, got %+v", est)
	}
}

func TestIntersectNoCrossing(t *testing.T) {
	bisector := AnchoredLine{Slope: 0, LogLoad: 2, VoidRatio: 1}
	virgin := VirginLine{Slope: 0, Intercept: 0}
	_, err := Intersect(bisector, virgin, Linspace(100, 1000, 50))
	if !errors.Is(err, ErrNoIntersectionFound) {
		t.Fatalf("expected ErrNoIntersectionFound, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Stage != StageIntersect {
		t.Fatalf("expected intersect stage error, got %v", err)
	}

	if _, err := Intersect(bisector, virgin, nil); !errors.Is(err, ErrNoIntersectionFound) {
		t.Fatalf("expected ErrNoIntersectionFound for empty candidates, got %v", err)
	}
}

func TestSolveITP(t *testing.T) {
	f := func(x float64) float64 { return x*x - 2 }
	root := SolveITP(f, 0, 2, 1e-12, 1, 0.1, -2, 2)
	if !closeTo(root, math.Sqrt2, 1e-10) {
		t.Fatalf("root %v, want %v", root, math.Sqrt2)
	}
}
