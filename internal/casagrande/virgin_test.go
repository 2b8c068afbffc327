package casagrande

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFitLogLineCollinear(t *testing.T) {
	pts := []SamplePoint{
		{AxialLoad: 10, VoidRatio: 0.5},
		{AxialLoad: 100, VoidRatio: 0},
		{AxialLoad: 1000, VoidRatio: -0.5},
	}
	m, c, err := FitLogLine(pts)
	if err != nil {
		t.Fatalf("FitLogLine failed: %v", err)
	}
	if !closeTo(m, -0.5, 1e-12) || !closeTo(c, 1, 1e-12) {
		t.Fatalf("expected slope -0.5 intercept 1, got %v %v", m, c)
	}
}

func TestFitLogLineRejectsSharedLoad(t *testing.T) {
	pts := []SamplePoint{{AxialLoad: 800, VoidRatio: 0.4}, {AxialLoad: 800, VoidRatio: 0.4}}
	if _, _, err := FitLogLine(pts); !errors.Is(err, ErrInsufficientVirginPoints) {
		t.Fatalf("expected ErrInsufficientVirginPoints, got %v", err)
	}
}

func TestSolveVirginLineScenario(t *testing.T) {
	series := mustSeries(t, scenarioPoints())
	line, err := SolveVirginLine(series, newKneePoint(200, 0.78), VirginOptions{})
	if err != nil {
		t.Fatalf("SolveVirginLine failed: %v", err)
	}
	want := []SamplePoint{{AxialLoad: 400, VoidRatio: 0.60}, {AxialLoad: 800, VoidRatio: 0.40}}
	if diff := cmp.Diff(want, line.Points); diff != "" {
		t.Fatalf("virgin points mismatch (-want +got):\n%s", diff)
	}
	wantSlope := -0.2 / math.Log10(2)
	if !closeTo(line.Slope, wantSlope, 1e-9) {
		t.Fatalf("slope %v, want %v", line.Slope, wantSlope)
	}
	if !closeTo(line.At(400), 0.60, 1e-9) {
		t.Fatalf("line misses its first point: %v", line.At(400))
	}
	if line.MinLoad() != 400 {
		t.Fatalf("expected min load 400, got %v", line.MinLoad())
	}
}

func TestSolveVirginLineNeedsTwoPointsBeyondKnee(t *testing.T) {
	series := mustSeries(t, scenarioPoints())

	line, err := SolveVirginLine(series, newKneePoint(400, 0.60), VirginOptions{})
	if err != nil {
		t.Fatalf("two points beyond knee should succeed: %v", err)
	}
	if len(line.Points) != 2 {
		t.Fatalf("expected both remaining points, got %d", len(line.Points))
	}

	_, err = SolveVirginLine(series, newKneePoint(800, 0.40), VirginOptions{})
	if !errors.Is(err, ErrInsufficientVirginPoints) {
		t.Fatalf("expected ErrInsufficientVirginPoints, got %v", err)
	}
}

func TestSolveVirginLineWindowedMatchesExhaustive(t *testing.T) {
	series := mustSeries(t, scenarioPoints())
	knee := newKneePoint(200, 0.78)
	full, err := SolveVirginLine(series, knee, VirginOptions{MaxExhaustive: 16})
	if err != nil {
		t.Fatalf("exhaustive search failed: %v", err)
	}
	windowed, err := SolveVirginLine(series, knee, VirginOptions{MaxExhaustive: 2})
	if err != nil {
		t.Fatalf("windowed search failed: %v", err)
	}
	if diff := cmp.Diff(full, windowed); diff != "" {
		t.Fatalf("windowed result differs (-exhaustive +windowed):\n%s", diff)
	}
}

func TestCombinationsLexicographic(t *testing.T) {
	var got [][]int
	combinations(5, 3, func(idx []int) bool {
		got = append(got, append([]int(nil), idx...))
		return true
	})
	if len(got) != 10 {
		t.Fatalf("expected 10 combinations, got %d", len(got))
	}
	if diff := cmp.Diff([]int{0, 1, 2}, got[0]); diff != "" {
		t.Fatalf("first combination mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3, 4}, got[9]); diff != "" {
		t.Fatalf("last combination mismatch:\n%s", diff)
	}

	calls := 0
	combinations(5, 2, func([]int) bool {
		calls++
		return calls < 3
	})
	if calls != 3 {
		t.Fatalf("expected early stop after 3 calls, got %d", calls)
	}
}
