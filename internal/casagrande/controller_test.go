package casagrande

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKneeDragRoundTrip(t *testing.T) {
	s := loadedSession(t, scenarioPoints())
	before, _ := s.Estimate()

	drag := func(load float64) {
		t.Helper()
		if err := s.OnControlPointPressed(KneeControl()); err != nil {
			t.Fatalf("press failed: %v", err)
		}
		if s.State() != DraggingKnee {
			t.Fatalf("expected %s, got %s", DraggingKnee, s.State())
		}
		if !s.OnPointerMoved(load) {
			t.Fatalf("move to %v rejected", load)
		}
		if err := s.OnControlPointReleased(); err != nil {
			t.Fatalf("release failed: %v", err)
		}
		if s.State() != Idle {
			t.Fatalf("expected idle after release, got %s", s.State())
		}
	}

	drag(250)
	moved, _ := s.Estimate()
	if moved == before {
		t.Fatalf("estimate did not change after moving the knee")
	}
	if s.Candidates()[0] != 250 {
		t.Fatalf("candidates should start at the new knee, got %v", s.Candidates()[0])
	}

	drag(200)
	after, _ := s.Estimate()
	if math.Abs(after.Pressure-before.Pressure)/before.Pressure > 1e-6 {
		t.Fatalf("round trip changed pressure: %v -> %v", before.Pressure, after.Pressure)
	}
}

func TestKneeDragBoundsAreOpen(t *testing.T) {
	s := loadedSession(t, scenarioPoints())
	if err := s.OnControlPointPressed(KneeControl()); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	lo, hi, ok := s.DragBounds()
	if !ok || lo != 50 || hi != 400 {
		t.Fatalf("unexpected bounds (%v, %v, %v)", lo, hi, ok)
	}
	for _, load := range []float64{50, 400, 10, 5000, math.NaN()} {
		if s.OnPointerMoved(load) {
			t.Fatalf("move to %v should be ignored", load)
		}
	}
	if s.Knee().AxialLoad != 200 {
		t.Fatalf("knee moved to %v", s.Knee().AxialLoad)
	}
	if !s.OnPointerMoved(399) {
		t.Fatalf("move just inside the bound rejected")
	}
	if got, want := s.Knee().VoidRatio, s.Curve().AtLoad(399); got != want {
		t.Fatalf("knee not projected onto curve: %v vs %v", got, want)
	}
}

func TestVirginDragOutOfBoundsKeepsState(t *testing.T) {
	s := loadedSession(t, scenarioPoints())
	line := s.VirginLine()
	est, _ := s.Estimate()

	if err := s.OnControlPointPressed(VirginControl(0)); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	for _, load := range []float64{150, 200, 1600, 2000} {
		if s.OnPointerMoved(load) {
			t.Fatalf("move to %v should be ignored", load)
		}
	}
	if err := s.OnControlPointReleased(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if diff := cmp.Diff(line, s.VirginLine()); diff != "" {
		t.Fatalf("virgin line changed:\n%s", diff)
	}
	if got, _ := s.Estimate(); got != est {
		t.Fatalf("estimate changed: %+v vs %+v", est, got)
	}
}

func TestVirginDragRefitsLine(t *testing.T) {
	s := loadedSession(t, scenarioPoints())
	if err := s.OnControlPointPressed(VirginControl(1)); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if s.State() != DraggingVirginPoint {
		t.Fatalf("expected %s, got %s", DraggingVirginPoint, s.State())
	}
	if !s.OnPointerMoved(1000) {
		t.Fatalf("move rejected")
	}
	if err := s.OnControlPointReleased(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	line := s.VirginLine()
	if line.Points[1].AxialLoad != 1000 {
		t.Fatalf("expected moved point at 1000, got %v", line.Points[1].AxialLoad)
	}
	m, c, err := FitLogLine(line.Points)
	if err != nil {
		t.Fatalf("FitLogLine failed: %v", err)
	}
	if line.Slope != m || line.Intercept != c {
		t.Fatalf("line not refitted: %v %v vs %v %v", line.Slope, line.Intercept, m, c)
	}
}

func TestFailedReleaseRestoresPreviousEstimate(t *testing.T) {
	s := loadedSession(t, scenarioPoints())
	line := s.VirginLine()
	est, _ := s.Estimate()

	if err := s.OnControlPointPressed(VirginControl(0)); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if !s.OnPointerMoved(800) {
		t.Fatalf("move rejected")
	}
	err := s.OnControlPointReleased()
	if !errors.Is(err, ErrInsufficientVirginPoints) {
		t.Fatalf("expected ErrInsufficientVirginPoints, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Stage != StageRecompute {
		t.Fatalf("expected recompute stage error, got %v", err)
	}
	if s.State() != Idle {
		t.Fatalf("expected idle after failed release")
	}
	if diff := cmp.Diff(line, s.VirginLine()); diff != "" {
		t.Fatalf("virgin line not rolled back:\n%s", diff)
	}
	if got, ok := s.Estimate(); !ok || got != est {
		t.Fatalf("previous estimate not retained: %+v", got)
	}
}

func TestCancelDragRestoresControlPoints(t *testing.T) {
	s := loadedSession(t, scenarioPoints())
	knee := s.Knee()
	line := s.VirginLine()
	est, _ := s.Estimate()

	if err := s.OnControlPointPressed(KneeControl()); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if !s.OnPointerMoved(300) {
		t.Fatalf("move rejected")
	}
	s.CancelDrag()
	if s.State() != Idle {
		t.Fatalf("expected idle after cancel, got %s", s.State())
	}
	if s.Knee() != knee {
		t.Fatalf("knee not restored: %+v vs %+v", s.Knee(), knee)
	}

	if err := s.OnControlPointPressed(VirginControl(1)); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if !s.OnPointerMoved(1000) {
		t.Fatalf("move rejected")
	}
	s.CancelDrag()
	if diff := cmp.Diff(line, s.VirginLine()); diff != "" {
		t.Fatalf("virgin line not restored:\n%s", diff)
	}
	if got, ok := s.Estimate(); !ok || got != est {
		t.Fatalf("estimate changed by cancel: %+v", got)
	}

	s.CancelDrag()
	if s.State() != Idle {
		t.Fatalf("cancel while idle must be a no-op")
	}
}

func TestPressErrors(t *testing.T) {
	empty := NewSession(DefaultOptions())
	if err := empty.OnControlPointPressed(KneeControl()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	s := loadedSession(t, scenarioPoints())
	if err := s.OnControlPointPressed(VirginControl(5)); !errors.Is(err, ErrUnknownControlPoint) {
		t.Fatalf("expected ErrUnknownControlPoint, got %v", err)
	}
	if s.State() != Idle {
		t.Fatalf("failed press must not start a drag")
	}
	if err := s.OnControlPointPressed(KneeControl()); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if err := s.OnControlPointPressed(VirginControl(0)); !errors.Is(err, ErrDragInProgress) {
		t.Fatalf("expected ErrDragInProgress, got %v", err)
	}
	if id, ok := s.DragTarget(); !ok || id != KneeControl() {
		t.Fatalf("drag target changed to %v", id)
	}
}

func TestReleaseWhenIdleIsNoop(t *testing.T) {
	s := loadedSession(t, scenarioPoints())
	est, _ := s.Estimate()
	if err := s.OnControlPointReleased(); err != nil {
		t.Fatalf("idle release failed: %v", err)
	}
	if s.OnPointerMoved(300) {
		t.Fatalf("move while idle should be ignored")
	}
	if got, _ := s.Estimate(); got != est {
		t.Fatalf("estimate changed")
	}
}

func TestControlPoints(t *testing.T) {
	s := loadedSession(t, scenarioPoints())
	cps := s.ControlPoints()
	if len(cps) != 3 {
		t.Fatalf("expected knee plus two virgin points, got %d", len(cps))
	}
	if cps[0].ID != KneeControl() || cps[0].AxialLoad != 200 {
		t.Fatalf("first control point should be the knee, got %+v", cps[0])
	}
	if cps[2].ID != VirginControl(1) || cps[2].AxialLoad != 800 {
		t.Fatalf("unexpected last control point %+v", cps[2])
	}
	if VirginControl(1).String() != "virgin point 2" {
		t.Fatalf("unexpected label %q", VirginControl(1).String())
	}
}
