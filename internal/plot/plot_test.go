package plot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/preconsol/internal/casagrande"
)

func scenarioFigure(t *testing.T) casagrande.Figure {
	t.Helper()
	opts := casagrande.DefaultOptions()
	opts.Linspace = 200
	s := casagrande.NewSession(opts)
	err := s.LoadSeries([]casagrande.SamplePoint{
		{AxialLoad: 50, VoidRatio: 0.90},
		{AxialLoad: 100, VoidRatio: 0.88},
		{AxialLoad: 200, VoidRatio: 0.78},
		{AxialLoad: 400, VoidRatio: 0.60},
		{AxialLoad: 800, VoidRatio: 0.40},
		{AxialLoad: 1600, VoidRatio: 0.25},
	})
	if err != nil {
		t.Fatalf("LoadSeries failed: %v", err)
	}
	return s.Figure()
}

func TestRenderFigure(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, scenarioFigure(t), Options{Width: 60, Height: 12}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no colour for a non-terminal writer")
	}
	if !strings.Contains(out, "Preconsolidation Pressure:") {
		t.Fatalf("expected estimate label in output")
	}
	if !strings.Contains(out, "Axial Load") {
		t.Fatalf("expected axis label in output")
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 12+3 {
		t.Fatalf("expected 15 lines, got %d", len(lines))
	}
	for _, tick := range []string{"10", "100", "1000", "10000"} {
		if !strings.Contains(lines[12], tick) {
			t.Fatalf("expected tick %s on x axis line %q", tick, lines[12])
		}
	}
	drawn := false
	for _, line := range lines[:12] {
		if strings.ContainsFunc(line, func(r rune) bool { return r > 0x2800 && r <= 0x28FF }) {
			drawn = true
		}
	}
	if !drawn {
		t.Fatalf("expected braille dots in plot area")
	}
}

func TestStringWithColorAndMarker(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	fig := scenarioFigure(t)
	marker := casagrande.XY{X: 200, Y: 0.78}
	out := String(fig, Options{Width: 40, Height: 10, ForceColor: true, Marker: &marker})
	if !strings.Contains(out, markerColor) {
		t.Fatalf("expected marker colour in output")
	}
	if !strings.Contains(out, colorReset) {
		t.Fatalf("expected colour reset in output")
	}
}

func TestRenderEmptyFigure(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, casagrande.Figure{}, Options{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for an empty figure")
	}
}

func TestPlotWidthFor(t *testing.T) {
	axisWidth := axisLabelWidth + runewidth.StringWidth(axisSeparator)
	if got := PlotWidthFor(100); got != 100-axisWidth {
		t.Fatalf("expected width %d, got %d", 100-axisWidth, got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}

func TestAxesDotLogScale(t *testing.T) {
	fig := casagrande.Figure{LogX: true, XMin: 10, XMax: 1000, YMin: 0, YMax: 1}
	ax := newAxes(fig, 11, 3)
	x, y, ok := ax.dot(casagrande.XY{X: 1000, Y: 1})
	if !ok || x != 21 || y != 0 {
		t.Fatalf("expected (21, 0), got (%d, %d, %v)", x, y, ok)
	}
	x, y, ok = ax.dot(casagrande.XY{X: 10, Y: 0})
	if !ok || x != 0 || y != 11 {
		t.Fatalf("expected (0, 11), got (%d, %d, %v)", x, y, ok)
	}
	if _, _, ok := ax.dot(casagrande.XY{X: 5000, Y: 0.5}); ok {
		t.Fatalf("points outside the axes must be dropped")
	}
}
