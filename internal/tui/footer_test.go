package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/verte-zerg/preconsol/internal/casagrande"
)

func TestRenderFooterFormats(t *testing.T) {
	m := newTestModel(t, nil)
	est, ok := m.session.Estimate()
	if !ok {
		t.Fatalf("expected an estimate")
	}
	out := m.renderFooter()
	want := []string{
		fmt.Sprintf("p'c %.1f kPa", est.Pressure),
		fmt.Sprintf("e %.3f", est.VoidRatio),
		"Selected knee",
		"idle",
		"Quit: q",
	}
	if !containsAll(out, want) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
	if strings.Contains(out, "pointer") {
		t.Fatalf("pointer must only show while dragging: %s", out)
	}
}

func TestRenderFooterWhileDragging(t *testing.T) {
	m := newTestModel(t, nil)
	sendKeys(m, spaceKey())
	out := m.renderFooter()
	if !containsAll(out, []string{casagrande.DraggingKnee.String(), "pointer 200.0 kPa"}) {
		t.Fatalf("footer missing drag segments: %s", out)
	}
}

func TestRenderFooterShowsError(t *testing.T) {
	m := newTestModel(t, nil)
	m.errMsg = "boom"
	out := m.renderFooter()
	if !strings.Contains(out, "boom") {
		t.Fatalf("footer missing error: %s", out)
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Fatalf("expected three footer lines, got %d", got+1)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
