package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/preconsol/internal/casagrande"
)

func openPointsTab(t *testing.T, m *Model, row int) {
	t.Helper()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	sendKeys(m, tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabPoints {
		t.Fatalf("expected points tab, got %d", m.activeTab)
	}
	for i := 0; i < row; i++ {
		sendKeys(m, tea.KeyMsg{Type: tea.KeyDown})
	}
	if got := m.pointsTable.Cursor(); got != row {
		t.Fatalf("table cursor %d, want %d", got, row)
	}
}

func typeText(m *Model, text string) {
	sendKeys(m, tea.KeyMsg{Type: tea.KeyCtrlU}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestEditPointReestimates(t *testing.T) {
	m := newTestModel(t, nil)
	before, _ := m.session.Estimate()
	openPointsTab(t, m, 3)

	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editMode || m.editRow != 3 {
		t.Fatalf("expected edit form for row 3, got mode %v row %d", m.editMode, m.editRow)
	}
	if got := []string{m.editInputs[0].Value(), m.editInputs[1].Value()}; !cmp.Equal(got, []string{"400", "0.6"}) {
		t.Fatalf("inputs not prefilled: %v", got)
	}
	if !strings.Contains(m.View(), "Point 4 (enter to apply, esc to cancel)") {
		t.Fatalf("edit form not rendered: %s", m.View())
	}

	sendKeys(m, tea.KeyMsg{Type: tea.KeyTab})
	typeText(m, "0.62")
	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editMode {
		t.Fatalf("enter should close the form, error %q", m.editErr)
	}
	want := casagrande.SamplePoint{AxialLoad: 400, VoidRatio: 0.62}
	if got := m.samples[0].Points[3]; got != want {
		t.Fatalf("point not updated: %+v", got)
	}
	if !m.session.Loaded() || m.session.Series().At(3) != want {
		t.Fatalf("session not reloaded with the edited point")
	}
	if after, _ := m.session.Estimate(); after == before {
		t.Fatalf("estimate unchanged after editing a point")
	}
	if m.status != "updated point 4" {
		t.Fatalf("unexpected status %q", m.status)
	}
	if got := m.pointsTable.Rows()[3][2]; got != "0.620" {
		t.Fatalf("table row not refreshed: %q", got)
	}
}

func TestEditPointDoesNotTouchCallerSamples(t *testing.T) {
	samples := testSamples()
	m := NewModel(Options{Samples: samples, Engine: casagrande.DefaultOptions()})
	openPointsTab(t, m, 0)
	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
	typeText(m, "60")
	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.samples[0].Points[0].AxialLoad != 60 {
		t.Fatalf("edit not applied: %+v", m.samples[0].Points[0])
	}
	if samples[0].Points[0].AxialLoad != 50 {
		t.Fatalf("caller samples modified: %+v", samples[0].Points[0])
	}
}

func TestEditRejectsInvalidInput(t *testing.T) {
	m := newTestModel(t, nil)
	original := append([]casagrande.SamplePoint(nil), m.samples[0].Points...)
	openPointsTab(t, m, 2)
	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})

	cases := []struct {
		field int
		text  string
		want  string
	}{
		{field: 0, text: "abc", want: `invalid load "abc"`},
		{field: 0, text: "-5", want: "load must be positive"},
		{field: 1, text: "", want: "void ratio is required"},
	}
	for _, tc := range cases {
		m.editInputs[0].SetValue("200")
		m.editInputs[1].SetValue("0.78")
		for m.editIndex != tc.field {
			sendKeys(m, tea.KeyMsg{Type: tea.KeyTab})
		}
		typeText(m, tc.text)
		sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
		if !m.editMode {
			t.Fatalf("%q: form closed on invalid input", tc.text)
		}
		if !strings.Contains(m.editErr, tc.want) {
			t.Fatalf("%q: error %q, want %q", tc.text, m.editErr, tc.want)
		}
	}
	if diff := cmp.Diff(original, m.samples[0].Points); diff != "" {
		t.Fatalf("invalid input changed the sample:\n%s", diff)
	}

	sendKeys(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.editMode || m.editErr != "" {
		t.Fatalf("esc should close the form")
	}
	if m.session.State() != casagrande.Idle || m.status != "" {
		t.Fatalf("esc in the form must not touch the session")
	}
}

func TestEditControlRowRefused(t *testing.T) {
	m := newTestModel(t, nil)
	sendKeys(m, spaceKey())
	for i := 0; i < 3; i++ {
		sendKeys(m, tea.KeyMsg{Type: tea.KeyRight})
	}
	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
	openPointsTab(t, m, 0)

	rows := m.pointsTable.Rows()
	if len(rows) != len(m.samples[0].Points)+1 {
		t.Fatalf("expected the moved knee as an extra row, got %d rows", len(rows))
	}
	m.pointsTable.SetCursor(len(rows) - 1)
	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editMode {
		t.Fatalf("control rows must not open the form")
	}
	if m.errMsg != "control points are moved by dragging" {
		t.Fatalf("unexpected error %q", m.errMsg)
	}
}

func TestEditShortSampleShowsRows(t *testing.T) {
	m := newTestModel(t, nil)
	sendKeys(m, runeKey(']'), runeKey(']'))
	if m.session.Loaded() {
		t.Fatalf("short sample should not load")
	}
	openPointsTab(t, m, 1)
	if !strings.Contains(m.View(), "100.0") {
		t.Fatalf("raw points should be listed without an estimate: %s", m.View())
	}
	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editMode {
		t.Fatalf("raw points stay editable when the sample does not estimate")
	}
	typeText(m, "150")
	sendKeys(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editMode || m.samples[2].Points[1].AxialLoad != 150 {
		t.Fatalf("edit not applied: %+v", m.samples[2].Points[1])
	}
	if m.errMsg == "" || m.status != "" {
		t.Fatalf("two points still cannot estimate, got err %q status %q", m.errMsg, m.status)
	}
}

func TestPointRowsMarkDroppedPoints(t *testing.T) {
	raw := []casagrande.SamplePoint{
		{AxialLoad: 50, VoidRatio: 0.90},
		{AxialLoad: 100, VoidRatio: 0.88},
		{AxialLoad: 75, VoidRatio: 0.89},
		{AxialLoad: 200, VoidRatio: 0.78},
	}
	got := buildPointRows(raw, casagrande.NewSession(casagrande.DefaultOptions()))
	want := []table.Row{
		{"1", "50.0", "0.900", "-"},
		{"2", "100.0", "0.880", "-"},
		{"3", "75.0", "0.890", "dropped"},
		{"4", "200.0", "0.780", "-"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}
