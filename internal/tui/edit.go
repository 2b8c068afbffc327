package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cast"

	"github.com/verte-zerg/preconsol/internal/casagrande"
)

func newEditInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// startEdit opens the form for the sample point under the table cursor.
func (m *Model) startEdit() tea.Cmd {
	if len(m.samples) == 0 {
		m.errMsg = errNoSamples
		return nil
	}
	row := m.pointsTable.Cursor()
	pts := m.samples[m.current].Points
	if row < 0 || row >= len(pts) {
		m.errMsg = "control points are moved by dragging"
		return nil
	}
	p := pts[row]
	m.editInputs = []textinput.Model{
		newEditInput("Load [kPa]: "),
		newEditInput("Void ratio: "),
	}
	m.editInputs[0].SetValue(strconv.FormatFloat(p.AxialLoad, 'g', -1, 64))
	m.editInputs[1].SetValue(strconv.FormatFloat(p.VoidRatio, 'g', -1, 64))
	m.editRow = row
	m.editMode = true
	m.editErr = ""
	m.errMsg = ""
	m.status = ""
	return m.setEditIndex(0)
}

func (m *Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editMode = false
		m.editErr = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyEdit(); err != nil {
			m.editErr = err.Error()
			return m, nil
		}
		m.editMode = false
		m.editErr = ""
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setEditIndex(m.editIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setEditIndex(m.editIndex - 1)
	}
	var cmd tea.Cmd
	m.editInputs[m.editIndex], cmd = m.editInputs[m.editIndex].Update(msg)
	return m, cmd
}

func (m *Model) setEditIndex(idx int) tea.Cmd {
	count := len(m.editInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.editIndex = idx
	var cmd tea.Cmd
	for i := range m.editInputs {
		if i == m.editIndex {
			cmd = m.editInputs[i].Focus()
		} else {
			m.editInputs[i].Blur()
		}
	}
	return cmd
}

// applyEdit replaces the edited point and re-runs the estimate. Input that
// does not parse leaves the sample untouched. A sample that no longer
// estimates is kept and the error is shown in the footer.
func (m *Model) applyEdit() error {
	load, err := parseEditValue(m.editInputs[0].Value(), "load")
	if err != nil {
		return err
	}
	if !(load > 0) {
		return fmt.Errorf("load must be positive, got %v", load)
	}
	voids, err := parseEditValue(m.editInputs[1].Value(), "void ratio")
	if err != nil {
		return err
	}
	sample := &m.samples[m.current]
	pts := append([]casagrande.SamplePoint(nil), sample.Points...)
	pts[m.editRow] = casagrande.SamplePoint{AxialLoad: load, VoidRatio: voids}
	sample.Points = pts
	m.reloadSession()
	if m.errMsg == "" {
		m.status = fmt.Sprintf("updated point %d", m.editRow+1)
	}
	return nil
}

func parseEditValue(raw, field string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s %q", field, raw)
	}
	return v, nil
}

func (m *Model) renderEditForm() string {
	lines := []string{fmt.Sprintf("Point %d (enter to apply, esc to cancel)", m.editRow+1)}
	for _, input := range m.editInputs {
		lines = append(lines, input.View())
	}
	if m.editErr != "" {
		lines = append(lines, errorStyle.Render(m.editErr))
	}
	return strings.Join(lines, "\n")
}
