// Package tui provides the Bubble Tea shell for adjusting an estimate.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/preconsol/internal/casagrande"
	"github.com/verte-zerg/preconsol/internal/model"
	"github.com/verte-zerg/preconsol/internal/plot"
)

const (
	tabPlot = iota
	tabPoints
)

const (
	coarseStep = 0.02
	fineStep   = 0.002
)

const errNoSamples = "no samples loaded"

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Saver persists accepted estimates.
type Saver interface {
	SaveEstimate(ctx context.Context, rec model.EstimateRecord) (string, error)
}

// ExportFunc writes an export request to disk.
type ExportFunc func(req casagrande.ExportRequest) error

// Options configures the shell.
type Options struct {
	Samples   []model.Sample
	Start     int
	Engine    casagrande.Options
	Saver     Saver
	Export    ExportFunc
	ExportDir string
}

// Model implements the interactive estimate editor.
type Model struct {
	samples   []model.Sample
	current   int
	session   *casagrande.Session
	saver     Saver
	export    ExportFunc
	exportDir string

	width  int
	height int

	tabs        []string
	activeTab   int
	pointsTable table.Model

	selected int
	pointer  float64
	status   string
	errMsg   string

	editMode   bool
	editRow    int
	editIndex  int
	editInputs []textinput.Model
	editErr    string
}

// NewModel constructs the shell and loads the starting sample.
func NewModel(opts Options) *Model {
	m := &Model{
		samples:   append([]model.Sample(nil), opts.Samples...),
		session:   casagrande.NewSession(opts.Engine),
		saver:     opts.Saver,
		export:    opts.Export,
		exportDir: opts.ExportDir,
		tabs:      []string{"Plot", "Points"},
	}
	m.pointsTable = table.New(
		table.WithColumns(pointsColumns()),
		table.WithHeight(1),
	)
	m.pointsTable.SetStyles(pointsTableStyles())
	start := opts.Start
	if start < 0 || start >= len(m.samples) {
		start = 0
	}
	if len(m.samples) > 0 {
		m.loadSample(start)
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.releaseDrag()
		return m, tea.Quit
	}
	if m.editMode {
		return m.updateEdit(msg)
	}
	if msg.Type == tea.KeySpace {
		m.pressSelected()
		return m, nil
	}
	dragging := m.session.State() != casagrande.Idle
	switch msg.String() {
	case "q":
		m.releaseDrag()
		return m, tea.Quit
	case "tab":
		if !dragging {
			m.selectNext()
		}
	case "left", "h":
		if dragging {
			m.movePointer(-coarseStep)
		} else {
			m.moveTab(-1)
		}
	case "right", "l":
		if dragging {
			m.movePointer(coarseStep)
		} else {
			m.moveTab(1)
		}
	case "shift+left", "H":
		m.movePointer(-fineStep)
	case "shift+right", "L":
		m.movePointer(fineStep)
	case "enter":
		if dragging {
			m.releaseDrag()
		} else if m.activeTab == tabPoints {
			return m, m.startEdit()
		}
	case "esc":
		if dragging {
			m.cancelDrag()
		}
	case "[":
		m.switchSample(-1)
	case "]":
		m.switchSample(1)
	case "s":
		m.saveEstimate()
	case "e":
		m.exportImage()
	default:
		if m.activeTab == tabPoints {
			var cmd tea.Cmd
			m.pointsTable, cmd = m.pointsTable.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	_, bodyHeight, _ := m.layoutHeights()
	header := m.renderHeader()
	body := m.renderBody(bodyHeight)
	footer := padLines(m.renderFooter(), m.width)
	return header + "\n" + body + "\n" + footer
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 2
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	_, bodyHeight, _ := m.layoutHeights()
	m.pointsTable.SetWidth(m.width)
	m.pointsTable.SetHeight(maxInt(1, bodyHeight-2))
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	return tabs + "\n" + padLine(m.renderSampleSummary(), m.width)
}

func (m *Model) renderSampleSummary() string {
	if len(m.samples) == 0 {
		return headerStyle.Render("No samples loaded.")
	}
	sample := m.samples[m.current]
	summary := fmt.Sprintf("Sample %d/%d: %s  (%s)", m.current+1, len(m.samples), sample.Name, sample.Source)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderBody(height int) string {
	if m.editMode {
		return fitLines(m.renderEditForm(), m.width, height)
	}
	if m.activeTab == tabPoints && len(m.samples) > 0 {
		view := tableMutedStyle.Render(m.pointsTable.View())
		if m.session.Loaded() {
			view += "\n" + m.renderControlSummary()
		}
		return fitLines(view, m.width, height)
	}
	if !m.session.Loaded() {
		return fitLines("No estimate for this sample.", m.width, height)
	}
	opts := plot.Options{
		Width:      plot.PlotWidthFor(m.width),
		Height:     maxInt(4, height-3),
		ForceColor: true,
	}
	if cp, ok := m.selectedControl(); ok {
		opts.Marker = &casagrande.XY{X: cp.AxialLoad, Y: cp.VoidRatio}
	}
	return fitLines(plot.String(m.session.Figure(), opts), m.width, height)
}

func (m *Model) renderControlSummary() string {
	cps := m.session.ControlPoints()
	parts := make([]string, 0, len(cps))
	for i, cp := range cps {
		mark := " "
		if i == m.selected {
			mark = "*"
		}
		parts = append(parts, fmt.Sprintf("%s%s %.1f kPa", mark, cp.ID, cp.AxialLoad))
	}
	return headerStyle.Render(strings.Join(parts, "  "))
}

func (m *Model) renderHelp() string {
	if m.editMode {
		return headerStyle.Render(truncateLine("tab/shift+tab: next field  enter: apply  esc: cancel  quit: ctrl+c", m.width))
	}
	help := "Select: tab  Drag: space  Move: left/right (shift fine)  Release: enter  Cancel: esc  Sample: [/]  Save: s  Export: e  Quit: q"
	if m.session.State() == casagrande.Idle {
		if m.activeTab == tabPoints {
			help = "Edit: enter  " + help
		}
		help = "Nav: left/right  " + help
	}
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderStatus() string {
	segments := []string{}
	if est, ok := m.session.Estimate(); ok {
		segments = append(segments,
			fmt.Sprintf("p'c %.1f kPa", est.Pressure),
			fmt.Sprintf("e %.3f", est.VoidRatio),
		)
	} else {
		segments = append(segments, "p'c -")
	}
	if cp, ok := m.selectedControl(); ok {
		segments = append(segments, "Selected "+cp.ID.String())
	}
	segments = append(segments, m.session.State().String())
	if m.session.State() != casagrande.Idle {
		segments = append(segments, fmt.Sprintf("pointer %.1f kPa", m.pointer))
	}
	line := footerStyle.Render(strings.Join(segments, " · "))
	if m.status != "" {
		line += "  " + statusStyle.Render(m.status)
	}
	return line
}

func (m *Model) renderFooter() string {
	footer := m.renderStatus() + "\n" + m.renderHelp()
	if m.errMsg != "" {
		footer += "\n" + errorStyle.Render(m.errMsg)
	}
	return footer
}

func (m *Model) moveTab(delta int) {
	if len(m.tabs) == 0 {
		return
	}
	m.activeTab = (m.activeTab + delta + len(m.tabs)) % len(m.tabs)
	if m.activeTab == tabPoints {
		m.pointsTable.Focus()
	} else {
		m.pointsTable.Blur()
	}
}

func (m *Model) loadSample(i int) {
	if i < 0 || i >= len(m.samples) {
		m.errMsg = errNoSamples
		return
	}
	m.current = i
	m.reloadSession()
}

// reloadSession re-runs the pipeline on the current sample's points.
func (m *Model) reloadSession() {
	m.selected = 0
	m.pointer = 0
	m.status = ""
	m.errMsg = ""
	if err := m.session.LoadSeries(m.samples[m.current].Points); err != nil {
		m.errMsg = err.Error()
	}
	m.refreshPoints()
}

func (m *Model) switchSample(delta int) {
	if len(m.samples) < 2 {
		return
	}
	if m.session.State() != casagrande.Idle {
		m.errMsg = "release the control point before switching samples"
		return
	}
	m.loadSample((m.current + delta + len(m.samples)) % len(m.samples))
	m.updateLayout()
}

func (m *Model) selectedControl() (casagrande.ControlPoint, bool) {
	cps := m.session.ControlPoints()
	if m.selected < 0 || m.selected >= len(cps) {
		return casagrande.ControlPoint{}, false
	}
	return cps[m.selected], true
}

func (m *Model) selectNext() {
	cps := m.session.ControlPoints()
	if len(cps) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(cps)
	m.status = ""
}

func (m *Model) pressSelected() {
	cp, ok := m.selectedControl()
	if !ok {
		return
	}
	if err := m.session.OnControlPointPressed(cp.ID); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.pointer = cp.AxialLoad
	m.errMsg = ""
	m.status = ""
}

// movePointer shifts the pointer by step decades. Moves that leave the
// drag interval are dropped and the pointer stays put.
func (m *Model) movePointer(step float64) {
	if m.session.State() == casagrande.Idle {
		return
	}
	next := m.pointer * math.Pow(10, step)
	if !m.session.OnPointerMoved(next) {
		lo, hi, _ := m.session.DragBounds()
		m.status = fmt.Sprintf("limit reached (%.1f, %.1f) kPa", lo, hi)
		return
	}
	m.pointer = next
	m.status = ""
	m.refreshPoints()
}

func (m *Model) cancelDrag() {
	if m.session.State() == casagrande.Idle {
		return
	}
	m.session.CancelDrag()
	if cp, ok := m.selectedControl(); ok {
		m.pointer = cp.AxialLoad
	}
	m.status = "drag cancelled"
	m.refreshPoints()
}

func (m *Model) releaseDrag() {
	if m.session.State() == casagrande.Idle {
		return
	}
	if err := m.session.OnControlPointReleased(); err != nil {
		m.errMsg = err.Error()
	} else {
		m.errMsg = ""
		m.status = ""
	}
	m.refreshPoints()
}

func (m *Model) saveEstimate() {
	if len(m.samples) == 0 {
		m.errMsg = errNoSamples
		return
	}
	if m.saver == nil {
		m.errMsg = "no store configured"
		return
	}
	if m.session.State() != casagrande.Idle {
		m.errMsg = "release the control point before saving"
		return
	}
	rec, ok := model.NewEstimateRecord(m.samples[m.current], m.session)
	if !ok {
		m.errMsg = "no estimate to save"
		return
	}
	id, err := m.saver.SaveEstimate(context.Background(), rec)
	if err != nil {
		m.errMsg = err.Error()
		logErrf("failed to save estimate: %v\n", err)
		return
	}
	m.errMsg = ""
	m.status = "saved " + id
}

func (m *Model) exportImage() {
	if len(m.samples) == 0 {
		m.errMsg = errNoSamples
		return
	}
	if m.export == nil {
		m.errMsg = "export is not configured"
		return
	}
	path := filepath.Join(m.exportDir, m.samples[m.current].FileStem()+".png")
	req, err := m.session.ExportImage(path)
	if err == nil {
		err = m.export(req)
	}
	if err != nil {
		if !errors.Is(err, casagrande.ErrNoSession) {
			logErrf("failed to export %s: %v\n", path, err)
		}
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.status = "exported " + req.Path
}

func (m *Model) refreshPoints() {
	var raw []casagrande.SamplePoint
	if len(m.samples) > 0 {
		raw = m.samples[m.current].Points
	}
	m.pointsTable.SetRows(buildPointRows(raw, m.session))
}

func pointsColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Load [kPa]", Width: 12},
		{Title: "Void ratio", Width: 12},
		{Title: "Role", Width: 16},
	}
}

// buildPointRows lists every raw sample point, so row i is point i, followed
// by control points that do not sit on a sample load. Points the ascending
// filter skips are marked dropped.
func buildPointRows(raw []casagrande.SamplePoint, s *casagrande.Session) []table.Row {
	roles := map[float64]string{}
	cps := s.ControlPoints()
	for _, cp := range cps {
		roles[cp.AxialLoad] = cp.ID.String()
	}
	rows := make([]table.Row, 0, len(raw)+len(cps))
	seen := map[float64]bool{}
	last := math.Inf(-1)
	for i, p := range raw {
		role := "dropped"
		if i == 0 || p.AxialLoad > last {
			last = p.AxialLoad
			seen[p.AxialLoad] = true
			role = roles[p.AxialLoad]
			if role == "" {
				role = "-"
			}
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.1f", p.AxialLoad),
			fmt.Sprintf("%.3f", p.VoidRatio),
			role,
		})
	}
	for _, cp := range cps {
		if seen[cp.AxialLoad] {
			continue
		}
		rows = append(rows, table.Row{
			"",
			fmt.Sprintf("%.1f", cp.AxialLoad),
			fmt.Sprintf("%.3f", cp.VoidRatio),
			cp.ID.String(),
		})
	}
	return rows
}

func pointsTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		return
	}
}
