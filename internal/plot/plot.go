// Package plot renders preconsolidation figures as braille text plots.
package plot

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/preconsol/internal/casagrande"
)

type lineStyle struct {
	name   string
	period int
	on     int
}

const (
	defaultPlotHeight   = 16
	minPlotWidth        = 20
	minPlotHeight       = 4
	axisLabelWidth      = 6
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var (
	solidLine  = lineStyle{name: "solid", period: 1, on: 1}
	dashedLine = lineStyle{name: "dashed", period: 6, on: 3}
)

var colorCodes = map[casagrande.Color]string{
	casagrande.Blue:  "\x1b[34m",
	casagrande.Red:   "\x1b[31m",
	casagrande.Black: "\x1b[1;37m",
}

const markerColor = "\x1b[33m"

// Options controls the text rendering.
type Options struct {
	Width  int
	Height int
	// ForceColor emits ANSI colours even when the writer is not a terminal.
	ForceColor bool
	// Marker highlights one point, typically the selected control point.
	Marker *casagrande.XY
}

// layer is one primitive rasterized into braille cells.
type layer struct {
	cells [][]uint8
	color string
}

// Render writes the figure as a braille plot with a log-scaled load axis.
func Render(w io.Writer, fig casagrande.Figure, opts Options) error {
	_, err := io.WriteString(w, renderFigure(fig, opts, shouldUseColor(w, opts.ForceColor)))
	return err
}

// String renders the figure for embedding in another view.
func String(fig casagrande.Figure, opts Options) string {
	return renderFigure(fig, opts, opts.ForceColor && os.Getenv("NO_COLOR") == "")
}

func renderFigure(fig casagrande.Figure, opts Options, useColor bool) string {
	if len(fig.Primitives) == 0 {
		return ""
	}
	width, height := opts.Width, opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	if height < minPlotHeight {
		height = minPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	ax := newAxes(fig, width, height)
	var labels []string
	layers := make([]layer, 0, len(fig.Primitives)+1)
	for _, p := range fig.Primitives {
		if p.Kind == casagrande.Label {
			labels = append(labels, p.Text)
			continue
		}
		l := layer{cells: makeCells(height, width), color: colorCodes[p.Color]}
		switch p.Kind {
		case casagrande.Polyline:
			style := solidLine
			if p.Dashed {
				style = dashedLine
			}
			drawPolyline(l.cells, ax, p.Points, style)
		case casagrande.Scatter:
			for _, pt := range p.Points {
				x, y, ok := ax.dot(pt)
				if !ok {
					continue
				}
				setBrailleDot(l.cells, x, y)
				if p.Handle {
					setBrailleDot(l.cells, x+1, y)
					setBrailleDot(l.cells, x, y+1)
					setBrailleDot(l.cells, x+1, y+1)
				}
			}
		}
		layers = append(layers, l)
	}
	if opts.Marker != nil {
		l := layer{cells: makeCells(height, width), color: markerColor}
		if x, y, ok := ax.dot(*opts.Marker); ok {
			for d := -2; d <= 2; d++ {
				setBrailleDot(l.cells, x+d, y)
				setBrailleDot(l.cells, x, y+d)
			}
		}
		layers = append(layers, l)
	}

	var b strings.Builder
	if fig.Title != "" {
		b.WriteString(fig.Title)
		b.WriteByte('\n')
	}
	yLabels := makeAxisLabels(fig, height)
	for y := 0; y < height; y++ {
		fmt.Fprintf(&b, "%*s%s", axisLabelWidth, yLabels[y], axisSeparator)
		for x := 0; x < width; x++ {
			mask, color := composeCell(layers, x, y)
			ch := brailleFromMask(mask)
			if useColor && color != "" {
				b.WriteString(color)
				b.WriteRune(ch)
				b.WriteString(colorReset)
			} else {
				b.WriteRune(ch)
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString(renderXAxis(fig, width))
	b.WriteByte('\n')
	if fig.XLabel != "" || fig.YLabel != "" {
		fmt.Fprintf(&b, "x: %s  y: %s\n", fig.XLabel, fig.YLabel)
	}
	for _, text := range labels {
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

// axes maps data coordinates to braille dot coordinates.
type axes struct {
	xmin, xmax float64
	ymin, ymax float64
	logX       bool
	dotsX      int
	dotsY      int
}

func newAxes(fig casagrande.Figure, width, height int) axes {
	ax := axes{
		xmin: fig.XMin, xmax: fig.XMax,
		ymin: fig.YMin, ymax: fig.YMax,
		logX:  fig.LogX,
		dotsX: width * 2,
		dotsY: height * 4,
	}
	if ax.logX {
		ax.xmin, ax.xmax = math.Log10(ax.xmin), math.Log10(ax.xmax)
	}
	if math.Abs(ax.xmax-ax.xmin) < 1e-12 {
		ax.xmin--
		ax.xmax++
	}
	if math.Abs(ax.ymax-ax.ymin) < 1e-12 {
		ax.ymin--
		ax.ymax++
	}
	return ax
}

func (a axes) dot(p casagrande.XY) (int, int, bool) {
	x := p.X
	if a.logX {
		if x <= 0 {
			return 0, 0, false
		}
		x = math.Log10(x)
	}
	if math.IsNaN(x) || math.IsNaN(p.Y) {
		return 0, 0, false
	}
	fx := (x - a.xmin) / (a.xmax - a.xmin)
	fy := (p.Y - a.ymin) / (a.ymax - a.ymin)
	if fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		return 0, 0, false
	}
	col := int(math.Round(fx * float64(a.dotsX-1)))
	row := int(math.Round((1 - fy) * float64(a.dotsY-1)))
	return col, row, true
}

// drawPolyline joins consecutive points. Segments with an end outside the
// axes are dropped.
func drawPolyline(cells [][]uint8, ax axes, pts []casagrande.XY, style lineStyle) {
	prevX, prevY, havePrev := 0, 0, false
	for _, pt := range pts {
		x, y, ok := ax.dot(pt)
		if !ok {
			havePrev = false
			continue
		}
		if havePrev {
			drawLine(prevX, prevY, x, y, func(dx, dy int) {
				if style.shouldPlot(dx) {
					setBrailleDot(cells, dx, dy)
				}
			})
		} else if style.shouldPlot(x) {
			setBrailleDot(cells, x, y)
		}
		prevX, prevY, havePrev = x, y, true
	}
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisLabelWidth - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(fig casagrande.Figure, height int) []string {
	labels := make([]string, height)
	labels[0] = fmt.Sprintf("%.2f", fig.YMax)
	if height > 2 {
		labels[height/2] = fmt.Sprintf("%.2f", (fig.YMax+fig.YMin)/2)
	}
	labels[height-1] = fmt.Sprintf("%.2f", fig.YMin)
	return labels
}

// renderXAxis places decade labels under their columns.
func renderXAxis(fig casagrande.Figure, width int) string {
	line := []rune(strings.Repeat(" ", width))
	ax := newAxes(fig, width, 1)
	var ticks []float64
	if fig.LogX {
		for e := math.Floor(ax.xmin); e <= math.Ceil(ax.xmax); e++ {
			ticks = append(ticks, math.Pow(10, e))
		}
	} else {
		ticks = []float64{fig.XMin, (fig.XMin + fig.XMax) / 2, fig.XMax}
	}
	next := 0
	for _, v := range ticks {
		x, _, ok := ax.dot(casagrande.XY{X: v, Y: fig.YMin})
		if !ok {
			continue
		}
		label := []rune(fmt.Sprintf("%g", v))
		col := x / 2
		if col+len(label) > width {
			col = width - len(label)
		}
		if col < next || col < 0 {
			continue
		}
		copy(line[col:], label)
		next = col + len(label) + 1
	}
	return strings.Repeat(" ", axisLabelWidth) + strings.Repeat(" ", runewidth.StringWidth(axisSeparator)) + strings.TrimRight(string(line), " ")
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

// composeCell merges all layers; the colour of the topmost drawn layer wins.
func composeCell(layers []layer, x, y int) (uint8, string) {
	var mask uint8
	color := ""
	found := false
	for i := len(layers) - 1; i >= 0; i-- {
		cells := layers[i].cells
		if y < 0 || y >= len(cells) || x < 0 || x >= len(cells[y]) {
			continue
		}
		cellMask := cells[y][x]
		if cellMask == 0 {
			continue
		}
		if !found {
			color = layers[i].color
			found = true
		}
		mask |= cellMask
	}
	return mask, color
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%ls.period < ls.on
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
