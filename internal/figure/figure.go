// Package figure rasterizes preconsolidation figures with gonum/plot.
package figure

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/verte-zerg/preconsol/internal/casagrande"
)

var palette = map[casagrande.Color]color.Color{
	casagrande.Blue:  color.RGBA{B: 255, A: 255},
	casagrande.Red:   color.RGBA{R: 255, A: 255},
	casagrande.Black: color.Black,
}

var legendNames = map[string]string{
	casagrande.NameSplineCurve:       "Spline Curve",
	casagrande.NameStraightestLine:   "Straightest Line",
	casagrande.NameHorizontalLine:    "Horizontal Line",
	casagrande.NamePeakCurvatureLine: "Peak Curvature Line",
	casagrande.NameBisectorLine:      "Bisector Line",
	casagrande.NameSamples:           "Samples",
}

// Build converts a figure into a gonum plot.
func Build(fig casagrande.Figure) (*plot.Plot, error) {
	if len(fig.Primitives) == 0 {
		return nil, fmt.Errorf("figure is empty")
	}
	p := plot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	if fig.LogX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	p.X.Min, p.X.Max = fig.XMin, fig.XMax
	p.Y.Min, p.Y.Max = fig.YMin, fig.YMax
	p.Legend.Top = false
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	for _, prim := range fig.Primitives {
		c := palette[prim.Color]
		if c == nil {
			c = color.Black
		}
		switch prim.Kind {
		case casagrande.Polyline:
			line, err := plotter.NewLine(toXYs(prim.Points))
			if err != nil {
				return nil, fmt.Errorf("failed to build %s: %w", prim.Name, err)
			}
			line.LineStyle.Color = c
			line.LineStyle.Width = vg.Points(1.5)
			if prim.Dashed {
				line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
			}
			p.Add(line)
			if name, ok := legendNames[prim.Name]; ok {
				p.Legend.Add(name, line)
			}
		case casagrande.Scatter:
			scatter, err := plotter.NewScatter(toXYs(prim.Points))
			if err != nil {
				return nil, fmt.Errorf("failed to build %s: %w", prim.Name, err)
			}
			scatter.GlyphStyle.Color = c
			scatter.GlyphStyle.Radius = vg.Points(3)
			scatter.GlyphStyle.Shape = draw.CircleGlyph{}
			if prim.Handle {
				scatter.GlyphStyle.Radius = vg.Points(5)
				scatter.GlyphStyle.Shape = draw.RingGlyph{}
			}
			p.Add(scatter)
			if name, ok := legendNames[prim.Name]; ok {
				p.Legend.Add(name, scatter)
			}
		case casagrande.Label:
			labels, err := buildLabel(fig, prim)
			if err != nil {
				return nil, fmt.Errorf("failed to build %s: %w", prim.Name, err)
			}
			p.Add(labels)
		}
	}
	return p, nil
}

// buildLabel places a label given in axes fractions at the matching data
// coordinates, right and top aligned.
func buildLabel(fig casagrande.Figure, prim casagrande.Primitive) (*plotter.Labels, error) {
	xys := make(plotter.XYs, len(prim.Points))
	texts := make([]string, len(prim.Points))
	for i, pt := range prim.Points {
		xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		if prim.AxesFraction {
			xys[i] = plotter.XY{X: fractionX(fig, pt.X), Y: fig.YMin + pt.Y*(fig.YMax-fig.YMin)}
		}
		texts[i] = prim.Text
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = text.XRight
		labels.TextStyle[i].YAlign = text.YTop
		labels.TextStyle[i].Color = palette[prim.Color]
	}
	return labels, nil
}

func fractionX(fig casagrande.Figure, f float64) float64 {
	if fig.LogX {
		lo, hi := math.Log10(fig.XMin), math.Log10(fig.XMax)
		return math.Pow(10, lo+f*(hi-lo))
	}
	return fig.XMin + f*(fig.XMax-fig.XMin)
}

func toXYs(pts []casagrande.XY) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		out[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	return out
}

// Save renders the request to its path. Raster formats honour the requested
// DPI; vector formats ignore it.
func Save(req casagrande.ExportRequest) error {
	p, err := Build(req.Figure)
	if err != nil {
		return err
	}
	width := vg.Length(req.Width) * vg.Inch
	height := vg.Length(req.Height) * vg.Inch
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(req.Path), "."))

	var writer io.WriterTo
	switch ext {
	case "png", "jpg", "jpeg", "tif", "tiff":
		c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(req.DPI))
		p.Draw(draw.New(c))
		switch ext {
		case "png":
			writer = vgimg.PngCanvas{Canvas: c}
		case "jpg", "jpeg":
			writer = vgimg.JpegCanvas{Canvas: c}
		default:
			writer = vgimg.TiffCanvas{Canvas: c}
		}
	case "svg", "pdf", "eps":
		writer, err = p.WriterTo(width, height, ext)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", ext, err)
		}
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}
	return writeFile(req.Path, writer)
}

// writeFile writes through a temp file so a failed export never leaves a
// truncated image behind.
func writeFile(path string, src io.WriterTo) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "export-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("failed to create temp image: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := src.WriteTo(tmpFile); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
