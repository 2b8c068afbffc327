// Package stats summarizes stored estimates per sample.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/preconsol/internal/model"
	"github.com/verte-zerg/preconsol/internal/plot"
)

const sparkChars = " .:-=+*#%@"

// SampleSummary aggregates the estimates saved for one sample.
type SampleSummary struct {
	Sample       string
	Count        int
	MeanPressure float64
	// StdPressure is the sample standard deviation, zero for a single estimate.
	StdPressure float64
	MinPressure float64
	MaxPressure float64
	Latest      time.Time
	// Pressures in save order, oldest first.
	Pressures []float64
}

// Summarize groups records by sample, ordered by sample name.
func Summarize(recs []model.EstimateRecord) []SampleSummary {
	bySample := map[string][]model.EstimateRecord{}
	for _, rec := range recs {
		bySample[rec.Sample] = append(bySample[rec.Sample], rec)
	}
	names := make([]string, 0, len(bySample))
	for name := range bySample {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]SampleSummary, 0, len(names))
	for _, name := range names {
		group := bySample[name]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		pressures := make([]float64, len(group))
		for i, rec := range group {
			pressures[i] = rec.Pressure
		}
		s := SampleSummary{
			Sample:      name,
			Count:       len(group),
			MinPressure: pressures[0],
			MaxPressure: pressures[0],
			Latest:      group[len(group)-1].CreatedAt,
			Pressures:   pressures,
		}
		if len(pressures) > 1 {
			s.MeanPressure, s.StdPressure = stat.MeanStdDev(pressures, nil)
		} else {
			s.MeanPressure = pressures[0]
		}
		for _, p := range pressures[1:] {
			s.MinPressure = math.Min(s.MinPressure, p)
			s.MaxPressure = math.Max(s.MaxPressure, p)
		}
		out = append(out, s)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints one row per sample.
func RenderSummary(w io.Writer, summaries []SampleSummary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No estimates found.")
		return err
	}
	headers := []string{"Sample", "Saved", "Mean p'c", "Std", "Min", "Max", "Latest", "Trend"}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Sample,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.1f", s.MeanPressure),
			fmt.Sprintf("%.1f", s.StdPressure),
			fmt.Sprintf("%.1f", s.MinPressure),
			fmt.Sprintf("%.1f", s.MaxPressure),
			s.Latest.Local().Format("2006-01-02"),
			Sparkline(s.Pressures),
		})
	}
	for _, line := range plot.FormatTable(headers, rows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
