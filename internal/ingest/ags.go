package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/verte-zerg/preconsol/internal/casagrande"
	"github.com/verte-zerg/preconsol/internal/model"
)

const consGroup = "CONS"

// Headings the CONS group must carry.
var consHeadings = []string{
	"LOCA_ID", "SAMP_TOP", "SAMP_REF", "SAMP_TYPE", "SAMP_ID",
	"CONS_INCN", "CONS_INCF", "CONS_INCE",
}

type consRow struct {
	locaID   string
	sampTop  string
	sampRef  string
	sampType string
	incN     int64
	load     float64
	voids    float64
}

func (r consRow) name() string {
	return r.locaID + "_" + r.sampTop + "m_" + r.sampType + "_" + r.sampRef
}

// ReadAGS reads the CONS group of an AGS4 file. Increments are ordered by
// location, sample top, sample reference and increment number, then grouped
// into samples named LOCA_ID_SAMP_TOPm_SAMP_TYPE_SAMP_REF.
func ReadAGS(r io.Reader, source string) ([]model.Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		group   string
		columns map[string]int
		rows    []consRow
		line    int
	)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse AGS: %w", err)
		}
		line++
		if len(rec) == 0 {
			continue
		}
		switch strings.TrimSpace(rec[0]) {
		case "GROUP":
			group = ""
			if len(rec) > 1 {
				group = strings.TrimSpace(rec[1])
			}
			columns = nil
		case "HEADING":
			if group != consGroup {
				continue
			}
			columns = make(map[string]int, len(rec)-1)
			for i, h := range rec[1:] {
				columns[strings.TrimSpace(h)] = i + 1
			}
			for _, h := range consHeadings {
				if _, ok := columns[h]; !ok {
					return nil, fmt.Errorf("CONS group is missing heading %s", h)
				}
			}
		case "DATA":
			if group != consGroup {
				continue
			}
			if columns == nil {
				return nil, fmt.Errorf("CONS data before headings (record %d)", line)
			}
			row, err := parseConsRow(rec, columns)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", line, err)
			}
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no CONS data", ErrNoSamples)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.locaID != b.locaID {
			return a.locaID < b.locaID
		}
		if a.sampTop != b.sampTop {
			return lessNumeric(a.sampTop, b.sampTop)
		}
		if a.sampRef != b.sampRef {
			return a.sampRef < b.sampRef
		}
		return a.incN < b.incN
	})

	var samples []model.Sample
	index := map[string]int{}
	for _, row := range rows {
		name := row.name()
		i, ok := index[name]
		if !ok {
			i = len(samples)
			index[name] = i
			samples = append(samples, model.Sample{Name: name, Source: source})
		}
		samples[i].Points = append(samples[i].Points, casagrande.SamplePoint{AxialLoad: row.load, VoidRatio: row.voids})
	}
	return samples, nil
}

func parseConsRow(rec []string, columns map[string]int) (consRow, error) {
	field := func(h string) string {
		i := columns[h]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	incN, err := cast.ToInt64E(field("CONS_INCN"))
	if err != nil {
		return consRow{}, fmt.Errorf("invalid CONS_INCN %q: %w", field("CONS_INCN"), err)
	}
	load, err := cast.ToFloat64E(field("CONS_INCF"))
	if err != nil {
		return consRow{}, fmt.Errorf("invalid CONS_INCF %q: %w", field("CONS_INCF"), err)
	}
	voids, err := cast.ToFloat64E(field("CONS_INCE"))
	if err != nil {
		return consRow{}, fmt.Errorf("invalid CONS_INCE %q: %w", field("CONS_INCE"), err)
	}
	return consRow{
		locaID:   field("LOCA_ID"),
		sampTop:  field("SAMP_TOP"),
		sampRef:  field("SAMP_REF"),
		sampType: field("SAMP_TYPE"),
		incN:     incN,
		load:     load,
		voids:    voids,
	}, nil
}

// lessNumeric compares depths numerically when both parse.
func lessNumeric(a, b string) bool {
	fa, errA := cast.ToFloat64E(a)
	fb, errB := cast.ToFloat64E(b)
	if errA != nil || errB != nil || fa == fb {
		return a < b
	}
	return fa < fb
}
