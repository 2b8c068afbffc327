package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/preconsol/internal/casagrande"
)

const agsFixture = `"GROUP","PROJ"
"HEADING","PROJ_ID"
"UNIT",""
"TYPE","ID"
"DATA","P1"

"GROUP","CONS"
"HEADING","LOCA_ID","SAMP_TOP","SAMP_REF","SAMP_TYPE","SAMP_ID","SPEC_REF","CONS_INCN","CONS_INCF","CONS_INCE"
"UNIT","","m","","","","","","kPa",""
"TYPE","ID","2DP","X","PA","ID","X","0DP","0DP","3DP"
"DATA","BH02","10.50","2","U","S3","1","1","25","1.100"
"DATA","BH01","2.50","1","U","S1","1","2","100","0.880"
"DATA","BH01","2.50","1","U","S1","1","1","50","0.900"
"DATA","BH01","2.50","1","U","S1","1","3","200","0.780"
"DATA","BH02","10.50","2","U","S3","1","2","50","1.080"

"GROUP","LOCA"
"HEADING","LOCA_ID"
"DATA","BH01"
`

func TestReadAGS(t *testing.T) {
	samples, err := ReadAGS(strings.NewReader(agsFixture), "site.ags")
	if err != nil {
		t.Fatalf("ReadAGS failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Name != "BH01_2.50m_U_1" || samples[1].Name != "BH02_10.50m_U_2" {
		t.Fatalf("unexpected sample names %q, %q", samples[0].Name, samples[1].Name)
	}
	want := []casagrande.SamplePoint{
		{AxialLoad: 50, VoidRatio: 0.9},
		{AxialLoad: 100, VoidRatio: 0.88},
		{AxialLoad: 200, VoidRatio: 0.78},
	}
	if diff := cmp.Diff(want, samples[0].Points); diff != "" {
		t.Fatalf("points mismatch (-want +got):\n%s", diff)
	}
	if samples[0].Source != "site.ags" {
		t.Fatalf("expected source to be kept, got %q", samples[0].Source)
	}
}

func TestReadAGSMissingHeading(t *testing.T) {
	in := `"GROUP","CONS"
"HEADING","LOCA_ID","SAMP_TOP"
"DATA","BH01","1.0"
`
	_, err := ReadAGS(strings.NewReader(in), "bad.ags")
	if err == nil || !strings.Contains(err.Error(), "SAMP_REF") {
		t.Fatalf("expected missing heading error, got %v", err)
	}
}

func TestReadAGSWithoutCons(t *testing.T) {
	in := `"GROUP","LOCA"
"HEADING","LOCA_ID"
"DATA","BH01"
`
	if _, err := ReadAGS(strings.NewReader(in), "none.ags"); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
}

func TestReadCSV(t *testing.T) {
	in := "sample,load,void_ratio\nA,50,0.9\nB, 10, 1.2\nA,100,0.88\n"
	samples, err := ReadCSV(strings.NewReader(in), "data.csv")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(samples) != 2 || samples[0].Name != "A" || samples[1].Name != "B" {
		t.Fatalf("unexpected samples %+v", samples)
	}
	if len(samples[0].Points) != 2 || samples[0].Points[1].AxialLoad != 100 {
		t.Fatalf("unexpected points for A: %+v", samples[0].Points)
	}
}

func TestReadCSVWithoutSampleColumn(t *testing.T) {
	in := "load,void_ratio\n50,0.9\n100,0.88\n"
	samples, err := ReadCSV(strings.NewReader(in), "/tmp/oedometer.csv")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(samples) != 1 || samples[0].Name != "oedometer" {
		t.Fatalf("expected a single sample named after the file, got %+v", samples)
	}
}

func TestReadCSVErrors(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), "x.csv"); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples for empty file, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("load,voids\n1,2\n"), "x.csv"); err == nil {
		t.Fatalf("expected error for missing void_ratio column")
	}
	if _, err := ReadCSV(strings.NewReader("load,void_ratio\nabc,0.9\n"), "x.csv"); err == nil {
		t.Fatalf("expected error for non-numeric load")
	}
}

func TestReadYAML(t *testing.T) {
	in := `samples:
  - name: BH01
    points:
      - {load: 50, void_ratio: 0.90}
      - {load: 100, void_ratio: 0.88}
  - points:
      - {load: 25, void_ratio: 1.1}
`
	samples, err := ReadYAML(strings.NewReader(in), "lab.yaml")
	if err != nil {
		t.Fatalf("ReadYAML failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Name != "BH01" || samples[1].Name != "lab_2" {
		t.Fatalf("unexpected names %q, %q", samples[0].Name, samples[1].Name)
	}
	if samples[0].Points[1] != (casagrande.SamplePoint{AxialLoad: 100, VoidRatio: 0.88}) {
		t.Fatalf("unexpected point %+v", samples[0].Points[1])
	}
}

func TestReadYAMLRejectsUnknownFields(t *testing.T) {
	in := "samples:\n  - name: A\n    point: []\n"
	if _, err := ReadYAML(strings.NewReader(in), "a.yaml"); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lab.csv")
	if err := os.WriteFile(path, []byte("load,void_ratio\n50,0.9\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	samples, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if _, err := Find(samples, "lab"); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if _, err := Find(samples, "other"); err == nil {
		t.Fatalf("expected missing sample error")
	}
	if _, err := LoadFile(filepath.Join(dir, "lab.txt")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
