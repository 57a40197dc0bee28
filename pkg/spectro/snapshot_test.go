package spectro

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveSnapshot(t *testing.T) {
	dir := t.TempDir()
	cal := LoadCalibration(filepath.Join(dir, CalFile), 100)

	intensity := make([]float64, 100)
	for i := range intensity {
		intensity[i] = float64(i * 2)
	}
	wf := NewWaterfall(100, 20)
	wf.Push(intensity, cal)

	res, err := SaveSnapshot(dir, cal, intensity, wf)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	for _, path := range []string{res.SpectrumPNG, res.CSV, res.WaterfallPNG} {
		if path == "" {
			t.Fatal("missing output path")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("output %s not written: %v", path, err)
		}
	}

	data, err := os.ReadFile(res.CSV)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "Wavelength,Intensity" {
		t.Errorf("csv header = %q", lines[0])
	}
	if len(lines) != 101 {
		t.Errorf("csv has %d lines, want 101", len(lines))
	}

	if !strings.HasPrefix(res.Status, "Last Save: ") {
		t.Errorf("status = %q", res.Status)
	}
}

func TestSaveSnapshotWithoutWaterfall(t *testing.T) {
	dir := t.TempDir()
	cal := LoadCalibration(filepath.Join(dir, CalFile), 50)

	res, err := SaveSnapshot(dir, cal, make([]float64, 50), nil)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if res.WaterfallPNG != "" {
		t.Errorf("unexpected waterfall output %q", res.WaterfallPNG)
	}
	if _, err := os.Stat(res.SpectrumPNG); err != nil {
		t.Errorf("spectrum png not written: %v", err)
	}
}
