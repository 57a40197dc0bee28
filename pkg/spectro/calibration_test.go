package spectro

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeCalFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), CalFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCalibrationMissingFile(t *testing.T) {
	cal := LoadCalibration(filepath.Join(t.TempDir(), CalFile), 800)

	if !cal.Placeholder {
		t.Error("missing file should load the placeholder mapping")
	}
	msg1, _, msg3 := cal.Status()
	if msg1 != "UNCALIBRATED!" {
		t.Errorf("status = %q, want UNCALIBRATED!", msg1)
	}
	if msg3 != "Perform Calibration!" {
		t.Errorf("status = %q, want Perform Calibration!", msg3)
	}
	if len(cal.Wavelengths) != 800 {
		t.Fatalf("got %d wavelengths, want 800", len(cal.Wavelengths))
	}
	// The placeholder quadratic passes through its own reference points.
	if math.Abs(cal.Wavelengths[0]-380) > 1e-6 {
		t.Errorf("wavelength[0] = %g, want 380", cal.Wavelengths[0])
	}
	if math.Abs(cal.Wavelengths[400]-560) > 1e-6 {
		t.Errorf("wavelength[400] = %g, want 560", cal.Wavelengths[400])
	}
}

func TestLoadCalibrationCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage pixels", "a,b,c\n400,500,600\n"},
		{"garbage wavelengths", "0,400,800\nx,y,z\n"},
		{"mismatched lengths", "0,400,800\n400,500\n"},
		{"too few points", "0,800\n400,700\n"},
		{"single line", "0,400,800\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := LoadCalibration(writeCalFile(t, tt.content), 800)
			if !cal.Placeholder {
				t.Error("corrupt file should load the placeholder mapping")
			}
		})
	}
}

func TestLoadCalibrationThreePoints(t *testing.T) {
	// Linear reference: wl = 400 + 0.5 px.
	cal := LoadCalibration(writeCalFile(t, "0,200,400\n400,500,600\n"), 600)

	if cal.Placeholder {
		t.Fatal("valid file flagged as placeholder")
	}
	msg1, msg2, msg3 := cal.Status()
	if msg1 != "Calibrated" || msg2 != "Using 3 cal points" || msg3 != "2nd Order Polyfit" {
		t.Errorf("status = %q/%q/%q", msg1, msg2, msg3)
	}
	if math.Abs(cal.Wavelengths[100]-450) > 1e-5 {
		t.Errorf("wavelength[100] = %g, want 450", cal.Wavelengths[100])
	}
	if math.Abs(cal.Wavelengths[400]-600) > 1e-5 {
		t.Errorf("wavelength[400] = %g, want 600", cal.Wavelengths[400])
	}
}

func TestLoadCalibrationFourPoints(t *testing.T) {
	cal := LoadCalibration(writeCalFile(t, "0,100,200,300\n400,450,500,550\n"), 400)

	if cal.Placeholder {
		t.Fatal("valid file flagged as placeholder")
	}
	_, msg2, msg3 := cal.Status()
	if msg2 != "Using 4 cal points" || msg3 != "3rd Order Polyfit" {
		t.Errorf("status = %q/%q", msg2, msg3)
	}
	// Points sit exactly on a line, so the cubic fit is exact.
	if math.Abs(cal.RSquared-1) > 1e-6 {
		t.Errorf("r-squared = %g, want 1", cal.RSquared)
	}
	if math.Abs(cal.Wavelengths[50]-425) > 1e-4 {
		t.Errorf("wavelength[50] = %g, want 425", cal.Wavelengths[50])
	}
}

func TestSaveCalibrationRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), CalFile)
	pixels := []int{10, 300, 700}
	wavelengths := []float64{405.0, 532.5, 650.0}

	if err := SaveCalibration(path, pixels, wavelengths); err != nil {
		t.Fatalf("SaveCalibration: %v", err)
	}

	cal := LoadCalibration(path, 800)
	if cal.Placeholder {
		t.Fatal("saved calibration did not load back")
	}
	if cal.Points != 3 {
		t.Errorf("points = %d, want 3", cal.Points)
	}
	// The quadratic passes through the reference points.
	for i, px := range pixels {
		if got := cal.Wavelengths[px]; math.Abs(got-wavelengths[i]) > 1e-4 {
			t.Errorf("wavelength[%d] = %g, want %g", px, got, wavelengths[i])
		}
	}
}

func TestSaveCalibrationRejectsMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), CalFile)
	if err := SaveCalibration(path, []int{1, 2}, []float64{400}); err == nil {
		t.Error("expected error for mismatched point counts")
	}
	if err := SaveCalibration(path, nil, nil); err == nil {
		t.Error("expected error for empty points")
	}
}

func TestGraticule(t *testing.T) {
	// Exact linear mapping: wl = 400 + 0.5 px over 800 columns.
	wl := make([]float64, 800)
	for i := range wl {
		wl[i] = 400 + 0.5*float64(i)
	}
	cal := &Calibration{Wavelengths: wl, Points: 3}

	g := cal.Graticule()

	wantTens := map[int]bool{0: true, 20: true, 40: true, 60: true}
	seen := map[int]bool{}
	for _, px := range g.Tens {
		seen[px] = true
	}
	for px := range wantTens {
		if !seen[px] {
			t.Errorf("missing 10nm line at pixel %d (have %v)", px, g.Tens)
		}
	}

	wantFifties := map[int]int{0: 400, 100: 450, 200: 500, 700: 750}
	got := map[int]int{}
	for _, f := range g.Fifties {
		got[f.Pixel] = f.Wavelength
	}
	for px, want := range wantFifties {
		if got[px] != want {
			t.Errorf("50nm label at pixel %d = %d, want %d", px, got[px], want)
		}
	}
}

func TestWavelengthAtClamps(t *testing.T) {
	cal := &Calibration{Wavelengths: []float64{400, 500, 600}}
	if got := cal.WavelengthAt(-5); got != 400 {
		t.Errorf("WavelengthAt(-5) = %g, want 400", got)
	}
	if got := cal.WavelengthAt(10); got != 600 {
		t.Errorf("WavelengthAt(10) = %g, want 600", got)
	}
	if got := cal.WavelengthAt(1); got != 500 {
		t.Errorf("WavelengthAt(1) = %g, want 500", got)
	}
}
