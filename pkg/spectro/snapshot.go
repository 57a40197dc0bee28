package spectro

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SnapshotResult lists what SaveSnapshot wrote.
type SnapshotResult struct {
	SpectrumPNG  string
	CSV          string
	WaterfallPNG string
	// Status is the banner line, e.g. "Last Save: 14:07:33".
	Status string
}

// SaveSnapshot writes the calibrated spectrum as a PNG graph and a CSV
// table into dir, plus the waterfall history when one is kept. Files
// carry a timestamp so repeated saves never clobber each other.
func SaveSnapshot(dir string, cal *Calibration, intensity []float64, wf *Waterfall) (*SnapshotResult, error) {
	now := time.Now()
	ts := now.Format("20060102--150405")
	res := &SnapshotResult{Status: "Last Save: " + now.Format("15:04:05")}

	res.SpectrumPNG = filepath.Join(dir, fmt.Sprintf("spectrum-%s.png", ts))
	if err := writeSpectrumPNG(res.SpectrumPNG, cal, intensity); err != nil {
		return nil, fmt.Errorf("spectrum png: %w", err)
	}

	res.CSV = filepath.Join(dir, fmt.Sprintf("Spectrum-%s.csv", ts))
	if err := writeSpectrumCSV(res.CSV, cal, intensity); err != nil {
		return nil, fmt.Errorf("spectrum csv: %w", err)
	}

	if wf != nil {
		res.WaterfallPNG = filepath.Join(dir, fmt.Sprintf("waterfall-%s.png", ts))
		if err := writePNG(res.WaterfallPNG, wf); err != nil {
			return nil, fmt.Errorf("waterfall png: %w", err)
		}
	}
	return res, nil
}

func writeSpectrumPNG(path string, cal *Calibration, intensity []float64) error {
	p := plot.New()
	p.Title.Text = "Spectrum"
	p.X.Label.Text = "Wavelength (nm)"
	p.Y.Label.Text = "Intensity"
	p.Y.Min = 0
	p.Y.Max = 255

	pts := make(plotter.XYs, len(intensity))
	for i, v := range intensity {
		pts[i].X = cal.WavelengthAt(i)
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(plotter.NewGrid(), line)

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}

func writeSpectrumCSV(path string, cal *Calibration, intensity []float64) error {
	var sb strings.Builder
	sb.WriteString("Wavelength,Intensity\n")
	for i, v := range intensity {
		fmt.Fprintf(&sb, "%g,%g\n", cal.WavelengthAt(i), v)
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func writePNG(path string, wf *Waterfall) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, wf.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
