package spectro

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CalFile is the calibration data file: pixel columns on the first
// line, their known wavelengths on the second.
const CalFile = "caldata.txt"

// Calibration maps sensor columns to wavelengths through a polynomial
// fitted over operator-supplied reference points.
type Calibration struct {
	// Wavelengths holds one wavelength in nm per pixel column.
	Wavelengths []float64
	// Points is the number of reference points behind the fit.
	Points int
	// RSquared validates third-order fits; zero otherwise.
	RSquared float64
	// Placeholder is set when no usable calibration file was found and
	// the default 380-750nm mapping is in effect.
	Placeholder bool
}

// placeholder mapping used until the operator calibrates.
var (
	defaultPixels      = []int{0, 400, 800}
	defaultWavelengths = []float64{380, 560, 750}
)

// LoadCalibration reads path and fits a wavelength polynomial across
// width pixel columns. Three reference points give a second-order fit,
// four or more a third-order fit with an R-squared check. A missing or
// corrupt file falls back to the placeholder mapping; the result is
// always usable.
func LoadCalibration(path string, width int) *Calibration {
	pixels, wavelengths, err := readCalPoints(path)
	placeholder := false
	if err != nil || len(pixels) < 3 || len(pixels) != len(wavelengths) {
		pixels, wavelengths = defaultPixels, defaultWavelengths
		placeholder = true
	}

	cal, err := fitCalibration(pixels, wavelengths, width)
	if err != nil && !placeholder {
		// Degenerate reference points (e.g. duplicate pixels). Treat
		// like a corrupt file.
		placeholder = true
		cal, err = fitCalibration(defaultPixels, defaultWavelengths, width)
	}
	if err != nil {
		// Unreachable with the default points; keep a linear ramp just
		// in case.
		wl := make([]float64, width)
		for i := range wl {
			wl[i] = 380 + float64(i)*370/float64(width)
		}
		cal = &Calibration{Wavelengths: wl, Points: len(defaultPixels)}
	}
	cal.Placeholder = placeholder
	return cal
}

// Status returns the three banner lines describing the calibration.
func (c *Calibration) Status() (string, string, string) {
	switch {
	case c.Placeholder:
		return "UNCALIBRATED!", "Defaults loaded", "Perform Calibration!"
	case c.Points == 3:
		return "Calibrated", "Using 3 cal points", "2nd Order Polyfit"
	default:
		return "Calibrated", fmt.Sprintf("Using %d cal points", c.Points), "3rd Order Polyfit"
	}
}

// WavelengthAt returns the wavelength of column px, clamped to the
// mapped range.
func (c *Calibration) WavelengthAt(px int) float64 {
	if len(c.Wavelengths) == 0 {
		return 0
	}
	if px < 0 {
		px = 0
	}
	if px >= len(c.Wavelengths) {
		px = len(c.Wavelengths) - 1
	}
	return c.Wavelengths[px]
}

// SaveCalibration writes reference points to path in the two-line
// format LoadCalibration reads back.
func SaveCalibration(path string, pixels []int, wavelengths []float64) error {
	if len(pixels) == 0 || len(pixels) != len(wavelengths) {
		return fmt.Errorf("calibration points mismatch: %d pixels, %d wavelengths",
			len(pixels), len(wavelengths))
	}
	px := make([]string, len(pixels))
	for i, p := range pixels {
		px[i] = strconv.Itoa(p)
	}
	wl := make([]string, len(wavelengths))
	for i, w := range wavelengths {
		wl[i] = strconv.FormatFloat(w, 'g', -1, 64)
	}
	data := strings.Join(px, ",") + "\n" + strings.Join(wl, ",") + "\n"
	return os.WriteFile(path, []byte(data), 0644)
}

func readCalPoints(path string) ([]int, []float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, nil, fmt.Errorf("%s: want two lines", path)
	}

	var pixels []int
	for _, f := range strings.Split(strings.TrimSpace(lines[0]), ",") {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: bad pixel %q", path, f)
		}
		pixels = append(pixels, v)
	}
	var wavelengths []float64
	for _, f := range strings.Split(strings.TrimSpace(lines[1]), ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: bad wavelength %q", path, f)
		}
		wavelengths = append(wavelengths, v)
	}
	return pixels, wavelengths, nil
}

func fitCalibration(pixels []int, wavelengths []float64, width int) (*Calibration, error) {
	degree := 2
	if len(pixels) > 3 {
		degree = 3
	}

	xs := make([]float64, len(pixels))
	for i, p := range pixels {
		xs[i] = float64(p)
	}
	coef, err := polyfit(xs, wavelengths, degree)
	if err != nil {
		return nil, err
	}

	wl := make([]float64, width)
	for px := 0; px < width; px++ {
		wl[px] = math.Round(polyval(coef, float64(px))*1e6) / 1e6
	}
	cal := &Calibration{Wavelengths: wl, Points: len(pixels)}

	if degree == 3 {
		predicted := make([]float64, len(xs))
		for i, x := range xs {
			predicted[i] = polyval(coef, x)
		}
		corr := stat.Correlation(wavelengths, predicted, nil)
		cal.RSquared = corr * corr
	}
	return cal, nil
}

// polyfit returns least-squares polynomial coefficients, constant term
// first.
func polyfit(xs, ys []float64, degree int) ([]float64, error) {
	v := mat.NewDense(len(xs), degree+1, nil)
	for r, x := range xs {
		for c := 0; c <= degree; c++ {
			v.Set(r, c, math.Pow(x, float64(c)))
		}
	}
	var coef mat.VecDense
	if err := coef.SolveVec(v, mat.NewVecDense(len(ys), ys)); err != nil {
		return nil, fmt.Errorf("polynomial fit: %w", err)
	}
	out := make([]float64, degree+1)
	for i := range out {
		out[i] = coef.AtVec(i)
	}
	return out, nil
}

func polyval(coef []float64, x float64) float64 {
	var v float64
	for k := len(coef) - 1; k >= 0; k-- {
		v = v*x + coef[k]
	}
	return v
}

// GratLabel is one labelled graticule line.
type GratLabel struct {
	Pixel      int
	Wavelength int
}

// Graticule holds the vertical grid positions for the spectrum view:
// unlabelled lines every 10nm and labelled lines every 50nm.
type Graticule struct {
	Tens    []int
	Fifties []GratLabel
}

// Graticule computes the grid positions for the calibrated mapping.
// Targets further than 1nm from the nearest column are dropped so the
// grid does not bunch up at the edges.
func (c *Calibration) Graticule() Graticule {
	var g Graticule
	if len(c.Wavelengths) == 0 {
		return g
	}
	low := int(math.Round(c.Wavelengths[0])) - 10
	high := int(math.Round(c.Wavelengths[len(c.Wavelengths)-1])) + 10

	for target := low; target < high; target++ {
		if target%10 != 0 {
			continue
		}
		px, wl, ok := c.nearestColumn(float64(target))
		if !ok {
			continue
		}
		g.Tens = append(g.Tens, px)
		if target%50 == 0 {
			g.Fifties = append(g.Fifties, GratLabel{Pixel: px, Wavelength: int(math.Round(wl))})
		}
	}
	return g
}

// nearestColumn finds the first column whose wavelength is closest to
// target, rejecting anything 1nm or more away.
func (c *Calibration) nearestColumn(target float64) (int, float64, bool) {
	best := 0
	bestDist := math.Abs(target - c.Wavelengths[0])
	for i, wl := range c.Wavelengths[1:] {
		if d := math.Abs(target - wl); d < bestDist {
			best = i + 1
			bestDist = d
		}
	}
	if bestDist >= 1 {
		return 0, 0, false
	}
	return best, c.Wavelengths[best], true
}
