package spectro

import (
	"image"
	"image/color"
	"math"
)

// SmoothWindow is the fixed Savitzky-Golay window of the display
// pipeline.
const SmoothWindow = 17

// ColumnIntensity reads one 0-255 value per column of img by averaging
// a three-row band centred on row y.
func ColumnIntensity(img image.Image, y int) []float64 {
	b := img.Bounds()
	w := b.Dx()
	out := make([]float64, w)
	for x := 0; x < w; x++ {
		var sum float64
		for dy := -1; dy <= 1; dy++ {
			yy := y + dy
			if yy < b.Min.Y {
				yy = b.Min.Y
			} else if yy > b.Max.Y-1 {
				yy = b.Max.Y - 1
			}
			r, g, bl, _ := img.At(b.Min.X+x, yy).RGBA()
			sum += math.Round(0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8))
		}
		out[x] = math.Trunc(sum / 3)
	}
	return out
}

// MergeIntensity folds a fresh column read into intensity. With hold
// set each column keeps its running maximum, otherwise the new data
// replaces the old.
func MergeIntensity(intensity, fresh []float64, hold bool) {
	for i := range intensity {
		if i >= len(fresh) {
			return
		}
		if hold {
			if fresh[i] > intensity[i] {
				intensity[i] = fresh[i]
			}
		} else {
			intensity[i] = fresh[i]
		}
	}
}

// Process runs the display pipeline over the current trace:
// Savitzky-Golay smoothing at the given order, then truncation to
// whole counts with negatives clamped. Order 0 turns the smoothing
// off, and peak-hold traces skip it so held maxima are not eroded.
func Process(intensity []float64, savpoly int, hold bool) []float64 {
	out := make([]float64, len(intensity))
	copy(out, intensity)
	if !hold && savpoly > 0 {
		if sm, err := Smooth(out, SmoothWindow, savpoly); err == nil {
			out = sm
		}
	}
	for i, v := range out {
		v = math.Trunc(v)
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out
}

// DetectPeaks finds peak columns in processed intensity. thresh is the
// operator's absolute 0-100 threshold, normalised against the current
// maximum like the banner shows it.
func DetectPeaks(intensity []float64, thresh, minDist int) []int {
	maxI := 1.0
	for _, v := range intensity {
		if v > maxI {
			maxI = v
		}
	}
	return PeakIndexes(intensity, float64(thresh)/maxI, minDist)
}

// Waterfall keeps a scrolling history of coloured spectra, newest row
// on top.
type Waterfall struct {
	img *image.RGBA
}

// NewWaterfall allocates a black history image of the given size.
func NewWaterfall(width, height int) *Waterfall {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return &Waterfall{img: img}
}

// Push scrolls the history down one row and paints the current trace
// on top, each column's wavelength colour scaled by its intensity.
func (w *Waterfall) Push(intensity []float64, cal *Calibration) {
	stride := w.img.Stride
	copy(w.img.Pix[stride:], w.img.Pix[:len(w.img.Pix)-stride])

	width := w.img.Bounds().Dx()
	for x := 0; x < width; x++ {
		var lum float64
		if x < len(intensity) {
			lum = intensity[x] / 255
		}
		c := WavelengthToRGB(math.Round(cal.WavelengthAt(x)))
		w.img.SetRGBA(x, 0, color.RGBA{
			R: uint8(math.Round(float64(c.R) * lum)),
			G: uint8(math.Round(float64(c.G) * lum)),
			B: uint8(math.Round(float64(c.B) * lum)),
			A: 255,
		})
	}
}

// Image returns the current history image.
func (w *Waterfall) Image() *image.RGBA {
	return w.img
}
