// Package spectro turns camera frames from a diffraction-grating
// spectroscope into calibrated spectra: intensity sampling, smoothing,
// peak detection, wavelength calibration and snapshot export.
package spectro

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Smooth applies a Savitzky-Golay filter of the given window and
// polynomial order to y. The window must be a positive odd number at
// least order+2 wide. Edges are padded with values mirrored around the
// first and last sample, so the output has the same length as y.
func Smooth(y []float64, window, order int) ([]float64, error) {
	if window%2 != 1 || window < 1 {
		return nil, errors.New("window must be a positive odd number")
	}
	if window < order+2 {
		return nil, errors.New("window is too small for the polynomial order")
	}
	if len(y) < window {
		return nil, fmt.Errorf("need at least %d samples, have %d", window, len(y))
	}

	half := (window - 1) / 2

	// Least-squares design matrix over the window offsets.
	b := mat.NewDense(window, order+1, nil)
	for r := 0; r < window; r++ {
		k := float64(r - half)
		for c := 0; c <= order; c++ {
			b.Set(r, c, math.Pow(k, float64(c)))
		}
	}

	// The smoothing weights are row zero of the pseudoinverse:
	// w = B (B'B)^-1 e0.
	var btb mat.Dense
	btb.Mul(b.T(), b)
	e0 := mat.NewVecDense(order+1, nil)
	e0.SetVec(0, 1)
	var coef mat.VecDense
	if err := coef.SolveVec(&btb, e0); err != nil {
		return nil, fmt.Errorf("filter design: %w", err)
	}
	var w mat.VecDense
	w.MulVec(b, &coef)

	n := len(y)
	padded := make([]float64, 0, n+2*half)
	for i := half; i >= 1; i-- {
		padded = append(padded, y[0]-math.Abs(y[i]-y[0]))
	}
	padded = append(padded, y...)
	for i := 1; i <= half; i++ {
		padded = append(padded, y[n-1]+math.Abs(y[n-1-i]-y[n-1]))
	}

	out := make([]float64, n)
	for i := range out {
		var sum float64
		for j := 0; j < window; j++ {
			sum += w.AtVec(j) * padded[i+j]
		}
		out[i] = sum
	}
	return out, nil
}
