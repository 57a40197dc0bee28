package spectro

import (
	"image/color"
	"math"
)

// WavelengthToRGB maps a wavelength in nm to a display colour using
// piecewise linear bands over the visible range (380-780nm) with a 0.8
// gamma. Wavelengths outside the visible range come back gray.
func WavelengthToRGB(nm float64) color.RGBA {
	const gamma = 0.8
	var r, g, b, factor float64

	switch {
	case nm >= 380 && nm <= 439:
		r = -(nm - 440) / (440 - 380)
		b = 1
	case nm >= 440 && nm <= 489:
		g = (nm - 440) / (490 - 440)
		b = 1
	case nm >= 490 && nm <= 509:
		g = 1
		b = -(nm - 510) / (510 - 490)
	case nm >= 510 && nm <= 579:
		r = (nm - 510) / (580 - 510)
		g = 1
	case nm >= 580 && nm <= 644:
		r = 1
		g = -(nm - 645) / (645 - 580)
	case nm >= 645 && nm <= 780:
		r = 1
	}

	switch {
	case nm >= 380 && nm <= 419:
		factor = 0.3 + 0.7*(nm-380)/(420-380)
	case nm >= 420 && nm <= 700:
		factor = 1
	case nm >= 701 && nm <= 780:
		factor = 0.3 + 0.7*(780-nm)/(780-700)
	}

	scale := func(v float64) uint8 {
		if v <= 0 {
			return 0
		}
		return uint8(255 * math.Pow(v*factor, gamma))
	}

	out := color.RGBA{R: scale(r), G: scale(g), B: scale(b), A: 255}
	if out.R == 0 && out.G == 0 && out.B == 0 {
		// Outside the visible range.
		return color.RGBA{R: 155, G: 155, B: 155, A: 255}
	}
	return out
}
