package camera

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// scaleSteps are the candidate bar lengths in meters.
var scaleSteps = []float64{
	0.1, 0.2, 0.5,
	1, 2, 5,
	10, 20, 50,
	100, 200, 500,
	1000, 2000, 5000,
}

// EstimateMPP returns ground meters per pixel for a nadir camera at
// altM meters with the given horizontal field of view. A positive
// override wins. Returns 0 when the inputs cannot produce a scale.
func EstimateMPP(widthPx int, altM, hfovDeg, override float64) float64 {
	if override > 0 {
		return override
	}
	if widthPx <= 0 || hfovDeg <= 0 {
		return 0
	}
	groundW := 2 * altM * math.Tan(hfovDeg*math.Pi/360)
	if groundW <= 0 {
		return 0
	}
	return groundW / float64(widthPx)
}

// ScaleBar picks a bar length that reads well at the current scale.
// The bar aims for a fifth of the frame width but never under 60 px.
func ScaleBar(widthPx int, mpp float64) (lengthPx int, label string) {
	if mpp <= 0 || widthPx <= 0 {
		return 0, ""
	}
	targetPx := widthPx / 5
	if targetPx < 60 {
		targetPx = 60
	}
	targetM := float64(targetPx) * mpp

	bestM := scaleSteps[len(scaleSteps)-1]
	for _, s := range scaleSteps {
		if s >= targetM {
			bestM = s
			break
		}
	}
	return int(math.Round(bestM / mpp)), fmt.Sprintf("%g m", bestM)
}

// FormatMPP renders the scale for the HUD, choosing the unit by
// magnitude. Empty when mpp is unknown.
func FormatMPP(mpp float64) string {
	switch {
	case mpp <= 0:
		return ""
	case mpp < 0.01:
		return fmt.Sprintf("Scale: %.1f mm/px", mpp*1000)
	case mpp < 1.0:
		return fmt.Sprintf("Scale: %.2f cm/px", mpp*100)
	default:
		return fmt.Sprintf("Scale: %.3f m/px", mpp)
	}
}

// DrawScaleBar burns a scale bar with end ticks and a distance label
// into the bottom left corner of img.
func DrawScaleBar(img draw.Image, mpp float64) {
	b := img.Bounds()
	barPx, label := ScaleBar(b.Dx(), mpp)
	if barPx <= 0 {
		return
	}

	const margin = 16
	const pad = 6
	y := b.Max.Y - margin
	x0 := b.Min.X + margin
	x1 := x0 + barPx
	if x1 > b.Max.X-margin {
		x1 = b.Max.X - margin
	}

	white := image.NewUniform(color.RGBA{255, 255, 255, 255})
	black := image.NewUniform(color.RGBA{0, 0, 0, 255})

	// Backing box keeps the bar readable over bright ground.
	box := image.Rect(x0-pad, y-22-pad, x1+pad, y+pad).Intersect(b)
	draw.Draw(img, box, black, image.Point{}, draw.Src)
	drawRectOutline(img, box, white.C)

	fillRect(img, image.Rect(x0, y-1, x1, y+1), white)
	fillRect(img, image.Rect(x0, y-8, x0+2, y+8), white)
	fillRect(img, image.Rect(x1-2, y-8, x1, y+8), white)

	d := &font.Drawer{
		Dst:  img,
		Src:  white,
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x0), Y: fixed.I(y - 10)},
	}
	d.DrawString(label)
}

func fillRect(img draw.Image, r image.Rectangle, src image.Image) {
	draw.Draw(img, r.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
}

func drawRectOutline(img draw.Image, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}
