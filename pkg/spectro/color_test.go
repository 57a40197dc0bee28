package spectro

import "testing"

func TestWavelengthToRGB(t *testing.T) {
	tests := []struct {
		name    string
		nm      float64
		r, g, b uint8
	}{
		{"violet edge", 380, 97, 0, 97},
		{"blue", 450, 0, 70, 255},
		{"cyan", 500, 0, 255, 146},
		{"yellow", 580, 255, 255, 0},
		{"red", 650, 255, 0, 0},
		{"deep red", 700, 255, 0, 0},
		{"below visible", 300, 155, 155, 155},
		{"above visible", 800, 155, 155, 155},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WavelengthToRGB(tt.nm)
			if got.R != tt.r || got.G != tt.g || got.B != tt.b {
				t.Errorf("WavelengthToRGB(%g) = (%d,%d,%d), want (%d,%d,%d)",
					tt.nm, got.R, got.G, got.B, tt.r, tt.g, tt.b)
			}
			if got.A != 255 {
				t.Errorf("alpha = %d, want 255", got.A)
			}
		})
	}
}

func TestWavelengthToRGBIntensityRamp(t *testing.T) {
	// The factor ramp dims the extremes of the visible band.
	edge := WavelengthToRGB(780)
	mid := WavelengthToRGB(650)
	if edge.R >= mid.R {
		t.Errorf("edge red %d should be dimmer than mid-band red %d", edge.R, mid.R)
	}
}
