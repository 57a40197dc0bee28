package spectro

import (
	"math"
	"testing"
)

func TestSmoothValidation(t *testing.T) {
	y := make([]float64, 100)

	tests := []struct {
		name   string
		window int
		order  int
	}{
		{"even window", 16, 3},
		{"zero window", 0, 0},
		{"window too small for order", 5, 4},
		{"negative window", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Smooth(y, tt.window, tt.order); err == nil {
				t.Errorf("Smooth(window=%d, order=%d) accepted invalid parameters", tt.window, tt.order)
			}
		})
	}

	if _, err := Smooth(make([]float64, 5), 17, 3); err == nil {
		t.Error("Smooth accepted input shorter than the window")
	}
}

func TestSmoothKnownWeights(t *testing.T) {
	// Window 5, order 2 has the classic quadratic smoothing weights
	// (-3, 12, 17, 12, -3)/35, so a centred unit impulse maps to 17/35.
	y := []float64{0, 0, 1, 0, 0}
	got, err := Smooth(y, 5, 2)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	if want := 17.0 / 35.0; math.Abs(got[2]-want) > 1e-9 {
		t.Errorf("impulse response = %g, want %g", got[2], want)
	}
}

func TestSmoothPreservesConstant(t *testing.T) {
	y := make([]float64, 50)
	for i := range y {
		y[i] = 42
	}
	got, err := Smooth(y, 17, 3)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	for i, v := range got {
		if math.Abs(v-42) > 1e-8 {
			t.Fatalf("got[%d] = %g, want 42", i, v)
		}
	}
}

func TestSmoothPreservesLine(t *testing.T) {
	// A polynomial filter of order >= 1 reproduces linear data exactly,
	// including at the mirrored edges.
	y := make([]float64, 60)
	for i := range y {
		y[i] = 5 + 2.5*float64(i)
	}
	got, err := Smooth(y, 17, 3)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	for i, v := range got {
		if math.Abs(v-y[i]) > 1e-7 {
			t.Fatalf("got[%d] = %g, want %g", i, v, y[i])
		}
	}
}

func TestSmoothSpreadsSpike(t *testing.T) {
	y := make([]float64, 40)
	y[20] = 100
	got, err := Smooth(y, 5, 1)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	if got[20] >= 100 {
		t.Errorf("spike not attenuated: %g", got[20])
	}
	if got[19] <= 0 || got[21] <= 0 {
		t.Errorf("spike not spread to neighbours: %g, %g", got[19], got[21])
	}
}
