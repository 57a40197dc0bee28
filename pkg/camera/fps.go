package camera

import "time"

// emaAlpha weights the newest frame interval in the smoothed rate.
const emaAlpha = 0.2

// RateMeter tracks the measured frame rate as an exponential moving
// average. The first interval seeds the average directly.
type RateMeter struct {
	last time.Time
	fps  float64
}

// Tick records a frame arrival and returns the smoothed rate.
func (m *RateMeter) Tick(now time.Time) float64 {
	if m.last.IsZero() {
		m.last = now
		return m.fps
	}
	dt := now.Sub(m.last).Seconds()
	if dt <= 0 {
		return m.fps
	}
	m.last = now

	inst := 1 / dt
	if m.fps == 0 {
		m.fps = inst
	} else {
		m.fps = emaAlpha*inst + (1-emaAlpha)*m.fps
	}
	return m.fps
}

// FPS returns the smoothed rate, 0 until two frames have arrived.
func (m *RateMeter) FPS() float64 { return m.fps }
