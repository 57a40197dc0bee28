// Package scale reads the rig's load cell and streams weight samples.
package scale

import (
	"context"
	"fmt"
)

// RawReader is the ADC the scale sits on. *hw.HX711 implements it.
type RawReader interface {
	ReadRaw(ctx context.Context) (int32, error)
	PowerDown() error
	PowerUp() error
	Close() error
}

// Scale converts raw ADC counts to grams using a tare offset and a
// calibration factor (counts per gram).
type Scale struct {
	adc    RawReader
	factor float64
	offset float64
}

// New wraps adc with the given calibration factor. A factor of zero is
// treated as 1, so an uncalibrated rig reports tared raw counts.
func New(adc RawReader, factor float64) *Scale {
	if factor == 0 {
		factor = 1
	}
	return &Scale{adc: adc, factor: factor}
}

// ReadAverage returns the mean of n consecutive raw conversions.
func (s *Scale) ReadAverage(ctx context.Context, n int) (float64, error) {
	if n <= 0 {
		n = 1
	}
	var sum float64
	for i := 0; i < n; i++ {
		v, err := s.adc.ReadRaw(ctx)
		if err != nil {
			return 0, err
		}
		sum += float64(v)
	}
	return sum / float64(n), nil
}

// Tare zeroes the scale on the mean of n conversions. The platform must
// be empty while it runs.
func (s *Scale) Tare(ctx context.Context, n int) error {
	avg, err := s.ReadAverage(ctx, n)
	if err != nil {
		return fmt.Errorf("tare: %w", err)
	}
	s.offset = avg
	return nil
}

// Offset returns the tare offset in raw counts.
func (s *Scale) Offset() float64 {
	return s.offset
}

// Weight returns the tared weight in grams, averaged over n
// conversions.
func (s *Scale) Weight(ctx context.Context, n int) (float64, error) {
	avg, err := s.ReadAverage(ctx, n)
	if err != nil {
		return 0, err
	}
	return (avg - s.offset) / s.factor, nil
}

// PowerCycle resets the chip between samples, which also restores the
// default channel A gain.
func (s *Scale) PowerCycle() error {
	if err := s.adc.PowerDown(); err != nil {
		return err
	}
	return s.adc.PowerUp()
}

// Close releases the ADC.
func (s *Scale) Close() error {
	return s.adc.Close()
}
