package hw

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// readyTimeout bounds the wait for the HX711 to finish a conversion.
// The chip runs at 10 samples per second, so anything beyond a second
// means a wiring fault.
const readyTimeout = 2 * time.Second

// hxPin is the slice of gpio.PinIO the driver needs, so tests can
// substitute a scripted chip.
type hxPin interface {
	Read() gpio.Level
	Out(gpio.Level) error
	Halt() error
}

// HX711 reads a load cell through the 24-bit HX711 ADC, bit-banged on
// two GPIO lines. Channel A at gain 128.
type HX711 struct {
	data  hxPin
	clock hxPin
}

// OpenHX711 claims the data and clock lines and wakes the chip.
func OpenHX711(dataPin, clockPin string) (*HX711, error) {
	if err := initHost(); err != nil {
		return nil, errors.Wrap(err, "initializing gpio host")
	}
	data := gpioreg.ByName(dataPin)
	if data == nil {
		return nil, errors.Errorf("no gpio pin named %q", dataPin)
	}
	clock := gpioreg.ByName(clockPin)
	if clock == nil {
		return nil, errors.Errorf("no gpio pin named %q", clockPin)
	}
	if err := data.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "configuring %s as input", dataPin)
	}
	if err := clock.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "configuring %s as output", clockPin)
	}
	return &HX711{data: data, clock: clock}, nil
}

// ReadRaw returns one signed 24-bit conversion. It blocks until the
// chip signals data ready or ctx is cancelled.
func (h *HX711) ReadRaw(ctx context.Context) (int32, error) {
	if err := h.waitReady(ctx); err != nil {
		return 0, err
	}
	var raw uint32
	for i := 0; i < 24; i++ {
		if err := h.clock.Out(gpio.High); err != nil {
			return 0, err
		}
		bit := h.data.Read()
		if err := h.clock.Out(gpio.Low); err != nil {
			return 0, err
		}
		raw <<= 1
		if bit == gpio.High {
			raw |= 1
		}
	}
	// A 25th pulse selects channel A gain 128 for the next conversion.
	if err := h.clock.Out(gpio.High); err != nil {
		return 0, err
	}
	if err := h.clock.Out(gpio.Low); err != nil {
		return 0, err
	}
	return decode24(raw), nil
}

// waitReady polls the data line until the chip pulls it low.
func (h *HX711) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(readyTimeout)
	for h.data.Read() == gpio.High {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return errors.New("hx711: data ready timeout")
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// PowerDown puts the chip to sleep by holding the clock line high. The
// chip powers down 60us after the rising edge.
func (h *HX711) PowerDown() error {
	if err := h.clock.Out(gpio.Low); err != nil {
		return err
	}
	if err := h.clock.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(100 * time.Microsecond)
	return nil
}

// PowerUp wakes the chip. The first conversion after wake settles about
// 400ms later.
func (h *HX711) PowerUp() error {
	return h.clock.Out(gpio.Low)
}

// Close powers the chip down and releases both lines.
func (h *HX711) Close() error {
	var errs error
	if err := h.PowerDown(); err != nil {
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, h.clock.Halt())
	errs = multierr.Append(errs, h.data.Halt())
	return errs
}

// decode24 sign-extends a raw 24-bit two's-complement sample.
func decode24(raw uint32) int32 {
	raw &= 0xFFFFFF
	if raw&0x800000 != 0 {
		return int32(raw | 0xFF000000)
	}
	return int32(raw)
}
