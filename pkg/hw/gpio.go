// Package hw talks to the rig's Raspberry Pi header: PWM outputs for
// the actuators and the bit-banged HX711 load-cell interface. Pins are
// resolved by their BCM names ("GPIO12") through the periph host
// drivers.
package hw

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Pin is one PWM-capable GPIO line at a fixed carrier frequency.
type Pin interface {
	// SetDuty drives the line at pct percent duty (0-100). The carrier
	// keeps running at 0.
	SetDuty(pct float64) error
	// Halt stops the PWM carrier and releases the line.
	Halt() error
	Name() string
}

var (
	hostOnce sync.Once
	hostErr  error
)

// initHost loads the periph host drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

type periphPin struct {
	pin  gpio.PinIO
	freq physic.Frequency
}

// OpenPWM resolves a pin by name and returns it configured for freqHz
// PWM with the line resting at zero duty.
func OpenPWM(name string, freqHz uint) (Pin, error) {
	if err := initHost(); err != nil {
		return nil, errors.Wrap(err, "initializing gpio host")
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no gpio pin named %q", name)
	}
	pp := &periphPin{pin: p, freq: physic.Hertz * physic.Frequency(freqHz)}
	if err := pp.SetDuty(0); err != nil {
		return nil, errors.Wrapf(err, "starting pwm on %s", name)
	}
	return pp, nil
}

func (p *periphPin) SetDuty(pct float64) error {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	duty := gpio.Duty(pct / 100 * float64(gpio.DutyMax))
	return p.pin.PWM(duty, p.freq)
}

func (p *periphPin) Halt() error {
	return p.pin.Halt()
}

func (p *periphPin) Name() string {
	return p.pin.Name()
}
