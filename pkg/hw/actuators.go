package hw

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/lusi-lab/soilrig/pkg/rig"
)

// ActuatorPWMHz is the carrier frequency shared by the Spark MAX motor
// controllers and the hobby servos.
const ActuatorPWMHz = 50

// neutralDuty is the Spark MAX neutral pulse (1.5ms at 50Hz).
const neutralDuty = 7.5

// MotorDuty converts a signed speed percentage (-100..100) to the Spark
// MAX duty cycle. 7.5% is neutral, 10% full forward, 5% full reverse.
func MotorDuty(speed float64) float64 {
	if speed > 100 {
		speed = 100
	} else if speed < -100 {
		speed = -100
	}
	return neutralDuty + speed/100*2.5
}

// ServoDuty converts an angle in degrees (0..180) to the hobby-servo
// duty cycle. 2.5% at 0 degrees, 12.5% at 180.
func ServoDuty(angle float64) float64 {
	if angle < 0 {
		angle = 0
	} else if angle > 180 {
		angle = 180
	}
	return 2.5 + angle/18
}

var _ rig.Outputs = (*Actuators)(nil)

// Actuators drives the rig's outputs through their PWM pins. It
// implements rig.Outputs.
type Actuators struct {
	pins map[rig.DeviceName]Pin
}

// NewActuators wires an already-open pin per device. Used by tests; the
// rig binary goes through OpenActuators.
func NewActuators(pins map[rig.DeviceName]Pin) *Actuators {
	return &Actuators{pins: pins}
}

// OpenActuators opens one PWM line per device at the shared 50Hz
// carrier and parks every device: neutral pulse for motors, no pulse
// for servos. On failure the already-open pins are halted.
func OpenActuators(devices []*rig.Device) (*Actuators, error) {
	a := &Actuators{pins: make(map[rig.DeviceName]Pin, len(devices))}
	for _, d := range devices {
		pin, err := OpenPWM(d.Pin, ActuatorPWMHz)
		if err != nil {
			_ = a.Close()
			return nil, errors.Wrapf(rig.ErrHardwareOpen, "%s on %s: %v", d.Name, d.Pin, err)
		}
		a.pins[d.Name] = pin
		if err := a.Rest(d); err != nil {
			_ = a.Close()
			return nil, errors.Wrapf(rig.ErrHardwareOpen, "parking %s: %v", d.Name, err)
		}
	}
	return a, nil
}

// Write drives the device at its current value, direction included.
func (a *Actuators) Write(d *rig.Device) error {
	pin, err := a.pin(d)
	if err != nil {
		return err
	}
	if d.Kind == rig.Motor {
		return pin.SetDuty(MotorDuty(d.SignedValue()))
	}
	return pin.SetDuty(ServoDuty(d.SignedValue()))
}

// Rest parks the device: neutral pulse for motors so the controller
// stays armed, zero duty for servos so the horn is released.
func (a *Actuators) Rest(d *rig.Device) error {
	pin, err := a.pin(d)
	if err != nil {
		return err
	}
	if d.Kind == rig.Motor {
		return pin.SetDuty(neutralDuty)
	}
	return pin.SetDuty(0)
}

// Halt stops the PWM carrier on the device's pin.
func (a *Actuators) Halt(d *rig.Device) error {
	pin, err := a.pin(d)
	if err != nil {
		return err
	}
	return pin.Halt()
}

// Close halts every open pin, aggregating errors.
func (a *Actuators) Close() error {
	var errs error
	for name, pin := range a.pins {
		if err := pin.Halt(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "halt %s", name))
		}
	}
	return errs
}

func (a *Actuators) pin(d *rig.Device) (Pin, error) {
	pin, ok := a.pins[d.Name]
	if !ok {
		return nil, errors.Errorf("no pin open for %s", d.Name)
	}
	return pin, nil
}
