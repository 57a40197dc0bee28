// Package rig models the soil rig's four actuators and the command
// dispatcher that drives them.
package rig

// DeviceName identifies one actuator on the rig.
type DeviceName string

// The rig's actuators, in selection order.
const (
	Auger       DeviceName = "auger"
	Platform    DeviceName = "platform"
	ChamberLid  DeviceName = "chamber_lid"
	SoilDropper DeviceName = "soil_dropper"
)

// AllDevices returns the device names in selection order (IDs 1-4).
func AllDevices() []DeviceName {
	return []DeviceName{Auger, Platform, ChamberLid, SoilDropper}
}

// DeviceKind distinguishes continuous-speed motor controllers from
// fixed-angle hobby servos.
type DeviceKind int

const (
	Motor DeviceKind = iota
	Servo
)

func (k DeviceKind) String() string {
	if k == Servo {
		return "servo"
	}
	return "motor"
}

// Unit returns the display unit for values of this kind.
func (k DeviceKind) Unit() string {
	if k == Servo {
		return "deg"
	}
	return "%"
}

// Device is one actuator's in-memory state. Value is percent speed for
// motors and degrees for servos; Reversed is meaningful only for the
// platform. Enabled tracks whether the output is actively energised.
type Device struct {
	ID       int
	Name     DeviceName
	Kind     DeviceKind
	Pin      string
	Value    int
	Reversed bool
	Enabled  bool
}

// DefaultDevices builds the four-device table with the rig's pin map.
// All values start at zero with outputs de-energised.
func DefaultDevices() []*Device {
	return []*Device{
		{ID: 1, Name: Auger, Kind: Motor, Pin: "GPIO12"},
		{ID: 2, Name: Platform, Kind: Motor, Pin: "GPIO13"},
		{ID: 3, Name: ChamberLid, Kind: Servo, Pin: "GPIO18"},
		{ID: 4, Name: SoilDropper, Kind: Servo, Pin: "GPIO19"},
	}
}

// Step returns the adjustment increment: 5% for motors, 1 degree for
// servos.
func (d *Device) Step() int {
	if d.Kind == Motor {
		return 5
	}
	return 1
}

// Max returns the top of the device's valid range.
func (d *Device) Max() int {
	if d.Kind == Motor {
		return 100
	}
	return 180
}

// Clamp saturates v to [0, Max].
func (d *Device) Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if max := d.Max(); v > max {
		return max
	}
	return v
}

// Reversible reports whether the device supports direction reversal.
// Only the platform motor does; the auger would jam its flighting.
func (d *Device) Reversible() bool {
	return d.Name == Platform
}

// SignedValue returns the commanded value with direction applied,
// negative meaning reverse.
func (d *Device) SignedValue() float64 {
	if d.Kind == Motor && d.Reversed {
		return -float64(d.Value)
	}
	return float64(d.Value)
}
