package rig

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Phase is the dispatcher's lifecycle state.
type Phase int

const (
	// Idle means no device is selected.
	Idle Phase = iota
	// Selected means a device is selected but not energised by the
	// current selection cycle.
	Selected
	// Running means the selected device has been activated and value
	// changes are written through immediately.
	Running
	// Shutdown is terminal: outputs are released and no further
	// commands are accepted.
	Shutdown
)

func (p Phase) String() string {
	switch p {
	case Selected:
		return "selected"
	case Running:
		return "running"
	case Shutdown:
		return "shutdown"
	default:
		return "idle"
	}
}

// Outputs pushes device state to hardware. The real implementation sits
// on PWM pins in pkg/hw; tests substitute fakes.
type Outputs interface {
	// Write drives the device at its current value, direction included.
	Write(d *Device) error
	// Rest returns the device to its de-energised command: the neutral
	// pulse for motors, no pulse for servos.
	Rest(d *Device) error
	// Halt stops the PWM carrier on the device's pin.
	Halt(d *Device) error
}

const maxNotices = 6

// settleDelay lets motor controllers latch the neutral pulse before the
// carrier is halted on shutdown.
var settleDelay = 500 * time.Millisecond

// Dispatcher validates operator commands and turns them into device
// state transitions and hardware writes. It is not safe for concurrent
// use; the control TUI drives it from a single update loop.
type Dispatcher struct {
	devices []*Device
	out     Outputs
	phase   Phase
	sel     *Device
	notices []string
}

// NewDispatcher wires the device table, in ID order, to out.
func NewDispatcher(devices []*Device, out Outputs) *Dispatcher {
	return &Dispatcher{devices: devices, out: out}
}

// Devices returns the device table in ID order.
func (c *Dispatcher) Devices() []*Device {
	return c.devices
}

// Phase returns the dispatcher's lifecycle state.
func (c *Dispatcher) Phase() Phase {
	return c.phase
}

// SelectedDevice returns the currently selected device, or nil in Idle.
func (c *Dispatcher) SelectedDevice() *Device {
	return c.sel
}

// Notices returns the most recent operator messages, oldest first.
func (c *Dispatcher) Notices() []string {
	return c.notices
}

func (c *Dispatcher) notice(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	c.notices = append(c.notices, msg)
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
}

// Select picks device n (1-4). An out-of-range n is reported and leaves
// all state unchanged. Selecting does not touch the previous device's
// output; a running motor keeps running until stopped or re-commanded.
func (c *Dispatcher) Select(n int) error {
	if c.phase == Shutdown {
		return ErrInterrupted
	}
	if n < 1 || n > len(c.devices) {
		c.notice("invalid selection %d (want 1-%d)", n, len(c.devices))
		return fmt.Errorf("%w: selection %d", ErrInvalidInput, n)
	}
	c.sel = c.devices[n-1]
	c.phase = Selected
	c.notice("selected %s (%s on %s)", c.sel.Name, c.sel.Kind, c.sel.Pin)
	return nil
}

// Activate energises the selected device at its current value and
// switches value changes to write-through. Without a selection it is
// rejected.
func (c *Dispatcher) Activate() error {
	if c.phase == Shutdown {
		return ErrInterrupted
	}
	if c.sel == nil {
		c.notice("activate ignored: no device selected")
		return fmt.Errorf("%w: activate without selection", ErrInvalidInput)
	}
	c.phase = Running
	if err := c.write(c.sel); err != nil {
		return err
	}
	c.notice("%s running at %d %s", c.sel.Name, c.sel.Value, c.sel.Kind.Unit())
	return nil
}

// Adjust nudges the selected device by steps increments (negative is
// down), clamping to the device's range. While Running the new value is
// written through immediately; a motor driven to zero is logically off
// but keeps its selection. Without a selection the command is a no-op.
func (c *Dispatcher) Adjust(steps int) error {
	if c.phase == Shutdown {
		return ErrInterrupted
	}
	d := c.sel
	if d == nil {
		c.notice("adjust ignored: no device selected")
		return nil
	}
	d.Value = d.Clamp(d.Value + steps*d.Step())
	if c.phase == Running {
		if err := c.write(d); err != nil {
			return err
		}
	}
	c.notice("%s set to %d %s", d.Name, d.Value, d.Kind.Unit())
	return nil
}

// Reverse toggles the platform's direction. The stored value is
// unchanged; while Running the inverted output is written immediately,
// otherwise it takes effect on the next write. Any other device rejects
// the command.
func (c *Dispatcher) Reverse() error {
	if c.phase == Shutdown {
		return ErrInterrupted
	}
	d := c.sel
	if d == nil || !d.Reversible() {
		c.notice("reverse is only valid for the platform motor")
		return fmt.Errorf("%w: reverse", ErrInvalidInput)
	}
	d.Reversed = !d.Reversed
	dir := "forward"
	if d.Reversed {
		dir = "reverse"
	}
	c.notice("platform direction %s", dir)
	if c.phase == Running {
		return c.write(d)
	}
	return nil
}

// StopAll zeroes every device, resets direction flags and releases the
// selection. Motors receive the neutral pulse and servos are released.
// Rest failures are reported but do not stop the sweep.
func (c *Dispatcher) StopAll() error {
	var errs error
	for _, d := range c.devices {
		d.Value = 0
		d.Reversed = false
		d.Enabled = false
		if err := c.out.Rest(d); err != nil {
			c.notice("stop %s failed: %v", d.Name, err)
			errs = multierr.Append(errs, fmt.Errorf("rest %s: %w", d.Name, ErrHardwareWrite))
		}
	}
	c.sel = nil
	c.phase = Idle
	c.notice("all devices stopped")
	return errs
}

// Quit runs the stop-all sequence, waits for the outputs to settle and
// halts every PWM carrier. The dispatcher accepts no further commands
// afterwards. Quit is idempotent.
func (c *Dispatcher) Quit() error {
	if c.phase == Shutdown {
		return nil
	}
	errs := c.StopAll()
	time.Sleep(settleDelay)
	for _, d := range c.devices {
		if err := c.out.Halt(d); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("halt %s: %w", d.Name, ErrHardwareWrite))
		}
	}
	c.phase = Shutdown
	return errs
}

// write pushes d's current state to hardware. On failure the device is
// marked disabled and not retried.
func (c *Dispatcher) write(d *Device) error {
	if err := c.out.Write(d); err != nil {
		d.Enabled = false
		c.notice("write %s failed: %v (device disabled)", d.Name, err)
		return fmt.Errorf("write %s: %w", d.Name, ErrHardwareWrite)
	}
	d.Enabled = d.Kind == Servo || d.Value != 0
	return nil
}
