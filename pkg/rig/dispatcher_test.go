package rig

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeOutputs records every hardware call in order and can be told to
// fail writes for a given device.
type fakeOutputs struct {
	calls []string
	fail  map[DeviceName]error
}

func newFakeOutputs() *fakeOutputs {
	return &fakeOutputs{fail: make(map[DeviceName]error)}
}

func (f *fakeOutputs) Write(d *Device) error {
	if err := f.fail[d.Name]; err != nil {
		return err
	}
	f.calls = append(f.calls, fmt.Sprintf("write %s %g", d.Name, d.SignedValue()))
	return nil
}

func (f *fakeOutputs) Rest(d *Device) error {
	if err := f.fail[d.Name]; err != nil {
		return err
	}
	f.calls = append(f.calls, fmt.Sprintf("rest %s", d.Name))
	return nil
}

func (f *fakeOutputs) Halt(d *Device) error {
	f.calls = append(f.calls, fmt.Sprintf("halt %s", d.Name))
	return nil
}

func (f *fakeOutputs) last() string {
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func newTestDispatcher() (*Dispatcher, *fakeOutputs) {
	out := newFakeOutputs()
	return NewDispatcher(DefaultDevices(), out), out
}

func TestSelectInvalid(t *testing.T) {
	c, out := newTestDispatcher()

	for _, n := range []int{0, 5, -1} {
		if err := c.Select(n); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Select(%d) error = %v, want ErrInvalidInput", n, err)
		}
	}
	if c.Phase() != Idle {
		t.Errorf("phase = %s, want idle", c.Phase())
	}
	if c.SelectedDevice() != nil {
		t.Error("invalid selection should not select a device")
	}
	if len(out.calls) != 0 {
		t.Errorf("invalid selections touched hardware: %v", out.calls)
	}
}

func TestAdjustWithoutSelection(t *testing.T) {
	c, out := newTestDispatcher()

	if err := c.Adjust(1); err != nil {
		t.Fatalf("Adjust without selection: %v", err)
	}
	for _, d := range c.Devices() {
		if d.Value != 0 {
			t.Errorf("%s value = %d, want 0", d.Name, d.Value)
		}
	}
	if len(out.calls) != 0 {
		t.Errorf("no-op adjust touched hardware: %v", out.calls)
	}
}

func TestAdjustClampsAtLimits(t *testing.T) {
	tests := []struct {
		name    string
		device  int
		steps   int
		repeats int
		want    int
	}{
		{"motor caps at 100", 1, 1, 25, 100},
		{"motor floors at 0", 1, -1, 3, 0},
		{"servo caps at 180", 3, 1, 200, 180},
		{"servo floors at 0", 4, -1, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestDispatcher()
			if err := c.Select(tt.device); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < tt.repeats; i++ {
				if err := c.Adjust(tt.steps); err != nil {
					t.Fatal(err)
				}
			}
			if got := c.SelectedDevice().Value; got != tt.want {
				t.Errorf("value = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestActivateWritesCurrentValue(t *testing.T) {
	c, out := newTestDispatcher()

	if err := c.Select(3); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 90; i++ {
		if err := c.Adjust(1); err != nil {
			t.Fatal(err)
		}
	}
	if len(out.calls) != 0 {
		t.Fatalf("adjust before activate touched hardware: %v", out.calls)
	}

	if err := c.Activate(); err != nil {
		t.Fatal(err)
	}
	if c.Phase() != Running {
		t.Errorf("phase = %s, want running", c.Phase())
	}
	if got, want := out.last(), "write chamber_lid 90"; got != want {
		t.Errorf("last call = %q, want %q", got, want)
	}

	// Running: further adjustments write through immediately.
	if err := c.Adjust(-10); err != nil {
		t.Fatal(err)
	}
	if got, want := out.last(), "write chamber_lid 80"; got != want {
		t.Errorf("last call = %q, want %q", got, want)
	}
}

func TestActivateWithoutSelection(t *testing.T) {
	c, out := newTestDispatcher()
	if err := c.Activate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Activate() error = %v, want ErrInvalidInput", err)
	}
	if len(out.calls) != 0 {
		t.Errorf("rejected activate touched hardware: %v", out.calls)
	}
}

func TestPlatformAdjustThenReverse(t *testing.T) {
	c, out := newTestDispatcher()

	if err := c.Select(2); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := c.Adjust(1); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.SelectedDevice().Value; got != 15 {
		t.Fatalf("value after three increments = %d, want 15", got)
	}

	// Direction flips, the stored magnitude does not.
	if err := c.Reverse(); err != nil {
		t.Fatal(err)
	}
	if got := c.SelectedDevice().Value; got != 15 {
		t.Errorf("value after reverse = %d, want 15", got)
	}
	if !c.SelectedDevice().Reversed {
		t.Error("platform should be reversed")
	}

	if err := c.Activate(); err != nil {
		t.Fatal(err)
	}
	if got, want := out.last(), "write platform -15"; got != want {
		t.Errorf("last call = %q, want %q", got, want)
	}
}

func TestReverseWhileRunningRewrites(t *testing.T) {
	c, out := newTestDispatcher()

	if err := c.Select(2); err != nil {
		t.Fatal(err)
	}
	if err := c.Adjust(4); err != nil {
		t.Fatal(err)
	}
	if err := c.Activate(); err != nil {
		t.Fatal(err)
	}
	if err := c.Reverse(); err != nil {
		t.Fatal(err)
	}
	if got, want := out.last(), "write platform -20"; got != want {
		t.Errorf("last call = %q, want %q", got, want)
	}
	if err := c.Reverse(); err != nil {
		t.Fatal(err)
	}
	if got, want := out.last(), "write platform 20"; got != want {
		t.Errorf("last call = %q, want %q", got, want)
	}
}

func TestReverseRejectedForNonPlatform(t *testing.T) {
	for _, n := range []int{1, 3, 4} {
		c, _ := newTestDispatcher()
		if err := c.Select(n); err != nil {
			t.Fatal(err)
		}
		if err := c.Reverse(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Reverse() on device %d error = %v, want ErrInvalidInput", n, err)
		}
		if c.SelectedDevice().Reversed {
			t.Errorf("device %d got a direction flag", n)
		}
	}
}

func TestStopAllZeroesEverything(t *testing.T) {
	c, out := newTestDispatcher()

	// Leave the chamber lid holding at 90 degrees.
	if err := c.Select(3); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 90; i++ {
		if err := c.Adjust(1); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Activate(); err != nil {
		t.Fatal(err)
	}
	// And the platform reversed at 20%.
	if err := c.Select(2); err != nil {
		t.Fatal(err)
	}
	if err := c.Adjust(4); err != nil {
		t.Fatal(err)
	}
	if err := c.Reverse(); err != nil {
		t.Fatal(err)
	}
	if err := c.Activate(); err != nil {
		t.Fatal(err)
	}

	if err := c.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	for _, d := range c.Devices() {
		if d.Value != 0 || d.Enabled || d.Reversed {
			t.Errorf("%s not at rest: value=%d enabled=%v reversed=%v",
				d.Name, d.Value, d.Enabled, d.Reversed)
		}
	}
	if c.Phase() != Idle {
		t.Errorf("phase = %s, want idle", c.Phase())
	}
	if c.SelectedDevice() != nil {
		t.Error("selection should be released")
	}
	for _, d := range AllDevices() {
		want := fmt.Sprintf("rest %s", d)
		found := false
		for _, call := range out.calls {
			if call == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %q in %v", want, out.calls)
		}
	}
}

func TestQuitHaltsAllOutputs(t *testing.T) {
	restore := quickSettle()
	defer restore()

	c, out := newTestDispatcher()
	if err := c.Select(1); err != nil {
		t.Fatal(err)
	}
	if err := c.Adjust(10); err != nil {
		t.Fatal(err)
	}
	if err := c.Activate(); err != nil {
		t.Fatal(err)
	}

	if err := c.Quit(); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if c.Phase() != Shutdown {
		t.Errorf("phase = %s, want shutdown", c.Phase())
	}

	// Every device rests before any carrier halts.
	lastRest, firstHalt := -1, len(out.calls)
	for i, call := range out.calls {
		if strings.HasPrefix(call, "rest ") && i > lastRest {
			lastRest = i
		}
		if strings.HasPrefix(call, "halt ") && i < firstHalt {
			firstHalt = i
		}
	}
	if lastRest == -1 || firstHalt == len(out.calls) {
		t.Fatalf("expected rests and halts, got %v", out.calls)
	}
	if lastRest > firstHalt {
		t.Errorf("halt before all rests completed: %v", out.calls)
	}

	// Terminal: further commands are refused and hardware stays quiet.
	n := len(out.calls)
	if err := c.Select(1); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Select after Quit error = %v, want ErrInterrupted", err)
	}
	if err := c.Quit(); err != nil {
		t.Errorf("second Quit: %v", err)
	}
	if len(out.calls) != n {
		t.Errorf("commands after shutdown touched hardware: %v", out.calls[n:])
	}
}

func TestWriteFailureDisablesWithoutRetry(t *testing.T) {
	c, out := newTestDispatcher()
	out.fail[Auger] = errors.New("pwm: EIO")

	if err := c.Select(1); err != nil {
		t.Fatal(err)
	}
	if err := c.Adjust(2); err != nil {
		t.Fatal(err)
	}
	err := c.Activate()
	if !errors.Is(err, ErrHardwareWrite) {
		t.Fatalf("Activate() error = %v, want ErrHardwareWrite", err)
	}
	if c.SelectedDevice().Enabled {
		t.Error("failed device should be disabled")
	}
	if len(out.calls) != 0 {
		t.Errorf("failed write should not be retried: %v", out.calls)
	}

	found := false
	for _, msg := range c.Notices() {
		if strings.Contains(msg, "disabled") {
			found = true
		}
	}
	if !found {
		t.Errorf("no disable notice in %v", c.Notices())
	}
}

func TestMotorZeroIsLogicallyOff(t *testing.T) {
	c, _ := newTestDispatcher()

	if err := c.Select(1); err != nil {
		t.Fatal(err)
	}
	if err := c.Adjust(1); err != nil {
		t.Fatal(err)
	}
	if err := c.Activate(); err != nil {
		t.Fatal(err)
	}
	if !c.SelectedDevice().Enabled {
		t.Fatal("running motor should be enabled")
	}

	if err := c.Adjust(-1); err != nil {
		t.Fatal(err)
	}
	if c.SelectedDevice().Enabled {
		t.Error("motor at 0% should be logically off")
	}
	if c.Phase() != Running {
		t.Errorf("phase = %s, want running (selection kept)", c.Phase())
	}
}

func TestNoticesKeepRecentEntries(t *testing.T) {
	c, _ := newTestDispatcher()
	for i := 0; i < 20; i++ {
		if err := c.Select(1 + i%4); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(c.Notices()); got > maxNotices {
		t.Errorf("kept %d notices, want at most %d", got, maxNotices)
	}
	last := c.Notices()[len(c.Notices())-1]
	if !strings.Contains(last, "soil_dropper") {
		t.Errorf("last notice = %q, want the most recent selection", last)
	}
}

// quickSettle removes the shutdown settle delay for tests and returns a
// restore func.
func quickSettle() func() {
	old := settleDelay
	settleDelay = 0
	return func() { settleDelay = old }
}
