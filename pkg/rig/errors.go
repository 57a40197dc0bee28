package rig

import "errors"

// Error taxonomy shared by the rig utilities. Hardware faults are never
// retried automatically: these are physical actuators, and a failed
// write must not be re-driven without an explicit operator command.
var (
	// ErrInvalidInput flags a command or flag value the dispatcher refuses.
	// Reported to the operator; the loop continues.
	ErrInvalidInput = errors.New("invalid input")

	// ErrHardwareOpen means a pin, ADC or camera handle could not be
	// acquired at startup. Fatal: callers exit non-zero.
	ErrHardwareOpen = errors.New("hardware open failure")

	// ErrHardwareWrite means a write to an already-open output failed.
	// The device stays disabled until re-selected and re-activated.
	ErrHardwareWrite = errors.New("hardware write failure")

	// ErrInterrupted reports an operator-requested shutdown.
	ErrInterrupted = errors.New("interrupt requested")
)
