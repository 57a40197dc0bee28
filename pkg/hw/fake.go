package hw

// FakePin records duty changes instead of driving hardware.
type FakePin struct {
	PinName string
	Duties  []float64
	Halted  bool
	Err     error
}

func (f *FakePin) SetDuty(pct float64) error {
	if f.Err != nil {
		return f.Err
	}
	f.Duties = append(f.Duties, pct)
	return nil
}

func (f *FakePin) Halt() error {
	if f.Err != nil {
		return f.Err
	}
	f.Halted = true
	return nil
}

func (f *FakePin) Name() string {
	return f.PinName
}

// LastDuty returns the most recent duty written, or -1 if none.
func (f *FakePin) LastDuty() float64 {
	if len(f.Duties) == 0 {
		return -1
	}
	return f.Duties[len(f.Duties)-1]
}
