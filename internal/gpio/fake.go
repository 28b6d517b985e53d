package gpio

import "github.com/sweeney/heater-node/internal/core"

// FakeActuator records drive signals for test assertions.
type FakeActuator struct {
	// Drives contains every drive signal in order.
	Drives []core.Drive
}

// NewFakeActuator creates a FakeActuator.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// Drive records the signal.
func (f *FakeActuator) Drive(d core.Drive) {
	f.Drives = append(f.Drives, d)
}

// Current returns the last drive signal, OFF if none was sent.
func (f *FakeActuator) Current() core.Drive {
	if len(f.Drives) == 0 {
		return core.DriveOff
	}
	return f.Drives[len(f.Drives)-1]
}

// Levels returns the raw (P, N) line levels the real board would output.
func (f *FakeActuator) Levels() (p, n int) {
	return triacLevels(f.Current())
}

// FakeIndicator records indicator changes.
type FakeIndicator struct {
	// On is the current state.
	On bool

	// Sets contains every value passed to Set.
	Sets []bool
}

// Set records the state.
func (f *FakeIndicator) Set(on bool) {
	f.On = on
	f.Sets = append(f.Sets, on)
}

// Reset clears recorded state.
func (f *FakeIndicator) Reset() {
	f.On = false
	f.Sets = nil
}
