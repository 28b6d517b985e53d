package sensor

import (
	"errors"

	"github.com/sweeney/heater-node/internal/core"
)

// Sample is a scripted reading. A non-nil Err makes that read fail.
type Sample struct {
	Reading core.Reading
	Err     error
}

// FakeSensor is a test double that returns scripted readings.
type FakeSensor struct {
	// Samples contains scripted readings to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Reads counts calls to Read.
	Reads int

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeSensor creates a FakeSensor with the given samples.
func NewFakeSensor(samples ...Sample) *FakeSensor {
	return &FakeSensor{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeSensor) Read() (core.Reading, error) {
	f.Reads++
	if f.ReadError != nil {
		return core.Reading{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return core.Reading{}, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Reading, s.Err
}

// Reset rewinds the sensor to the first sample.
func (f *FakeSensor) Reset() {
	f.index = 0
	f.Reads = 0
}
