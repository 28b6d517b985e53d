// Package gpio drives the heater triac and the status LEDs on GPIO outputs.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/heater-node/internal/core"

// DefaultChip is the GPIO chip on a Raspberry Pi header.
const DefaultChip = "gpiochip0"

// Default line offsets (BCM numbering)
const (
	DefaultPinTriacN    = 23
	DefaultPinTriacP    = 24
	DefaultPinLEDRed    = 17
	DefaultPinLEDYellow = 27
	DefaultPinLEDGreen  = 22
)

// Pins maps the logical outputs to line offsets.
type Pins struct {
	TriacN    int
	TriacP    int
	LEDRed    int
	LEDYellow int
	LEDGreen  int
}

// DefaultPins returns the stock wiring.
func DefaultPins() Pins {
	return Pins{
		TriacN:    DefaultPinTriacN,
		TriacP:    DefaultPinTriacP,
		LEDRed:    DefaultPinLEDRed,
		LEDYellow: DefaultPinLEDYellow,
		LEDGreen:  DefaultPinLEDGreen,
	}
}

// LED identifies a status LED.
type LED int

const (
	LEDRed    LED = iota // fault
	LEDYellow            // bring-up
	LEDGreen             // activity
)

func (l LED) String() string {
	switch l {
	case LEDRed:
		return "red"
	case LEDYellow:
		return "yellow"
	case LEDGreen:
		return "green"
	default:
		return "unknown"
	}
}

// triacLevels returns the raw (P, N) line levels for a drive signal.
// Both lines low fires the triac; N high blocks it.
func triacLevels(d core.Drive) (p, n int) {
	if d == core.DriveHeating {
		return 0, 0
	}
	return 0, 1
}

// levelOf converts a logical LED state to a raw line level.
func levelOf(on bool) int {
	if on {
		return 1
	}
	return 0
}

// NopIndicator is an indicator with no LED behind it.
type NopIndicator struct{}

// Set does nothing.
func (NopIndicator) Set(bool) {}
