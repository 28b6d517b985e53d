//go:build linux

package gpio

import (
	"fmt"
	"log"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/heater-node/internal/core"
)

const consumer = "heater-node"

// Board owns the heater and LED output lines on the Linux GPIO character
// device. Drive and the LED indicators are called from the scheduler loop only.
type Board struct {
	chip   *gpiocdev.Chip
	triacN *gpiocdev.Line
	triacP *gpiocdev.Line
	leds   map[LED]*gpiocdev.Line
}

// NewBoard requests all output lines. The heater starts off, the yellow LED
// on to signal bring-up.
func NewBoard(chipName string, pins Pins) (*Board, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	b := &Board{chip: chip, leds: make(map[LED]*gpiocdev.Line)}

	p, n := triacLevels(core.DriveOff)
	if b.triacN, err = chip.RequestLine(pins.TriacN, gpiocdev.AsOutput(n)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request triac N pin %d: %w", pins.TriacN, err)
	}
	if b.triacP, err = chip.RequestLine(pins.TriacP, gpiocdev.AsOutput(p)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request triac P pin %d: %w", pins.TriacP, err)
	}

	for led, pin := range map[LED]int{LEDRed: pins.LEDRed, LEDYellow: pins.LEDYellow, LEDGreen: pins.LEDGreen} {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(levelOf(led == LEDYellow)))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request %s LED pin %d: %w", led, pin, err)
		}
		b.leds[led] = line
	}
	return b, nil
}

// Drive sets the triac lines. P is always written first so the element
// passes through the blocked state on every transition.
func (b *Board) Drive(d core.Drive) {
	p, n := triacLevels(d)
	if err := b.triacP.SetValue(p); err != nil {
		log.Printf("gpio: set triac P: %v", err)
	}
	if err := b.triacN.SetValue(n); err != nil {
		log.Printf("gpio: set triac N: %v", err)
	}
}

// LED returns an indicator for the given LED.
func (b *Board) LED(l LED) core.Indicator {
	line := b.leds[l]
	if line == nil {
		return NopIndicator{}
	}
	return ledLine{name: l, line: line}
}

type ledLine struct {
	name LED
	line *gpiocdev.Line
}

func (l ledLine) Set(on bool) {
	if err := l.line.SetValue(levelOf(on)); err != nil {
		log.Printf("gpio: set %s LED: %v", l.name, err)
	}
}

// Close blocks the triac and releases all lines.
// Lines are reconfigured as inputs biased to their safe level: N pulled up
// keeps the triac blocked while nothing drives it.
func (b *Board) Close() error {
	var errs []error

	if b.triacP != nil {
		if err := b.triacP.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure triac P pin: %w", err))
		}
		if err := b.triacP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close triac P pin: %w", err))
		}
	}
	if b.triacN != nil {
		if err := b.triacN.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure triac N pin: %w", err))
		}
		if err := b.triacN.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close triac N pin: %w", err))
		}
	}
	for led, line := range b.leds {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s LED pin: %w", led, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s LED pin: %w", led, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
