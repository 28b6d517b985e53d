//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/heater-node/internal/core"
)

// Board is not available on non-Linux platforms.
type Board struct{}

// NewBoard returns an error on non-Linux platforms.
func NewBoard(chipName string, pins Pins) (*Board, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Drive is not implemented on non-Linux platforms.
func (b *Board) Drive(d core.Drive) {}

// LED returns an indicator that does nothing.
func (b *Board) LED(l LED) core.Indicator {
	return NopIndicator{}
}

// Close is not implemented on non-Linux platforms.
func (b *Board) Close() error {
	return nil
}
