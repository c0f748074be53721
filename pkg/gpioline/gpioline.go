// Package gpioline adapts a periph.io GPIO pin into a bridge.TxEnableLine,
// the receive-enable line the original drives low once at startup and
// never touches again (spec §6, §9 — explicitly out of scope for the
// core engine itself).
package gpioline

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Line wraps a named periph.io GPIO pin.
type Line struct {
	pin gpio.PinIO
}

// Open initializes the periph.io host drivers and resolves pinName
// (e.g. "GPIO17") to a usable output pin.
func Open(pinName string) (*Line, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpioline: initializing host drivers: %w", err)
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("gpioline: no such pin %q", pinName)
	}

	return &Line{pin: pin}, nil
}

// SetLow drives the line low, enabling the transceiver's receive path.
func (l *Line) SetLow() error {
	return l.pin.Out(gpio.Low)
}

// Close releases the pin back to its default (input) state.
func (l *Line) Close() error {
	return l.pin.In(gpio.PullNoChange, gpio.NoEdge)
}
