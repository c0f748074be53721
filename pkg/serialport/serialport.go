// Package serialport adapts go.bug.st/serial into a bridge.SerialPort,
// opening the RS485 line in raw mode (spec §6): 8 data bits, the
// configured stop-bit count and parity, and no inter-byte read timeout,
// so Read blocks for at least one byte and returns whatever else has
// already arrived.
package serialport

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/librescoot/rs485-bridge/pkg/bridge"
)

// Port wraps an open go.bug.st/serial port.
type Port struct {
	port serial.Port
}

// Open opens device with the given configuration. baudRate, parity and
// stopBits come straight from the configuration store (spec §6); parity
// and stop-bit encodings are translated from the original's EEPROM byte
// values into go.bug.st/serial's enums.
func Open(device string, baudRate uint32, parity bridge.Parity, stopBits bridge.StopBits) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: int(baudRate),
		DataBits: 8,
	}

	switch parity {
	case bridge.ParityNone:
		mode.Parity = serial.NoParity
	case bridge.ParityEven:
		mode.Parity = serial.EvenParity
	case bridge.ParityOdd:
		mode.Parity = serial.OddParity
	default:
		return nil, bridge.ErrInvalidParity
	}

	switch stopBits {
	case bridge.StopBits1:
		mode.StopBits = serial.OneStopBit
	case bridge.StopBits2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, bridge.ErrInvalidStopBits
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: opening %s: %w", device, err)
	}

	// No read deadline: Read blocks for at least one byte and returns
	// immediately with whatever else is already buffered. Unlike a
	// VMIN=0/VTIME=0 read it never returns zero bytes at once; the
	// engine's dedicated read goroutine does the waiting.
	if err := p.SetReadTimeout(serial.NoTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("serialport: setting read timeout on %s: %w", device, err)
	}

	return &Port{port: p}, nil
}

func (p *Port) Read(buf []byte) (int, error) {
	return p.port.Read(buf)
}

func (p *Port) Write(buf []byte) (int, error) {
	return p.port.Write(buf)
}

func (p *Port) Close() error {
	return p.port.Close()
}
