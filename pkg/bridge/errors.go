package bridge

import "errors"

// Sentinel errors surfaced by the protocol core. Matching rolfl-modbus's
// errors.go, these are plain sentinels rather than a typed hierarchy —
// callers that care about the distinction use errors.Is.
var (
	// ErrOwnAddressNotMaster is returned from Start when the configured own
	// address is non-zero. Slave-mode operation is out of scope (spec §1).
	ErrOwnAddressNotMaster = errors.New("rs485: configured address is not 0 (master); slave mode is not supported")

	// ErrBaudTooLow is returned from Start when the configured baud rate is
	// below the minimum the timeout formula can reason about.
	ErrBaudTooLow = errors.New("rs485: configured baud rate is too low")

	// ErrNoSlavesConfigured is returned from Start when the slave address
	// table is empty.
	ErrNoSlavesConfigured = errors.New("rs485: no slaves configured")

	// ErrInvalidParity is returned when the configuration store holds a
	// parity byte outside {110, 101, 111}.
	ErrInvalidParity = errors.New("rs485: invalid parity configuration")

	// ErrInvalidStopBits is returned when the configuration store holds a
	// stop-bits byte outside {1, 2}.
	ErrInvalidStopBits = errors.New("rs485: invalid stop bits configuration")

	// ErrNotInitialized is returned by operations invoked before Start or
	// after Shutdown.
	ErrNotInitialized = errors.New("rs485: engine is not initialized")
)
