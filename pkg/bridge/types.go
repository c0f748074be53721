package bridge

import "time"

// SerialPort is the external collaborator for the raw RS485 byte stream
// (spec §6). A concrete implementation lives in pkg/serialport, wrapping
// go.bug.st/serial; tests substitute an in-memory pipe.
type SerialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// TxEnableLine is the external collaborator for the GPIO receive-enable
// line (spec §6, explicitly out of scope for this core). The engine
// drives it low once at startup and never touches it again.
type TxEnableLine interface {
	SetLow() error
	Close() error
}

// ConfigReader is the external non-volatile configuration store (spec §6).
// Offsets and lengths follow the original EEPROM layout (spec §6, §9).
type ConfigReader interface {
	Read(offset uint16, length int) ([]byte, error)
}

// Host is the in-process dispatch collaborator this core redispatches
// inbound application packets into, and registers UID->slave mappings
// with (spec §6: network_dispatch_response / stack_add_recipient). A
// concrete Redis-backed implementation lives in pkg/hostbus.
type Host interface {
	// DispatchResponse redispatches a freshly-received application packet
	// into the host event loop.
	DispatchResponse(packet []byte) error
	// AddRecipient registers that uid is reachable through the slave at
	// slaveAddress, so future outbound packets with that UID can be
	// routed without a broadcast.
	AddRecipient(uid uint32, slaveAddress byte) error
}

// Recipient tags an outbound packet with the slave it must be routed to.
// A nil *Recipient means broadcast, and so does any packet whose UID is 0,
// whatever its Recipient (spec §4.7).
type Recipient struct {
	// Opaque is the slave address this packet must be routed to.
	Opaque byte
}

// Config is the set of values read from the configuration store at
// startup (spec §6). OwnAddress must be 0 (master); Start rejects a
// non-zero value with ErrOwnAddressNotMaster.
type Config struct {
	OwnAddress      uint32
	BaudRate        uint32
	Parity          Parity
	StopBits        StopBits
	SlaveAddresses  []byte // in configured order, zero-terminated, <= MaxSlaves
}

// Parity mirrors the EEPROM-layout encoding from the original
// implementation (spec §6, §9): 110 none, 101 even, 111 odd.
type Parity byte

const (
	ParityNone Parity = 110
	ParityEven Parity = 101
	ParityOdd  Parity = 111
)

// StopBits is the raw EEPROM stop-bits byte: 1 or 2 (spec §6).
type StopBits byte

const (
	StopBits1 StopBits = 1
	StopBits2 StopBits = 2
)

// TimeoutBytes is the number of byte-times the deadline calculation
// budgets for (one max frame plus one byte of slack), spec §4.6.
const TimeoutBytes = 86

// ComputeTimeout reproduces the original's deadline formula bit-for-bit
// (spec §4.6, §9):
//
//	timeout_ns = (86*8/baud) * 2 * 1e9 + 8e6
func ComputeTimeout(baudRate uint32) time.Duration {
	secondsPerByteRun := float64(TimeoutBytes*8) / float64(baudRate)
	ns := secondsPerByteRun*2*1e9 + 8e6
	return time.Duration(ns)
}
