// Package configstore loads a bridge.Config out of a bridge.ConfigReader
// using the original implementation's byte-offset layout (spec §6, §9),
// and provides a file-backed ConfigReader standing in for the original's
// I2C EEPROM, which is explicitly out of scope for this core.
package configstore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/librescoot/rs485-bridge/pkg/bridge"
)

const (
	offsetOwnAddress = 4
	offsetBaudRate   = 400
	offsetParity     = 404
	offsetStopBits   = 405
	offsetSlaveTable = 100
	slaveEntryStride = 4
	maxSlaveEntries  = bridge.MaxSlaves
)

// FileReader implements bridge.ConfigReader by reading a flat byte image
// from disk, the development/test stand-in for the original's EEPROM.
type FileReader struct {
	path string
}

// NewFileReader returns a FileReader for path. The file is not opened
// here; each Read opens it, reads at the given offset, and closes it.
func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

func (r *FileReader) Read(offset uint16, length int) ([]byte, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("configstore: opening %s: %w", r.path, err)
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("configstore: reading %d bytes at offset %d: %w", length, offset, err)
	}
	return buf, nil
}

// Load reads a full bridge.Config out of r using the original's EEPROM
// layout: own address (u32 LE) at offset 4, baud rate (u32 LE) at offset
// 400, parity byte at 404, stop-bits byte at 405, and a zero-terminated
// table of up to MaxSlaves 4-byte-strided address entries starting at
// offset 100.
func Load(r bridge.ConfigReader) (bridge.Config, error) {
	var cfg bridge.Config

	ownAddr, err := readUint32(r, offsetOwnAddress)
	if err != nil {
		return cfg, err
	}
	cfg.OwnAddress = ownAddr

	baud, err := readUint32(r, offsetBaudRate)
	if err != nil {
		return cfg, err
	}
	cfg.BaudRate = baud

	parityByte, err := r.Read(offsetParity, 1)
	if err != nil {
		return cfg, err
	}
	cfg.Parity = bridge.Parity(parityByte[0])

	stopBitsByte, err := r.Read(offsetStopBits, 1)
	if err != nil {
		return cfg, err
	}
	cfg.StopBits = bridge.StopBits(stopBitsByte[0])

	for i := 0; i < maxSlaveEntries; i++ {
		entry, err := readUint32(r, uint16(offsetSlaveTable+i*slaveEntryStride))
		if err != nil {
			return cfg, err
		}
		if entry == 0 {
			break
		}
		cfg.SlaveAddresses = append(cfg.SlaveAddresses, byte(entry))
	}

	return cfg, nil
}

func readUint32(r bridge.ConfigReader, offset uint16) (uint32, error) {
	buf, err := r.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}
