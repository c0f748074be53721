package bridge

import "encoding/binary"

// On-wire frame layout (spec.md §3):
//
//	offset 0      slave address      1 byte
//	offset 1      function code      1 byte   (constant FunctionCode)
//	offset 2      sequence           1 byte
//	offset 3..6   application UID    4 bytes  little-endian, 0 = empty/poll/ACK
//	offset 7      application length 1 byte   total length of bytes 3..
//	offset 8..    application body   length-5 bytes
//	offset P-2    CRC16 high byte
//	offset P-1    CRC16 low byte
const (
	HeaderLength = 3
	FooterLength = 2

	// FunctionCode is the proprietary modbus-style function code this
	// protocol reserves for itself.
	FunctionCode = 100

	// LengthFieldOffset is the offset of the application-length byte.
	LengthFieldOffset = 7

	// MinApplicationLength is the length of an empty/poll/ACK frame's
	// application segment (UID + length byte + one discriminant byte + two
	// padding bytes).
	MinApplicationLength = 8

	// MaxApplicationLength is the largest application-packet length this
	// protocol can carry in one frame (no fragmentation, spec §1 Non-goals).
	MaxApplicationLength = 80

	// MaxFrameLength is the largest possible on-wire frame size.
	MaxFrameLength = HeaderLength + MaxApplicationLength + FooterLength
)

// frameLength returns the total on-wire frame size for an application
// segment of the given length (spec §8, "Frame length law": L+5).
func frameLength(applicationLength int) int {
	return HeaderLength + applicationLength + FooterLength
}

// frameEndIndex returns the inclusive index of the frame's last CRC byte,
// given the application-length byte already present at buf[LengthFieldOffset].
// Mirrors the original's packet_end_index computation exactly (spec §4.3):
//
//	7 + ((L - 5) + 2)
func frameEndIndex(lengthByte byte) int {
	return LengthFieldOffset + (int(lengthByte) - 5) + FooterLength
}

// isEmptyApplicationSegment reports whether the application segment (bytes
// 3.. of a frame) encodes the empty/poll/ACK sentinel: UID 0, length 8,
// first body byte 0.
func isEmptyApplicationSegment(buf []byte) bool {
	return len(buf) >= 9 && binary.LittleEndian.Uint32(buf[3:7]) == 0 &&
		buf[LengthFieldOffset] == MinApplicationLength && buf[8] == 0
}

// applicationUID reads the little-endian UID out of a frame at bytes 3..6.
func applicationUID(frame []byte) uint32 {
	return binary.LittleEndian.Uint32(frame[3:7])
}

// buildFrame assembles the on-wire frame for the given slave address,
// sequence number and application segment (bytes that will land at
// offset 3.., whose first byte-length-worth is applicationLength bytes).
// It mirrors send_packet() in the original (spec §4.2).
func buildFrame(address, sequence byte, application []byte) []byte {
	frame := make([]byte, 0, frameLength(len(application)))
	frame = append(frame, address, FunctionCode, sequence)
	frame = append(frame, application...)
	frame = putCRC16(frame)
	return frame
}

// emptyApplicationSegment returns the 8-byte application segment used for
// synthesized empty polls and data-packet ACKs: UID 0, length 8, followed
// by a zero discriminant byte and two more padding bytes. Its own byte
// count must equal MinApplicationLength, the value of its length field —
// frameEndIndex derives the frame boundary from that field alone.
func emptyApplicationSegment() []byte {
	seg := make([]byte, MinApplicationLength)
	seg[4] = MinApplicationLength
	return seg
}
