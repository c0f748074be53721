package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameLengthLaw(t *testing.T) {
	for appLen := 0; appLen <= MaxApplicationLength; appLen++ {
		assert.Equal(t, appLen+5, frameLength(appLen))
	}
}

func TestFrameEndIndexMatchesMinApplicationLength(t *testing.T) {
	end := frameEndIndex(MinApplicationLength)
	require.Equal(t, 12, end)
	assert.Equal(t, frameLength(MinApplicationLength), end+1)
}

func TestBuildFrameRoundTrip(t *testing.T) {
	application := emptyApplicationSegment()
	frame := buildFrame(5, 42, application)

	require.Len(t, frame, frameLength(len(application)))
	assert.Equal(t, byte(5), frame[0], "address")
	assert.Equal(t, byte(FunctionCode), frame[1], "function code")
	assert.Equal(t, byte(42), frame[2], "sequence")

	end := frameEndIndex(frame[LengthFieldOffset])
	require.Equal(t, len(frame)-1, end)

	want := crc16(frame[:end-1])
	got := uint16(frame[end-1])<<8 | uint16(frame[end])
	assert.Equal(t, want, got, "trailing CRC")
}

func TestEmptyApplicationSegmentIsSelfConsistent(t *testing.T) {
	seg := emptyApplicationSegment()
	require.Len(t, seg, MinApplicationLength)
	assert.Equal(t, byte(MinApplicationLength), seg[4], "length field")

	frame := buildFrame(1, 0, seg)
	assert.True(t, isEmptyApplicationSegment(frame))
}

func TestIsEmptyApplicationSegmentRejectsDataFrame(t *testing.T) {
	application := []byte{1, 0, 0, 0, 9, 7, 0}
	frame := buildFrame(1, 0, application)
	assert.False(t, isEmptyApplicationSegment(frame))
}

func TestApplicationUID(t *testing.T) {
	application := []byte{0xEF, 0xBE, 0xAD, 0xDE, 9, 7, 0}
	frame := buildFrame(1, 0, application)
	assert.Equal(t, uint32(0xDEADBEEF), applicationUID(frame))
}
