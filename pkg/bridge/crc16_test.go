package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC16Vectors(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want uint16
	}{
		{"canonical read-input-registers response", []byte{0x01, 0x04, 0x02, 0xFF, 0xFF}, 0xB880},
		{"empty buffer", []byte{}, 0xFFFF},
		{"single zero byte", []byte{0x00}, 0xBF40},
		{"read-coils request", []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x01}, 0xFDCA},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, crc16(c.buf), "crc16(% X)", c.buf)
		})
	}
}

func TestCRC16IsDeterministic(t *testing.T) {
	buf := []byte{1, 100, 7, 0, 0, 0, 0, 8, 0}
	assert.Equal(t, crc16(buf), crc16(buf))
}

func TestPutCRC16AppendsHighByteFirst(t *testing.T) {
	buf := []byte{0x01, 0x04, 0x02, 0xFF, 0xFF}
	extended := putCRC16(append([]byte{}, buf...))

	assert.Len(t, extended, len(buf)+2)

	want := uint16(0xB880)
	got := uint16(extended[len(extended)-2])<<8 | uint16(extended[len(extended)-1])
	assert.Equal(t, want, got)
}
