package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(slaves ...byte) Config {
	return Config{
		OwnAddress:     0,
		BaudRate:       115200,
		Parity:         ParityNone,
		StopBits:       StopBits1,
		SlaveAddresses: slaves,
	}
}

func TestStartRejectsNonMasterAddress(t *testing.T) {
	cfg := baseConfig(9)
	cfg.OwnAddress = 3
	e := New(cfg, newFakePort(), &fakeTxLine{}, newFakeHost())
	assert.ErrorIs(t, e.Start(), ErrOwnAddressNotMaster)
}

func TestStartRejectsLowBaud(t *testing.T) {
	cfg := baseConfig(9)
	cfg.BaudRate = 4
	e := New(cfg, newFakePort(), &fakeTxLine{}, newFakeHost())
	assert.ErrorIs(t, e.Start(), ErrBaudTooLow)
}

func TestStartRejectsEmptySlaveTable(t *testing.T) {
	cfg := baseConfig()
	e := New(cfg, newFakePort(), &fakeTxLine{}, newFakeHost())
	assert.ErrorIs(t, e.Start(), ErrNoSlavesConfigured)
}

// waitFor polls cond every 2ms until it is true or timeout elapses,
// failing the test in the latter case.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// echoingEmptyReply builds an onWrite callback that completes every
// exchange as a clean empty poll: the caller's own echo followed by a
// matching empty reply from the addressed slave.
func echoingEmptyReply() func(frame []byte) []byte {
	return func(frame []byte) []byte {
		address := frame[0]
		sequence := frame[2]
		return buildFrame(address, sequence, emptyApplicationSegment())
	}
}

func TestEmptyPollExchangeAdvancesSequenceAndKeepsPolling(t *testing.T) {
	port := newFakePort()
	port.onWrite = echoingEmptyReply()
	host := newFakeHost()

	e := New(baseConfig(9), port, &fakeTxLine{}, host)
	require.NoError(t, e.Start())
	defer e.Shutdown()

	waitFor(t, time.Second, func() bool { return port.writeCount() >= 3 })

	e.Shutdown()

	assert.GreaterOrEqual(t, e.slaves[0].sequence, byte(2), "sequence should advance on each successful poll")
	assert.Zero(t, host.responseCount(), "empty-poll exchanges must never dispatch to the host")
}

func TestCRCMismatchStillAdvancesSequenceAndDoesNotDispatch(t *testing.T) {
	port := newFakePort()
	host := newFakeHost()

	port.onWrite = func(frame []byte) []byte {
		reply := buildFrame(frame[0], frame[2], emptyApplicationSegment())
		reply[len(reply)-1] ^= 0xFF // corrupt the CRC's low byte
		return reply
	}

	e := New(baseConfig(9), port, &fakeTxLine{}, host)
	require.NoError(t, e.Start())
	defer e.Shutdown()

	waitFor(t, time.Second, func() bool { return port.writeCount() >= 3 })

	e.Shutdown()

	assert.Zero(t, host.responseCount(), "CRC-corrupt replies must never dispatch to the host")
	assert.GreaterOrEqual(t, e.slaves[0].sequence, byte(2),
		"a failed empty request still advances sequence (spec seq/pop/poll)")
}

func TestDataReplyIsDispatchedAndAcked(t *testing.T) {
	port := newFakePort()
	host := newFakeHost()

	const slaveUID = uint32(0xCAFEF00D)
	dataSent := false

	port.onWrite = func(frame []byte) []byte {
		// First exchange: reply with a data packet instead of an empty one.
		if !dataSent {
			dataSent = true
			body := []byte{0x42}
			app := make([]byte, 5+len(body))
			app[0] = byte(slaveUID)
			app[1] = byte(slaveUID >> 8)
			app[2] = byte(slaveUID >> 16)
			app[3] = byte(slaveUID >> 24)
			app[4] = byte(5 + len(body))
			copy(app[5:], body)
			return buildFrame(frame[0], frame[2], app)
		}

		// Every later exchange (the engine's ACK of the data packet, and
		// subsequent empty polls) completes cleanly.
		return buildFrame(frame[0], frame[2], emptyApplicationSegment())
	}

	e := New(baseConfig(7), port, &fakeTxLine{}, host)
	require.NoError(t, e.Start())
	defer e.Shutdown()

	waitFor(t, time.Second, func() bool { return host.responseCount() >= 1 })

	e.Shutdown()

	require.Equal(t, 1, host.responseCount())
	got := host.responses[0]
	gotUID := uint32(got[0]) | uint32(got[1])<<8 | uint32(got[2])<<16 | uint32(got[3])<<24
	assert.Equal(t, slaveUID, gotUID)

	addr, ok := host.recipients[slaveUID]
	assert.True(t, ok)
	assert.Equal(t, byte(7), addr)
}

func TestUndefinedTrailingBytesDoNotHangOrPanic(t *testing.T) {
	port := newFakePort()
	host := newFakeHost()

	port.onWrite = func(frame []byte) []byte {
		return make([]byte, len(frame)*2) // garbage, never classifiable as empty or data
	}

	e := New(baseConfig(9), port, &fakeTxLine{}, host)
	require.NoError(t, e.Start())

	// The engine must keep running (no panic, no deadlock) even when fed
	// a stream that can never resolve into a valid frame.
	waitFor(t, time.Second, func() bool { return port.writeCount() >= 2 })
	time.Sleep(20 * time.Millisecond)

	e.Shutdown()
}

// TestReceiveBufferOverflowGuardTriggersRecovery exercises onSerialData's
// overflow guard directly, without the full event loop, by priming the
// cursor to leave less room than MaxFrameLength before a chunk arrives.
func TestReceiveBufferOverflowGuardTriggersRecovery(t *testing.T) {
	port := newFakePort()
	host := newFakeHost()

	e := New(baseConfig(9), port, &fakeTxLine{}, host)
	e.slaves = []*slave{newSlave(9)}
	e.currentSlaveIndex = 0
	e.computedTimeout = time.Millisecond

	e.receiveCursor = len(e.receiveBuffer) - MaxFrameLength + 1

	e.onSerialData([]byte{1, 2, 3})

	assert.Equal(t, 1, port.writeCount(), "overflow must abort and re-poll")
	assert.Zero(t, e.receiveCursor, "recovery poll must reset the cursor")
}
