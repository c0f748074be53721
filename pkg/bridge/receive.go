package bridge

import (
	"bytes"
	"log"
)

// onSerialData is invoked whenever bytes arrive on the serial fd (spec
// §4.3). It guards against receive-buffer overflow, appends the new
// bytes, and runs the parse loop.
func (e *Engine) onSerialData(chunk []byte) {
	if len(e.receiveBuffer)-e.receiveCursor < MaxFrameLength {
		log.Printf("RS485: receive buffer overflow, aborting exchange")
		e.disableDeadline()
		e.pollNext()
		return
	}

	n := copy(e.receiveBuffer[e.receiveCursor:], chunk)
	e.receiveCursor += n

	e.parseBuffer()
}

// parseBuffer repeatedly classifies and consumes complete frames out of
// the receive buffer. Written as a loop rather than the original's
// tail-recursive verify_buffer (spec §9 "Recursive parser").
func (e *Engine) parseBuffer() {
	for {
		if e.receiveCursor < 8 {
			return
		}

		lengthByte := e.receiveBuffer[LengthFieldOffset]
		end := frameEndIndex(lengthByte)

		if e.receiveCursor <= end {
			return
		}

		if e.sendVerifyFlag {
			if e.verifyEcho(end) {
				return
			}
			continue
		}

		e.handlePeerReply(end)
		return
	}
}

// verifyEcho compares the observed bytes against the transmitted
// snapshot (spec §4.3 "Verify mode"). Returns true if the caller should
// stop parsing (either because the exchange concluded, or because there
// is not yet enough data to re-parse after compaction); returns false to
// have parseBuffer loop again over the compacted buffer.
func (e *Engine) verifyEcho(end int) bool {
	if end+1 > len(e.lastSentSnapshot) || !bytes.Equal(e.receiveBuffer[:end+1], e.lastSentSnapshot[:end+1]) {
		log.Printf("RS485: send verification failed")
		e.disableDeadline()
		e.seqPopPoll()
		return true
	}

	e.sendVerifyFlag = false

	switch {
	case e.sentAckOfDataPacket:
		e.disableDeadline()
		s := e.currentSlave()
		s.sequence++
		s.queue.pop()
		e.pollNext()
		return true

	case e.receiveCursor == end+1:
		e.resetReceiveBuffer()
		return true

	case e.receiveCursor > end+1:
		surplus := e.receiveCursor - (end + 1)
		copy(e.receiveBuffer[0:surplus], e.receiveBuffer[end+1:e.receiveCursor])
		for i := surplus; i < e.receiveCursor; i++ {
			e.receiveBuffer[i] = 0
		}
		e.receiveCursor = surplus
		if e.receiveCursor < 8 {
			return true
		}
		return false

	default:
		e.disableDeadline()
		e.seqPopPoll()
		return true
	}
}

// handlePeerReply classifies a frame observed while send-verify is
// already cleared: an empty reply, a data reply, or an undefined packet
// (spec §4.3 "Peer-reply mode").
func (e *Engine) handlePeerReply(end int) {
	buf := e.receiveBuffer
	uid := applicationUID(buf[:9])

	switch {
	case uid == 0 && buf[LengthFieldOffset] == 8 && buf[8] == 0:
		e.handleEmptyReply(end)
	case uid != 0 && buf[8] != 0:
		e.handleDataReply(end, uid)
	default:
		log.Printf("RS485: undefined packet")
		e.disableDeadline()
		e.seqPopPoll()
	}
}

// validateAgainstSnapshot checks address, function code and sequence
// number of the received frame against the transmitted snapshot. On
// mismatch it disables the deadline and runs seq/pop/poll, returning
// false so the caller stops processing this frame.
func (e *Engine) validateAgainstSnapshot(buf []byte, what string) bool {
	if buf[0] != e.lastSentSnapshot[0] {
		log.Printf("RS485: wrong address in received %s packet, moving on", what)
	} else if buf[1] != e.lastSentSnapshot[1] {
		log.Printf("RS485: wrong function code in received %s packet, moving on", what)
	} else if buf[2] != e.lastSentSnapshot[2] {
		log.Printf("RS485: wrong sequence number in received %s packet, moving on", what)
	} else {
		return true
	}
	e.disableDeadline()
	e.seqPopPoll()
	return false
}

// validateCRC recomputes the CRC16 over the peer's own frame span (using
// the peer's length byte, not the snapshot's — the original's behavior,
// preserved per spec §9's open question about which length byte governs
// the CRC span) and compares it against the trailing two bytes.
func (e *Engine) validateCRC(end int) bool {
	calculated := crc16(e.receiveBuffer[:end-1])
	received := uint16(e.receiveBuffer[end-1])<<8 | uint16(e.receiveBuffer[end])
	if calculated != received {
		log.Printf("RS485: wrong CRC16 checksum in received packet, moving on")
		e.disableDeadline()
		e.seqPopPoll()
		return false
	}
	return true
}

func (e *Engine) handleEmptyReply(end int) {
	if !e.validateAgainstSnapshot(e.receiveBuffer, "empty") {
		return
	}
	if !e.validateCRC(end) {
		return
	}

	e.disableDeadline()
	log.Printf("RS485: received empty packet, processed current request")

	s := e.currentSlave()
	s.sequence++
	s.queue.pop()
	e.pollNext()
}

func (e *Engine) handleDataReply(end int, uid uint32) {
	if !e.validateAgainstSnapshot(e.receiveBuffer, "data") {
		return
	}
	if !e.validateCRC(end) {
		return
	}

	log.Printf("RS485: data packet received")

	appLen := int(e.receiveBuffer[LengthFieldOffset])
	packet := make([]byte, appLen)
	copy(packet, e.receiveBuffer[3:3+appLen])

	if err := e.host.DispatchResponse(packet); err != nil {
		log.Printf("RS485: dispatching response to host failed: %v", err)
	}
	slaveAddress := e.receiveBuffer[0]
	if err := e.host.AddRecipient(uid, slaveAddress); err != nil {
		log.Printf("RS485: registering recipient failed: %v", err)
	}

	s := e.currentSlave()
	s.queue.replaceHead(queuedPacket{application: emptyApplicationSegment(), triesLeft: TriesEmpty})

	e.resetReceiveBuffer()
	e.sentAckOfDataPacket = true

	log.Printf("RS485: sending ACK of the data packet")
	e.sendPath()
}
