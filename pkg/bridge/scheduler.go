package bridge

import "log"

// pollNext advances the round-robin index and starts the next exchange
// (spec §4.4 master_poll_slave). It resets the per-exchange flags and
// receive buffer, then either synthesizes an empty poll for a slave with
// nothing queued or sends the existing queue head.
func (e *Engine) pollNext() {
	e.sentAckOfDataPacket = false
	e.resetReceiveBuffer()

	e.currentSlaveIndex++
	if e.currentSlaveIndex >= len(e.slaves) {
		e.currentSlaveIndex = 0
	}

	s := e.currentSlave()
	if s.queue.peek() == nil {
		log.Printf("RS485: polling slave %d (empty), sequence=%d", s.address, s.sequence)
		s.queue.push(queuedPacket{application: emptyApplicationSegment(), triesLeft: TriesEmpty})
	} else {
		log.Printf("RS485: sending queued packet to slave %d, sequence=%d", s.address, s.sequence)
	}
	e.sendPath()
}

// resetReceiveBuffer clears the cursor (and, defensively, the bytes the
// cursor had covered) ahead of a new exchange.
func (e *Engine) resetReceiveBuffer() {
	for i := 0; i < e.receiveCursor; i++ {
		e.receiveBuffer[i] = 0
	}
	e.receiveCursor = 0
}

// isCurrentRequestEmpty inspects the last-sent snapshot to decide whether
// the request that just failed was a synthesized empty poll (spec §4.5,
// §9 "is_current_request_empty tests the snapshot").
func (e *Engine) isCurrentRequestEmpty() bool {
	if len(e.lastSentSnapshot) < 9 {
		return false
	}
	return isEmptyApplicationSegment(e.lastSentSnapshot)
}

// seqPopPoll is the shared failure-recovery tail used by the receive
// parser's frame errors (spec §4.5). onDeadlineFired runs the same three
// steps inline; the receive-buffer overflow guard skips steps 1 and 2 and
// only advances the scheduler:
//  1. advance sequence if the failed request was an empty poll
//  2. decrement the queue head's tries, popping it if exhausted
//  3. advance the scheduler
func (e *Engine) seqPopPoll() {
	s := e.currentSlave()
	if e.isCurrentRequestEmpty() {
		s.sequence++
	}
	s.queue.decrementTriesAndMaybePop()
	e.pollNext()
}
