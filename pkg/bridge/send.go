package bridge

import "log"

// sendPath assembles and transmits the current slave's queue head,
// arming the deadline timer on success (spec §4.2). A short or failed
// write abandons the exchange without retrying and without touching the
// packet's tries_left (spec §4.2 step 4, §9 open question on write
// failures), moving straight on to the next slave.
func (e *Engine) sendPath() {
	s := e.currentSlave()
	head := s.queue.peek()
	if head == nil {
		// Defensive: mirrors the original's send_packet() re-checking the
		// queue even though master_poll_slave() just pushed onto it.
		e.pollNext()
		return
	}

	frame := buildFrame(s.address, s.sequence, head.application)

	n, err := e.serial.Write(frame)
	if err != nil || n != len(frame) {
		log.Printf("RS485: write to slave %d failed or short (%d/%d bytes): %v", s.address, n, len(frame), err)
		e.pollNext()
		return
	}

	e.lastSentSnapshot = append(e.lastSentSnapshot[:0], frame...)
	e.sendVerifyFlag = true
	e.armDeadline(e.computedTimeout)
}
