package bridge

import (
	"encoding/binary"
	"log"
)

// handleDispatchIn enqueues an outbound application packet onto the
// relevant slave queue(s) (spec §4.7). It runs on the engine's own run
// loop goroutine; callers reach it through DispatchIn.
func (e *Engine) handleDispatchIn(application []byte, recipient *Recipient) error {
	uid := uint32(0)
	if len(application) >= 4 {
		uid = binary.LittleEndian.Uint32(application[:4])
	}

	if recipient == nil || uid == 0 {
		log.Printf("RS485: broadcasting application packet to %d slave(s)", len(e.slaves))
		for _, s := range e.slaves {
			if err := s.queue.push(queuedPacket{application: cloneBytes(application), triesLeft: TriesData}); err != nil {
				log.Printf("RS485: dropping broadcast packet for slave %d: %v", s.address, err)
			}
		}
		return nil
	}

	for _, s := range e.slaves {
		if s.address == recipient.Opaque {
			if err := s.queue.push(queuedPacket{application: cloneBytes(application), triesLeft: TriesData}); err != nil {
				log.Printf("RS485: dropping packet for slave %d: %v", s.address, err)
				return err
			}
			return nil
		}
	}

	log.Printf("RS485: no slave with address %d, dropping packet", recipient.Opaque)
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
