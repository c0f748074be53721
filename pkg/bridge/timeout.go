package bridge

import (
	"log"
	"time"
)

// armDeadline (re-)starts the deadline timer for d and bumps the
// generation counter so any in-flight fire of a previous timer is
// recognized as stale and ignored by onDeadlineFired. This is the Go
// run-loop equivalent of the original's timerfd_settime call.
func (e *Engine) armDeadline(d time.Duration) {
	if e.deadlineTimer != nil {
		e.deadlineTimer.Stop()
	}
	e.deadlineGen++
	gen := e.deadlineGen
	e.deadlineArmedAt = time.Now()
	e.deadlineTimer = time.AfterFunc(d, func() {
		select {
		case e.deadlineCh <- gen:
		case <-e.stopCh:
		}
	})
}

// disableDeadline stops the timer and invalidates any pending fire,
// mirroring disable_master_timer's drain-and-settime(0).
func (e *Engine) disableDeadline() {
	if e.deadlineTimer != nil {
		e.deadlineTimer.Stop()
	}
	e.deadlineGen++
}

// onDeadlineFired handles the deadline timer firing (spec §4.6). A
// platform clock can wake the timer early; the original works around
// this by re-arming for the remaining time rather than trusting the
// fire. That workaround is preserved verbatim here, per spec §9 — it is
// a documented guard against an unresolved platform bug, not a bug to
// silently fix.
func (e *Engine) onDeadlineFired(gen uint64) {
	if gen != e.deadlineGen {
		// Stale fire from a timer that has since been disabled or re-armed.
		return
	}

	elapsed := time.Since(e.deadlineArmedAt)
	if elapsed < e.computedTimeout {
		log.Printf("RS485: deadline fired early (elapsed=%s < timeout=%s), re-arming", elapsed, e.computedTimeout)
		e.armDeadline(e.computedTimeout - elapsed)
		return
	}

	log.Printf("RS485: current request timed out, moving on")

	if e.isCurrentRequestEmpty() {
		e.currentSlave().sequence++
	}
	e.currentSlave().queue.decrementTriesAndMaybePop()
	e.pollNext()
}
