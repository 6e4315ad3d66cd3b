package rlpx

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// errOutboxFull is returned by acquire when no slot became free before the
// deadline; handleSend treats it as "drop this packet" per §4.6.3.
var errOutboxFull = errors.New("outbox full")

// outboxSlots bounds how many not-yet-Active packet sends a session may
// have deferred at once (§4.6.3): a caller that floods SendPacket before
// the handshake completes would otherwise grow the actor's pending-timer
// state without limit. It is a plain counting semaphore, one slot claimed
// per deferred packet and released once that packet is actually written
// after the session reaches Active. A deferred packet dropped because the
// session closed does not release its slot.
type outboxSlots struct {
	val, cap, waiting uint32
	wakeup            chan struct{}
}

func newOutboxSlots(cap uint32) *outboxSlots {
	return &outboxSlots{cap: cap, val: cap, wakeup: make(chan struct{}, 1)}
}

func (o *outboxSlots) available() uint32 {
	return atomic.LoadUint32(&o.val)
}

// release frees n slots, potentially unblocking a call to acquire if one
// is waiting. release never blocks.
func (o *outboxSlots) release(n uint32) {
	new := atomic.AddUint32(&o.val, n)
	if new > o.cap {
		panic(fmt.Sprintf("outbox slot count %d exceeds cap after release(%d)", new, n))
	}
	if atomic.LoadUint32(&o.waiting) == 1 {
		if atomic.CompareAndSwapUint32(&o.waiting, 1, 0) {
			o.wakeup <- struct{}{}
		}
	}
}

// acquire claims n slots, blocking until they free up or timeout elapses.
// It may only be called from one goroutine at a time, which holds for
// handleSend since it only ever runs on the session's actor goroutine.
func (o *outboxSlots) acquire(n uint32, timeout time.Duration) error {
	if n > o.cap {
		return fmt.Errorf("requested %d outbox slots exceeds cap of %d", n, o.cap)
	}
	var timer *time.Timer
	for {
		// Set the waiting flag so release will try to wake us after
		// incrementing o.val.
		if !atomic.CompareAndSwapUint32(&o.waiting, 0, 1) {
			panic("concurrent call to acquire")
		}
		if atomic.LoadUint32(&o.val) >= n {
			atomic.AddUint32(&o.val, ^(n - 1))
			// Gobble up wakeup signal in case release decremented o.waiting.
			if !atomic.CompareAndSwapUint32(&o.waiting, 1, 0) {
				<-o.wakeup
			}
			return nil
		}
		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-o.wakeup:
			// Woken by release. It has decremented o.waiting back to zero.
		case <-timer.C:
			if !atomic.CompareAndSwapUint32(&o.waiting, 1, 0) {
				<-o.wakeup
			}
			return errOutboxFull
		}
	}
}
