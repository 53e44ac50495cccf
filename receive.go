package ieee802154

import (
	"context"
	"time"
)

// Recv receives one frame into p.
//
// It returns the received CRC and a nil error if the hardware validated it;
// otherwise the error is a *CRCError. In both cases p holds the received
// frame. Recv blocks until a frame arrives.
// This method is concurrent safe.
func (r *Radio) Recv(p *Packet) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lease := r.startRecv(p)
	r.waitForEvent(EventsEND)
	lease.release()

	return r.crcResult()
}

// RecvTimeout listens for a frame for no longer than timeout, measured with t.
//
// If no frame completes in time it returns an error wrapping ErrTimeout; p may
// then hold a partially written frame and must not be trusted. Otherwise the
// result is the same as for Recv.
//
// The time it takes to switch the radio to receive mode counts against the
// timeout; the transition may take up to a hundred microseconds.
// This method is concurrent safe.
func (r *Radio) RecvTimeout(p *Packet, t Timer, timeout time.Duration) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.Start(timeout)
	lease := r.startRecv(p)
	if !r.recvUntil(lease, t.Expired) {
		r.stats.Timeouts++
		globalLogger.Debug("Receive timed out")
		return 0, timeoutError()
	}
	return r.crcResult()
}

// RecvContext is like Recv but gives up when ctx is done, returning ctx.Err().
// The context is checked once per poll of the radio.
// This method is concurrent safe.
func (r *Radio) RecvContext(ctx context.Context, p *Packet) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lease := r.startRecv(p)
	cancelled := func() bool { return ctx.Err() != nil }
	if !r.recvUntil(lease, cancelled) {
		return 0, ctx.Err()
	}
	return r.crcResult()
}

func (r *Radio) startRecv(p *Packet) dmaLease {
	r.clearEvents(EventsPHYEND, EventsEND)
	r.arm(receiveShorts)
	r.putInRxMode()

	lease := r.lend(p)
	r.start(TasksSTART)
	return lease
}

// recvUntil polls for the end of the frame until expired reports true, in
// which case the reception is cancelled. It reports whether a frame
// completed. The lease is released on every path.
func (r *Radio) recvUntil(lease dmaLease, expired func() bool) bool {
	for {
		if r.event(EventsEND) {
			r.periph.Write(EventsEND, 0)
			lease.release()
			return true
		}
		if expired() {
			break
		}
	}

	r.cancelRecv()

	// the frame may have completed while the receiver was being stopped
	completed := r.event(EventsEND)
	if completed {
		r.periph.Write(EventsEND, 0)
	}
	lease.release()
	return completed
}

// cancelRecv stops an ongoing reception. The radio ends in RxIdle whether or
// not a frame was in progress.
func (r *Radio) cancelRecv() {
	r.trigger(TasksSTOP)
	r.waitForState(StateRxIdle)
}

func (r *Radio) crcResult() (uint16, error) {
	crc := uint16(r.periph.Read(RegRXCRC) & _RXCRC_MASK)
	if r.periph.Read(RegCRCSTATUS)&_CRCSTATUS_OK != 0 {
		r.stats.Received++
		return crc, nil
	}
	r.stats.CRCErrors++
	return crc, &CRCError{CRC: crc}
}
