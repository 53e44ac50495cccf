package ieee802154

// TrySend performs Clear Channel Assessment and sends p only if the channel
// is clear. It reports whether the packet was sent; false means the channel
// was busy and nothing went on air. It does not retry.
//
// p is not modified, but it must not be touched by another goroutine until
// TrySend returns.
// This method is concurrent safe.
func (r *Radio) TrySend(p *Packet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ccaTransmit(p, false)
}

// Send performs Clear Channel Assessment and sends p, repeating the
// assessment until the channel is clear.
//
// NOTE this is *not* IEEE 802.15.4 compliant: the standard requires a random
// backoff between failed CCA attempts. Callers that need compliance must use
// TrySend and insert their own delay. Send blocks for as long as the channel
// stays busy.
// This method is concurrent safe.
func (r *Radio) Send(p *Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ccaTransmit(p, true)
}

// SendNoCCA sends p without performing Clear Channel Assessment first.
// Acknowledgment frames must be sent using this method.
// This method is concurrent safe.
func (r *Radio) SendNoCCA(p *Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.putInTxMode()
	r.clearEvents(EventsPHYEND, EventsEND)

	lease := r.lend(p)
	r.arm(directTransmitShorts)
	r.start(TasksSTART)
	r.waitForEvent(EventsPHYEND)
	lease.release()

	r.disarm()
	r.settle()
	r.stats.Sent++
}

func (r *Radio) ccaTransmit(p *Packet, retry bool) bool {
	// CCA senses on an active receiver
	r.putInRxMode()
	r.clearEvents(EventsPHYEND, EventsEND, EventsCCABUSY, EventsCCAIDLE)

	lease := r.lend(p)
	r.arm(ccaTransmitShorts)
	for {
		// if the channel is clear the radio reads the packet on its own
		// some time after CCASTART
		r.start(TasksCCASTART)
		if !r.waitForCCA() {
			lease.release()
			r.disarm()
			r.settle()
			r.stats.Sent++
			return true
		}

		r.stats.CCABusy++
		if !retry {
			lease.release()
			r.disarm()
			return false
		}
		globalLogger.Debug("CCA busy, retrying")
	}
}

// waitForCCA blocks until the frame has been sent or the assessment found
// the channel busy.
func (r *Radio) waitForCCA() (busy bool) {
	for {
		if r.event(EventsPHYEND) {
			r.periph.Write(EventsPHYEND, 0)
			return false
		}
		if r.event(EventsCCABUSY) {
			r.periph.Write(EventsCCABUSY, 0)
			return true
		}
	}
}

// EnergyDetectionScan samples the received signal power on the current
// channel for sampleCycles windows of 128 µs each, and returns the *maximum*
// level observed. The value is in hardware units (not dBm), the same units
// as CCA.EDThreshold, so the result can be used to pick a threshold.
//
// A sampleCycles of 0 is treated as 1: the radio always measures at least
// one window. Values above 0x1FFFFF are truncated to the EDCNT field.
//
// The radio is left in RxIdle.
// This method is concurrent safe.
func (r *Radio) EnergyDetectionScan(sampleCycles uint32) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.periph.Write(RegEDCNT, sampleCycles&_EDCNT_MASK)

	// READY->START must stay off while entering receive mode
	r.arm(receiveShorts)
	r.putInRxMode()
	r.clearEvents(EventsEDEND)

	r.trigger(TasksEDSTART)
	r.waitForEvent(EventsEDEND)

	// with EDCNT set, EDSAMPLE holds the maximum rather than the average
	return uint8(r.periph.Read(RegEDSAMPLE) & _EDLVL_MASK)
}
