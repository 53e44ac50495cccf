package ieee802154

import "sync/atomic"

// fence backs the DMA barriers. Atomic operations are sequentially consistent
// in the Go memory model, so plain loads and stores of packet memory cannot be
// moved across them by the compiler or the CPU.
var fence atomic.Uint32

// dmaStartFence must be followed by the register write that lets the radio
// access the packet buffer.
func dmaStartFence() {
	fence.Add(1)
}

// dmaEndFence must be preceded by the register read that observed the end of
// the transfer.
func dmaEndFence() {
	fence.Load()
}

// dmaLease is the radio's temporary ownership of a packet buffer.
// The packet is unusable from lend until release.
type dmaLease struct {
	radio  *Radio
	packet *Packet
}

// lend marks p as in flight, points PACKETPTR at its buffer and lights the
// activity LED. Nothing is started yet.
func (r *Radio) lend(p *Packet) dmaLease {
	if !p.lent.CompareAndSwap(false, true) {
		panic("ieee802154: packet is already lent to the radio")
	}
	r.periph.SetPacketPtr(&p.buffer)
	r.setActivity(High)
	return dmaLease{radio: r, packet: p}
}

// release must only be called once the radio can no longer touch the buffer:
// after the END/PHYEND event or after a cancelled transfer settled in idle.
func (l dmaLease) release() {
	dmaEndFence()
	l.packet.lent.Store(false)
	l.radio.setActivity(Low)
}
