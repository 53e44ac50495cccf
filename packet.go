package ieee802154

import (
	"fmt"
	"sync/atomic"
)

// Packet sizes
const (
	// Capacity is the maximum usable payload of a packet, CRC excluded.
	Capacity = 125
	// CRCSize is the size of the hardware computed FCS. It is never copied
	// to or from RAM.
	CRCSize = 2
	// MaxPSDULen is the largest PHY service data unit, payload plus CRC.
	MaxPSDULen = Capacity + CRCSize
	// PacketBufferSize is the size of the DMA buffer: PHR plus PSDU.
	PacketBufferSize = 1 + MaxPSDULen

	phyHeader = 0
	dataStart = 1
)

// Packet is an IEEE 802.15.4 PHY frame: the PHY header (PHR) followed by the
// PSDU. The PHR holds the payload length plus the two CRC bytes; the CRC
// itself is appended on transmission and checked on reception by the radio.
//
//	+-----+------------------+---------+
//	| PHR |     Payload      |   CRC   |
//	+-----+------------------+---------+
//	| 1 B |   0-125 bytes    |   2 B   |
//	+-----+------------------+---------+
//
// The zero value is an empty packet. A Packet must not be copied or touched
// while it is lent to the radio; accessors panic if it is.
type Packet struct {
	buffer [PacketBufferSize]byte
	lent   atomic.Bool
}

// NewPacket returns an empty packet.
func NewPacket() *Packet {
	p := &Packet{}
	p.SetLen(0)
	return p
}

func (p *Packet) mustOwn() {
	if p.lent.Load() {
		panic("ieee802154: packet accessed while lent to the radio")
	}
}

// Len returns the size of the payload.
func (p *Packet) Len() int {
	p.mustOwn()
	n := int(p.buffer[phyHeader]&0x7F) - CRCSize
	if n < 0 {
		return 0
	}
	if n > Capacity {
		return Capacity
	}
	return n
}

// SetLen changes the size of the payload and rewrites the PHR.
// It panics if n is negative or larger than Capacity.
func (p *Packet) SetLen(n int) {
	p.mustOwn()
	if n < 0 || n > Capacity {
		panic(fmt.Sprintf("ieee802154: packet length %d out of range [0, %d]", n, Capacity))
	}
	p.buffer[phyHeader] = byte(n + CRCSize)
}

// Bytes returns the payload. The slice aliases the packet buffer so writes
// through it modify the packet; it never includes the PHR or the CRC.
func (p *Packet) Bytes() []byte {
	n := p.Len()
	return p.buffer[dataStart : dataStart+n : dataStart+n]
}

// CopyFrom fills the payload with src and updates the PHR.
// It panics if src is larger than Capacity.
func (p *Packet) CopyFrom(src []byte) {
	p.mustOwn()
	if len(src) > Capacity {
		panic(fmt.Sprintf("ieee802154: payload of %d bytes exceeds capacity %d", len(src), Capacity))
	}
	copy(p.buffer[dataStart:], src)
	p.SetLen(len(src))
}

// LQI returns the Link Quality Indicator of the last packet received into p.
//
// The radio stores the LQI right after the payload, so the value is only valid
// after a receive and is overwritten by CopyFrom or by writing past the old
// payload. The radio does not compute an LQI for payloads shorter than 3 bytes.
func (p *Packet) LQI() uint8 {
	return p.buffer[dataStart+p.Len()]
}

func (p *Packet) String() string {
	return fmt.Sprintf("Packet(len=%d, data=% X)", p.Len(), p.Bytes())
}
