package ieee802154

import "time"

// Level represents the logical level of a pin (Low or High).
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Peripheral represents the RADIO register block.
// Tasks are triggered by writing 1 to a task register. Events are read back as
// non-zero when set and cleared by writing 0.
type Peripheral interface {
	// Read returns the current value of reg.
	Read(reg Register) uint32
	// Write stores value into reg.
	Write(reg Register, value uint32)
	// SetPacketPtr points the EasyDMA engine at buf.
	// buf must stay at the same address until the transfer has completed.
	SetPacketPtr(buf *[PacketBufferSize]byte)
}

// Clock proves that the high-frequency external oscillator is running.
// The RADIO is not allowed to run from the internal RC oscillator.
type Clock interface {
	ExternalOscillatorRunning() bool
}

// Timer is a one-shot count-down timer.
type Timer interface {
	// Start (re)arms the timer to expire after d.
	Start(d time.Duration)
	// Expired reports whether the timer has run out. It never blocks.
	Expired() bool
}

// Pin represents a generic GPIO output pin.
type Pin interface {
	// Out sets the pin as output with the given level.
	Out(l Level) error
}
