//go:build tinygo && nrf52840

package ieee802154

import (
	"device/nrf"
	"machine"
	"runtime/volatile"
	"unsafe"
)

// tinygoPin wraps a machine.Pin to satisfy the Pin interface.
type tinygoPin struct {
	pin machine.Pin
}

func (p *tinygoPin) Out(l Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(l))
	return nil
}

// radioPeripheral accesses the RADIO register block through its MMIO offsets.
type radioPeripheral struct{}

func (radioPeripheral) register(reg Register) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Add(unsafe.Pointer(nrf.RADIO), uintptr(reg)))
}

func (r radioPeripheral) Read(reg Register) uint32 {
	return r.register(reg).Get()
}

func (r radioPeripheral) Write(reg Register, value uint32) {
	r.register(reg).Set(value)
}

func (radioPeripheral) SetPacketPtr(buf *[PacketBufferSize]byte) {
	nrf.RADIO.PACKETPTR.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
}

type hfxo struct{}

func (hfxo) ExternalOscillatorRunning() bool {
	const running = nrf.CLOCK_HFCLKSTAT_SRC_Msk | nrf.CLOCK_HFCLKSTAT_STATE_Msk
	return nrf.CLOCK.HFCLKSTAT.Get()&running == running
}

// StartHFXO starts the external high-frequency crystal oscillator and blocks
// until it runs.
func StartHFXO() Clock {
	nrf.CLOCK.EVENTS_HFCLKSTARTED.Set(0)
	nrf.CLOCK.TASKS_HFCLKSTART.Set(1)
	for nrf.CLOCK.EVENTS_HFCLKSTARTED.Get() == 0 {
	}
	return hfxo{}
}

// NewTinyGo creates a Radio driving the on-chip RADIO peripheral.
// The HF crystal oscillator is started if needed. led is optional; pass
// machine.NoPin to disable the activity LED.
func NewTinyGo(c Config, led machine.Pin) (*Radio, error) {
	if c.ActivityLED == nil && led != machine.NoPin {
		c.ActivityLED = &tinygoPin{pin: led}
	}

	var clk Clock = hfxo{}
	if !clk.ExternalOscillatorRunning() {
		clk = StartHFXO()
	}
	return New(radioPeripheral{}, clk, c)
}
