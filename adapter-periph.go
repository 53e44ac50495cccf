//go:build !tinygo

package ieee802154

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// realPin wraps a gpio.PinIO to satisfy the Pin interface.
type realPin struct {
	gpio.PinIO
}

func (p *realPin) Out(l Level) error {
	if l == High {
		return p.PinIO.Out(gpio.High)
	}
	return p.PinIO.Out(gpio.Low)
}

// OpenPin opens a host GPIO by its periph.io name (e.g. "GPIO17") for use as
// Config.ActivityLED.
func OpenPin(name string) (Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to open pin %s", name)
	}
	return &realPin{PinIO: p}, nil
}

// HostConfig holds the configuration for a radio running against the
// simulated peripheral.
type HostConfig struct {
	Config
	// ActivityPin is the name of a host GPIO that mirrors the activity LED.
	// Optional. Ignored when Config.ActivityLED is set.
	ActivityPin string
}

// NewSimulated creates a Radio driving a fresh Simulator, which is returned
// so that the caller can inject traffic and inspect what went on air.
func NewSimulated(c HostConfig) (*Radio, *Simulator, error) {
	if c.ActivityLED == nil && c.ActivityPin != "" {
		pin, err := OpenPin(c.ActivityPin)
		if err != nil {
			return nil, nil, err
		}
		c.ActivityLED = pin
	}

	sim := NewSimulator()
	radio, err := New(sim, sim, c.Config)
	if err != nil {
		return nil, nil, err
	}
	return radio, sim, nil
}
