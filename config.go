package ieee802154

import (
	"fmt"
	"math"

	"periph.io/x/conn/v3/physic"
)

// Channel is one of the sixteen IEEE 802.15.4 channels in the 2.4 GHz band.
// Its value is the FREQUENCY register offset in MHz above 2400 MHz.
//
// NOTE these are NOT the same as WiFi 2.4 GHz channels.
type Channel uint8

const (
	Channel11 Channel = 5  // 2405 MHz
	Channel12 Channel = 10 // 2410 MHz
	Channel13 Channel = 15 // 2415 MHz
	Channel14 Channel = 20 // 2420 MHz
	Channel15 Channel = 25 // 2425 MHz
	Channel16 Channel = 30 // 2430 MHz
	Channel17 Channel = 35 // 2435 MHz
	Channel18 Channel = 40 // 2440 MHz
	Channel19 Channel = 45 // 2445 MHz
	Channel20 Channel = 50 // 2450 MHz
	Channel21 Channel = 55 // 2455 MHz
	Channel22 Channel = 60 // 2460 MHz
	Channel23 Channel = 65 // 2465 MHz
	Channel24 Channel = 70 // 2470 MHz
	Channel25 Channel = 75 // 2475 MHz
	Channel26 Channel = 80 // 2480 MHz
)

// ChannelByNumber returns the channel with the given IEEE number (11-26).
func ChannelByNumber(n int) (Channel, error) {
	if n < 11 || n > 26 {
		return 0, fmt.Errorf("%w: %w: %d", ErrPkg, ErrInvalidChannel, n)
	}
	return Channel((n - 10) * 5), nil
}

// Valid reports whether c is one of the named channels.
func (c Channel) Valid() bool {
	return c >= Channel11 && c <= Channel26 && c%5 == 0
}

// Number returns the IEEE channel number (11-26).
func (c Channel) Number() int {
	return int(c)/5 + 10
}

// Frequency returns the center frequency of the channel.
func (c Channel) Frequency() physic.Frequency {
	return (2400 + physic.Frequency(c)) * physic.MegaHertz
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Channel(offset=%d)", uint8(c))
	}
	return fmt.Sprintf("%d (%dMHz)", c.Number(), 2400+int(c))
}

// TxPower is the transmit power in dBm. Only the named levels are supported
// by the radio; the value is written two's complement to TXPOWER.
type TxPower int8

const (
	TxPowerPos8dBm  TxPower = 8
	TxPowerPos7dBm  TxPower = 7
	TxPowerPos6dBm  TxPower = 6 // ~4 mW
	TxPowerPos5dBm  TxPower = 5
	TxPowerPos4dBm  TxPower = 4
	TxPowerPos3dBm  TxPower = 3 // ~2 mW
	TxPowerPos2dBm  TxPower = 2
	TxPower0dBm     TxPower = 0 // 1 mW
	TxPowerNeg4dBm  TxPower = -4
	TxPowerNeg8dBm  TxPower = -8
	TxPowerNeg12dBm TxPower = -12
	TxPowerNeg16dBm TxPower = -16
	TxPowerNeg20dBm TxPower = -20 // 10 µW
	TxPowerNeg40dBm TxPower = -40 // 0.1 µW
)

// Valid reports whether p is a level supported by the radio.
func (p TxPower) Valid() bool {
	switch p {
	case TxPowerPos8dBm, TxPowerPos7dBm, TxPowerPos6dBm, TxPowerPos5dBm,
		TxPowerPos4dBm, TxPowerPos3dBm, TxPowerPos2dBm, TxPower0dBm,
		TxPowerNeg4dBm, TxPowerNeg8dBm, TxPowerNeg12dBm, TxPowerNeg16dBm,
		TxPowerNeg20dBm, TxPowerNeg40dBm:
		return true
	}
	return false
}

// Power converts the level to radiated power.
func (p TxPower) Power() physic.Power {
	mw := math.Pow(10, float64(p)/10)
	return physic.Power(math.Round(mw * float64(physic.MilliWatt)))
}

func (p TxPower) String() string {
	if p > 0 {
		return fmt.Sprintf("+%ddBm", int8(p))
	}
	return fmt.Sprintf("%ddBm", int8(p))
}

func (p TxPower) register() uint32 {
	return uint32(uint8(p))
}

// CCAMode selects how Clear Channel Assessment decides the channel is busy.
type CCAMode uint8

const (
	// CCACarrierSense reports busy when an IEEE 802.15.4 signal is detected.
	CCACarrierSense CCAMode = iota
	// CCAEnergyDetection reports busy when the energy level exceeds EDThreshold.
	CCAEnergyDetection
	// CCACarrierAndEnergy requires both a carrier and energy above threshold.
	CCACarrierAndEnergy
	// CCACarrierOrEnergy requires either a carrier or energy above threshold.
	CCACarrierOrEnergy
)

func (m CCAMode) String() string {
	switch m {
	case CCACarrierSense:
		return "carrier-sense"
	case CCAEnergyDetection:
		return "energy-detection"
	case CCACarrierAndEnergy:
		return "carrier-and-energy"
	case CCACarrierOrEnergy:
		return "carrier-or-energy"
	default:
		return "unknown"
	}
}

// CCA is the Clear Channel Assessment configuration.
type CCA struct {
	Mode CCAMode
	// EDThreshold applies to the modes that use energy detection.
	// Measurements above it mean the channel is busy. The range 0..0xFF is in
	// hardware units, not dBm: 0 means the received power was less than 10 dB
	// above the selected receiver sensitivity. EnergyDetectionScan reports in
	// the same units.
	EDThreshold uint8
}

func (c CCA) String() string {
	if c.Mode == CCACarrierSense {
		return c.Mode.String()
	}
	return fmt.Sprintf("%s(threshold=%d)", c.Mode, c.EDThreshold)
}

func (c CCA) register() (uint32, error) {
	var mode uint32
	switch c.Mode {
	case CCACarrierSense:
		mode = _CCACTRL_CCAMODE_CARRIER
	case CCAEnergyDetection:
		mode = _CCACTRL_CCAMODE_ED
	case CCACarrierAndEnergy:
		mode = _CCACTRL_CCAMODE_CAR_AND
	case CCACarrierOrEnergy:
		mode = _CCACTRL_CCAMODE_CAR_OR
	default:
		return 0, fmt.Errorf("%w: %w: %d", ErrPkg, ErrInvalidCCA, c.Mode)
	}
	return mode | uint32(c.EDThreshold)<<_CCACTRL_CCAEDTHRES_Pos, nil
}

const (
	// DefaultChannel is channel 11 (2405 MHz).
	DefaultChannel = Channel11
	// DefaultTxPower is 0 dBm.
	DefaultTxPower = TxPower0dBm
	// DefaultSFD is the IEEE compliant Start of Frame Delimiter.
	DefaultSFD uint8 = 0xA7
)

// DefaultCCA is carrier sense.
var DefaultCCA = CCA{Mode: CCACarrierSense}

// Config holds the radio configuration applied by New.
type Config struct {
	// Channel is the operating channel.
	// Defaults to Channel11 if not provided.
	Channel Channel
	// TxPower is the transmit power.
	// Defaults to 0 dBm (the zero value).
	TxPower TxPower
	// CCA is the Clear Channel Assessment method.
	// Defaults to carrier sense (the zero value).
	CCA CCA
	// SFD is the Start of Frame Delimiter.
	// Defaults to 0xA7 if not provided.
	SFD uint8
	// ActivityLED is lit while a packet buffer is lent to the radio.
	// Optional.
	ActivityLED Pin
}

func (c *Config) applyDefaults() error {
	if c.Channel == 0 {
		c.Channel = DefaultChannel
	}
	if c.SFD == 0 {
		c.SFD = DefaultSFD
	}
	if !c.Channel.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrPkg, ErrInvalidChannel, c.Channel)
	}
	if !c.TxPower.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrPkg, ErrInvalidTxPower, c.TxPower)
	}
	if _, err := c.CCA.register(); err != nil {
		return err
	}
	return nil
}
