package ieee802154

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
)

// Radio drives the RADIO peripheral in IEEE 802.15.4 mode (250 kbit/s O-QPSK).
//
// Between calls the peripheral always rests in Disabled, RxIdle or TxIdle.
// The Radio owns the register block for its whole lifetime; nothing else may
// touch it.
type Radio struct {
	mu     sync.Mutex
	periph Peripheral
	config Config
	// RADIO needs to be (re-)enabled to pick up new settings
	needsEnable bool
	stats       Stats
}

var _ conn.Resource = (*Radio)(nil)

// Stats holds transfer counters since New.
type Stats struct {
	// Sent counts frames that went on air.
	Sent uint32
	// Received counts frames that passed the CRC check.
	Received uint32
	// CRCErrors counts complete frames that failed the CRC check.
	CRCErrors uint32
	// Timeouts counts RecvTimeout calls that expired.
	Timeouts uint32
	// CCABusy counts CCA attempts that found the channel busy.
	CCABusy uint32
}

// New initializes the radio for IEEE 802.15.4 operation and applies c.
// clk must prove that the external HF oscillator is running.
func New(p Peripheral, clk Clock, c Config) (*Radio, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: peripheral not configured", ErrPkg)
	}
	if clk == nil || !clk.ExternalOscillatorRunning() {
		return nil, fmt.Errorf("%w: %w", ErrPkg, ErrClockNotRunning)
	}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}

	r := &Radio{
		periph: p,
		config: c,
	}

	globalLogger.Info("Initializing IEEE 802.15.4 radio...")

	// shortcuts are kept off and only armed for the duration of a transfer
	r.disarm()
	// go to a known state
	r.disable()
	r.clearEvents(EventsDISABLED, EventsEND, EventsPHYEND)

	// NOTE the radio is disabled from here on
	p.Write(RegMODE, _MODE_IEEE802154_250KBIT)
	// 32-bit zero preamble, 8-bit length field whose top bit is reserved,
	// no S0/S1, and the length value also accounts for the 2 CRC bytes
	p.Write(RegPCNF0, _PCNF0_LFLEN_8BIT|_PCNF0_PLEN_32ZERO|_PCNF0_CRCINC)
	// no static length, no base address, little endian, no whitening
	p.Write(RegPCNF1, MaxPSDULen)
	// x**16 + x**12 + x**5 + 1, initial value 0, address field skipped
	p.Write(RegCRCCNF, _CRCCNF_LEN_TWO|_CRCCNF_SKIPADDR_IE)
	p.Write(RegCRCPOLY, _CRCPOLY_IEEE)
	p.Write(RegCRCINIT, _CRCINIT_IEEE)

	r.writeChannel(c.Channel)
	if err := r.writeCCA(c.CCA); err != nil {
		return nil, err
	}
	r.writeSFD(c.SFD)
	r.writeTxPower(c.TxPower)
	r.setActivity(Low)

	globalLogger.Info("IEEE 802.15.4 radio initialized. Ready to operate.")
	return r, nil
}

func (r *Radio) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fmt.Sprintf("IEEE802154(Channel=%s, TxPower=%s, CCA=%s, SFD=0x%02X)",
		r.config.Channel,
		r.config.TxPower,
		r.config.CCA,
		r.config.SFD,
	)
}

// Halt disables the radio. The configuration is kept and re-applied by the
// next transfer.
// This method is concurrent safe.
func (r *Radio) Halt() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disarm()
	r.disable()
	return nil
}

// Close disables the radio and switches the activity LED off.
// This method is concurrent safe.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disarm()
	r.disable()
	r.setActivity(Low)
	globalLogger.Info("IEEE 802.15.4 radio disabled.")
	return nil
}

// --- Configuration ---

// SetChannel changes the radio channel.
// The new channel is picked up by the next transmit or receive call.
// This method is concurrent safe.
func (r *Radio) SetChannel(c Channel) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrPkg, ErrInvalidChannel, c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writeChannel(c)
	return nil
}

// SetTxPower changes the transmit power.
// The new level is picked up by the next transmit or receive call.
// This method is concurrent safe.
func (r *Radio) SetTxPower(p TxPower) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrPkg, ErrInvalidTxPower, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writeTxPower(p)
	return nil
}

// SetCCA changes the Clear Channel Assessment method.
// The new method is picked up by the next transmit or receive call.
// This method is concurrent safe.
func (r *Radio) SetCCA(c CCA) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeCCA(c)
}

// SetSFD changes the Start of Frame Delimiter. The radio accepts it live.
// This method is concurrent safe.
func (r *Radio) SetSFD(sfd uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writeSFD(sfd)
}

// Channel returns the configured channel.
func (r *Radio) Channel() Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config.Channel
}

// TxPower returns the configured transmit power.
func (r *Radio) TxPower() TxPower {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config.TxPower
}

// CCA returns the configured Clear Channel Assessment method.
func (r *Radio) CCA() CCA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config.CCA
}

// SFD returns the configured Start of Frame Delimiter.
func (r *Radio) SFD() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config.SFD
}

// State reads the current value of the STATE register.
// This is useful for debugging; between calls it is always Disabled, RxIdle
// or TxIdle.
// This method is concurrent safe.
func (r *Radio) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hwState()
}

// Stats returns the transfer counters.
// This method is concurrent safe.
func (r *Radio) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Radio) writeChannel(c Channel) {
	r.needsEnable = true
	// MAP=0: offsets are relative to 2400 MHz
	r.periph.Write(RegFREQUENCY, uint32(c)&_FREQUENCY_MASK)
	r.config.Channel = c
}

func (r *Radio) writeTxPower(p TxPower) {
	r.needsEnable = true
	r.periph.Write(RegTXPOWER, p.register())
	r.config.TxPower = p
}

func (r *Radio) writeCCA(c CCA) error {
	v, err := c.register()
	if err != nil {
		return err
	}
	r.needsEnable = true
	r.periph.Write(RegCCACTRL, v)
	r.config.CCA = c
	return nil
}

func (r *Radio) writeSFD(sfd uint8) {
	r.periph.Write(RegSFD, uint32(sfd))
	r.config.SFD = sfd
}

func (r *Radio) setActivity(l Level) {
	if r.config.ActivityLED == nil {
		return
	}
	if err := r.config.ActivityLED.Out(l); err != nil {
		globalLogger.Warn("Failed to drive activity LED")
	}
}

// --- State machine ---

func (r *Radio) hwState() State {
	s := State(r.periph.Read(RegSTATE))
	switch s {
	case StateDisabled, StateRxRampUp, StateRxIdle, StateRx, StateRxDisable,
		StateTxRampUp, StateTxIdle, StateTx, StateTxDisable:
		return s
	}
	panic(fmt.Sprintf("ieee802154: undefined RADIO state %d", uint32(s)))
}

// stableState returns the state the radio rests in, waiting out a ramp-down.
func (r *Radio) stableState() State {
	switch s := r.hwState(); s {
	case StateDisabled, StateRxIdle, StateTxIdle:
		return s
	case StateRxDisable, StateTxDisable:
		r.waitForState(StateDisabled)
		return StateDisabled
	default:
		panic("ieee802154: radio left in state " + s.String())
	}
}

// settle waits until the radio reaches a stable state, e.g. after an
// END->DISABLE shortcut fired.
func (r *Radio) settle() {
	for !r.hwState().Stable() {
	}
}

// disable moves the radio from any state to Disabled.
func (r *Radio) disable() {
	// See figure 110 in nRF52840-PS
	for {
		switch s := r.hwState(); s {
		case StateDisabled:
			return

		case StateRxRampUp, StateRxIdle, StateTxRampUp, StateTxIdle:
			r.trigger(TasksDISABLE)
			r.waitForState(StateDisabled)
			return

		// ramping down
		case StateRxDisable, StateTxDisable:
			r.waitForState(StateDisabled)
			return

		// cancel ongoing transfer or ongoing CCA
		case StateRx:
			r.trigger(TasksCCASTOP)
			r.trigger(TasksSTOP)
			r.waitForState(StateRxIdle)
		case StateTx:
			r.trigger(TasksSTOP)
			r.waitForState(StateTxIdle)
		}
	}
}

// putInRxMode moves the radio to RxIdle.
func (r *Radio) putInRxMode() {
	var disable, enable bool
	switch r.stableState() {
	case StateDisabled:
		enable = true
	case StateRxIdle:
		disable, enable = r.needsEnable, r.needsEnable
	case StateTxIdle:
		// NOTE to avoid errata 204 (rev1 v1.4) go TXIDLE -> DISABLED -> RXIDLE
		disable, enable = true, true
	}

	if disable {
		r.trigger(TasksDISABLE)
		r.waitForState(StateDisabled)
	}
	if enable {
		r.needsEnable = false
		r.trigger(TasksRXEN)
		r.waitForState(StateRxIdle)
	}
}

// putInTxMode moves the radio to TxIdle.
func (r *Radio) putInTxMode() {
	s := r.stableState()
	// transfers end in Disabled; a radio left in TxIdle is reused as is
	if s == StateTxIdle && !r.needsEnable {
		return
	}
	if s != StateDisabled {
		r.trigger(TasksDISABLE)
		r.waitForState(StateDisabled)
	}
	r.needsEnable = false
	r.trigger(TasksTXEN)
	r.waitForState(StateTxIdle)
}

func (r *Radio) waitForState(s State) {
	for r.hwState() != s {
	}
}

func (r *Radio) trigger(task Register) {
	r.periph.Write(task, 1)
}

// start triggers a task that makes the radio access the lent packet buffer.
func (r *Radio) start(task Register) {
	dmaStartFence()
	r.trigger(task)
}

func (r *Radio) event(e Register) bool {
	return r.periph.Read(e) != 0
}

func (r *Radio) clearEvents(events ...Register) {
	for _, e := range events {
		r.periph.Write(e, 0)
	}
}

// waitForEvent blocks until e is set, then clears it.
func (r *Radio) waitForEvent(e Register) {
	for !r.event(e) {
	}
	r.periph.Write(e, 0)
}

func (r *Radio) arm(s Shorts) {
	r.periph.Write(RegSHORTS, uint32(s))
}

func (r *Radio) disarm() {
	r.arm(0)
}
