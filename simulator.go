//go:build !tinygo

package ieee802154

import (
	"sync"
	"time"

	"github.com/sigurn/crc16"
)

// Simulated timings
const (
	simStep        = time.Microsecond // time spent per register access
	simRampUp      = 40 * time.Microsecond
	simRampOff     = 6 * time.Microsecond
	simCCADuration = 128 * time.Microsecond
	simEDWindow    = 128 * time.Microsecond
	simByteTime    = 32 * time.Microsecond // 250 kbit/s
	simSyncHeader  = 5                     // preamble + SFD bytes
)

// Frame is a frame on the simulated air.
type Frame struct {
	// At is the simulated time the frame ends.
	At time.Duration
	// Payload excludes the PHR and the CRC.
	Payload []byte
	// LQI is written after the payload on reception.
	LQI uint8
	// CorruptCRC flips bits of the received CRC so that validation fails.
	CorruptCRC bool
}

type simOp uint8

const (
	simIdle simOp = iota
	simRampRx
	simRampTx
	simRampDown
	simTransmit
	simCCA
	simED
)

// Simulator is an in-memory model of the nRF52840 RADIO peripheral in
// IEEE 802.15.4 mode. It implements Peripheral and Clock.
//
// Simulated time advances by one microsecond per register access, so the
// driver's poll loops drive the model forward deterministically. Inbound
// frames are scheduled with ScheduleFrame; a frame whose end time passes while
// the receiver is not in the Rx state is lost.
// This type is concurrent safe.
type Simulator struct {
	mu     sync.Mutex
	regs   map[Register]uint32
	state  State
	now    time.Duration
	op     simOp
	opDone time.Duration
	buffer *[PacketBufferSize]byte

	pending  []Frame
	sent     []Frame
	ccaBusy  int
	energy   []uint8
	energyAt int
	rampUps  int
	hfxoOff  bool
}

// NewSimulator returns a disabled RADIO with the external oscillator running.
func NewSimulator() *Simulator {
	return &Simulator{regs: make(map[Register]uint32)}
}

// --- Peripheral ---

func (s *Simulator) Read(reg Register) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()
	if reg == RegSTATE {
		return uint32(s.state)
	}
	return s.regs[reg]
}

func (s *Simulator) Write(reg Register, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()
	if reg.IsTask() {
		if value != 0 {
			s.task(reg)
		}
		return
	}
	s.regs[reg] = value
}

func (s *Simulator) SetPacketPtr(buf *[PacketBufferSize]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()
	s.buffer = buf
}

// --- Clock ---

// ExternalOscillatorRunning reports the simulated HFXO status.
func (s *Simulator) ExternalOscillatorRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.hfxoOff
}

// SetExternalOscillator starts or stops the simulated HFXO.
func (s *Simulator) SetExternalOscillator(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hfxoOff = !running
}

// --- Test and bench controls ---

// Now returns the simulated time.
func (s *Simulator) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// State returns the simulated STATE register without advancing time.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Peek returns a register value without advancing time.
func (s *Simulator) Peek(reg Register) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg == RegSTATE {
		return uint32(s.state)
	}
	return s.regs[reg]
}

// RampUps returns how many times the radio was enabled (RXEN or TXEN).
func (s *Simulator) RampUps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rampUps
}

// ScheduleFrame queues an inbound frame ending at f.At.
func (s *Simulator) ScheduleFrame(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.Payload = append([]byte(nil), f.Payload...)
	i := len(s.pending)
	for i > 0 && s.pending[i-1].At > f.At {
		i--
	}
	s.pending = append(s.pending, Frame{})
	copy(s.pending[i+1:], s.pending[i:])
	s.pending[i] = f
}

// Transmitted returns a copy of every frame sent so far. At is the time the
// frame ended.
func (s *Simulator) Transmitted() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Frame, len(s.sent))
	for i, f := range s.sent {
		f.Payload = append([]byte(nil), f.Payload...)
		out[i] = f
	}
	return out
}

// SetCCABusy makes the next n carrier-sense assessments find a carrier.
// A negative n keeps the carrier present forever.
func (s *Simulator) SetCCABusy(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ccaBusy = n
}

// SetEnergyLevels sets the energy measured by successive ED windows. The last
// level repeats once the list is exhausted; energy-based CCA uses the level of
// the next window.
func (s *Simulator) SetEnergyLevels(levels ...uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.energy = append([]uint8(nil), levels...)
	s.energyAt = 0
}

// Timer returns a Timer running on simulated time.
func (s *Simulator) Timer() Timer {
	return &simTimer{sim: s}
}

type simTimer struct {
	sim      *Simulator
	deadline time.Duration
}

func (t *simTimer) Start(d time.Duration) {
	t.deadline = t.sim.Now() + d
}

func (t *simTimer) Expired() bool {
	return t.sim.Now() >= t.deadline
}

// --- Model ---

func (s *Simulator) shorts() Shorts {
	return Shorts(s.regs[RegSHORTS])
}

func (s *Simulator) signal(e Register) {
	s.regs[e] = 1
}

func (s *Simulator) schedule(op simOp, d time.Duration) {
	s.op = op
	s.opDone = s.now + d
}

func (s *Simulator) advance() {
	s.now += simStep

	if s.op != simIdle && s.now >= s.opDone {
		op := s.op
		s.op = simIdle
		s.complete(op)
	}

	for len(s.pending) > 0 && s.pending[0].At <= s.now {
		f := s.pending[0]
		s.pending = s.pending[1:]
		if s.state != StateRx || s.buffer == nil {
			globalLogger.Debug("simulator: frame lost, receiver not listening")
			continue
		}
		s.receive(f)
	}
}

func (s *Simulator) task(t Register) {
	switch t {
	case TasksTXEN:
		if s.state == StateDisabled || s.state == StateRxIdle {
			s.state = StateTxRampUp
			s.rampUps++
			s.schedule(simRampTx, simRampUp)
		}
	case TasksRXEN:
		if s.state == StateDisabled || s.state == StateTxIdle {
			s.state = StateRxRampUp
			s.rampUps++
			s.schedule(simRampRx, simRampUp)
		}
	case TasksDISABLE:
		switch s.state {
		case StateRxRampUp, StateRxIdle, StateRx:
			s.state = StateRxDisable
			s.schedule(simRampDown, simRampOff)
		case StateTxRampUp, StateTxIdle, StateTx:
			s.state = StateTxDisable
			s.schedule(simRampDown, simRampOff)
		}
	case TasksSTART:
		s.start()
	case TasksSTOP:
		switch s.state {
		case StateRx:
			s.state = StateRxIdle
		case StateTx:
			s.state = StateTxIdle
			s.op = simIdle
		}
	case TasksCCASTART:
		if s.state == StateRxIdle && s.op == simIdle {
			s.schedule(simCCA, simCCADuration)
		}
	case TasksCCASTOP:
		if s.op == simCCA {
			s.op = simIdle
			s.signal(EventsCCASTOPPED)
		}
	case TasksEDSTART:
		if s.state == StateRxIdle && s.op == simIdle {
			windows := s.regs[RegEDCNT] & _EDCNT_MASK
			if windows == 0 {
				windows = 1
			}
			s.schedule(simED, time.Duration(windows)*simEDWindow)
		}
	case TasksEDSTOP:
		if s.op == simED {
			s.op = simIdle
		}
	}
}

func (s *Simulator) start() {
	switch s.state {
	case StateTxIdle:
		if s.buffer == nil {
			return
		}
		psdu := int(s.buffer[phyHeader] & 0x7F)
		n := psdu - CRCSize
		if n < 0 {
			n = 0
		}
		if n > Capacity {
			n = Capacity
		}
		s.sent = append(s.sent, Frame{
			At:      s.now + time.Duration(simSyncHeader+1+psdu)*simByteTime,
			Payload: append([]byte(nil), s.buffer[dataStart:dataStart+n]...),
		})
		s.state = StateTx
		s.schedule(simTransmit, time.Duration(simSyncHeader+1+psdu)*simByteTime)
	case StateRxIdle:
		s.state = StateRx
	}
}

func (s *Simulator) complete(op simOp) {
	switch op {
	case simRampRx:
		s.state = StateRxIdle
		s.signal(EventsREADY)
		s.signal(EventsRXREADY)
		if sh := s.shorts(); sh.Has(ShortReadyStart) || sh.Has(ShortRxReadyStart) {
			s.start()
		}
	case simRampTx:
		s.state = StateTxIdle
		s.signal(EventsREADY)
		s.signal(EventsTXREADY)
		if sh := s.shorts(); sh.Has(ShortReadyStart) || sh.Has(ShortTxReadyStart) {
			s.start()
		}
	case simRampDown:
		s.state = StateDisabled
		s.signal(EventsDISABLED)
	case simTransmit:
		s.state = StateTxIdle
		s.endOfFrame()
	case simCCA:
		if s.channelBusy() {
			s.signal(EventsCCABUSY)
			if s.shorts().Has(ShortCCABusyDis) {
				s.task(TasksDISABLE)
			}
			return
		}
		s.signal(EventsCCAIDLE)
		if s.shorts().Has(ShortCCAIdleTxEn) {
			s.task(TasksTXEN)
		}
	case simED:
		windows := int(s.regs[RegEDCNT] & _EDCNT_MASK)
		if windows == 0 {
			windows = 1
		}
		var peak uint8
		for i := 0; i < windows; i++ {
			if lvl := s.nextEnergy(); lvl > peak {
				peak = lvl
			}
		}
		s.regs[RegEDSAMPLE] = uint32(peak)
		s.signal(EventsEDEND)
	}
}

func (s *Simulator) endOfFrame() {
	s.signal(EventsEND)
	s.signal(EventsPHYEND)
	if sh := s.shorts(); sh.Has(ShortEndDisable) || sh.Has(ShortPhyEndDisable) {
		s.task(TasksDISABLE)
	}
}

// receive writes f into the lent buffer the way EasyDMA does: PHR, payload,
// and the LQI in place of the first CRC byte.
func (s *Simulator) receive(f Frame) {
	n := len(f.Payload)
	if n > Capacity {
		n = Capacity
	}
	s.buffer[phyHeader] = byte(n + CRCSize)
	copy(s.buffer[dataStart:], f.Payload[:n])
	s.buffer[dataStart+n] = f.LQI

	crc := fcs(f.Payload[:n])
	if f.CorruptCRC {
		crc ^= 0x5A5A
		s.regs[RegCRCSTATUS] = 0
	} else {
		s.regs[RegCRCSTATUS] = _CRCSTATUS_OK
	}
	s.regs[RegRXCRC] = uint32(crc)

	s.state = StateRxIdle
	s.endOfFrame()
}

func (s *Simulator) channelBusy() bool {
	carrier := false
	if s.ccaBusy != 0 {
		carrier = true
		if s.ccaBusy > 0 {
			s.ccaBusy--
		}
	}

	ctrl := s.regs[RegCCACTRL]
	threshold := uint8(ctrl >> _CCACTRL_CCAEDTHRES_Pos)
	energy := s.peekEnergy() > threshold

	switch ctrl & _CCACTRL_CCAMODE_Mask {
	case _CCACTRL_CCAMODE_ED:
		return energy
	case _CCACTRL_CCAMODE_CAR_AND:
		return carrier && energy
	case _CCACTRL_CCAMODE_CAR_OR:
		return carrier || energy
	default:
		return carrier
	}
}

func (s *Simulator) peekEnergy() uint8 {
	if len(s.energy) == 0 {
		return 0
	}
	return s.energy[s.energyAt]
}

func (s *Simulator) nextEnergy() uint8 {
	lvl := s.peekEnergy()
	if s.energyAt < len(s.energy)-1 {
		s.energyAt++
	}
	return lvl
}

// fcsTable is the IEEE 802.15.4 FCS: polynomial x^16+x^12+x^5+1, initial
// value 0, bits processed LSB first.
var fcsTable = crc16.MakeTable(crc16.CRC16_KERMIT)

func fcs(data []byte) uint16 {
	return crc16.Checksum(data, fcsTable)
}
