//go:build !tinygo

package ieee802154

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type regWrite struct {
	reg   Register
	value uint32
}

// tracePeripheral records every write the driver makes to the simulator.
// SetPacketPtr is recorded as a write to PACKETPTR.
type tracePeripheral struct {
	*Simulator
	writes []regWrite
}

func (p *tracePeripheral) Write(reg Register, value uint32) {
	p.writes = append(p.writes, regWrite{reg, value})
	p.Simulator.Write(reg, value)
}

func (p *tracePeripheral) SetPacketPtr(buf *[PacketBufferSize]byte) {
	p.writes = append(p.writes, regWrite{RegPACKETPTR, 0})
	p.Simulator.SetPacketPtr(buf)
}

// index returns the position of the first write of value to reg, or -1.
func (p *tracePeripheral) index(reg Register, value uint32) int {
	for i, w := range p.writes {
		if w.reg == reg && w.value == value {
			return i
		}
	}
	return -1
}

func (p *tracePeripheral) reset() {
	p.writes = nil
}

type mockPin struct {
	levels []Level
}

func (m *mockPin) Out(l Level) error {
	m.levels = append(m.levels, l)
	return nil
}

func newTestRadio(t *testing.T, c Config) (*Radio, *tracePeripheral) {
	t.Helper()
	SetLogger(nil)

	sim := NewSimulator()
	trace := &tracePeripheral{Simulator: sim}
	r, err := New(trace, sim, c)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r, trace
}

func assertRestState(t *testing.T, r *Radio) {
	t.Helper()
	if s := r.State(); !s.Stable() {
		t.Fatalf("Expected radio to rest in Disabled, RxIdle or TxIdle, got %s", s)
	}
}

// --- Tests ---

func TestInitialization(t *testing.T) {
	r, sim := newTestRadio(t, Config{})

	expected := map[Register]uint32{
		RegMODE:      15,
		RegPCNF0:     8 | 2<<24 | 1<<26,
		RegPCNF1:     127,
		RegCRCCNF:    2 | 2<<8,
		RegCRCPOLY:   0x11021,
		RegCRCINIT:   0,
		RegFREQUENCY: 5,
		RegSFD:       0xA7,
		RegTXPOWER:   0,
		RegCCACTRL:   _CCACTRL_CCAMODE_CARRIER,
		RegSHORTS:    0,
	}
	for reg, want := range expected {
		if got := sim.Peek(reg); got != want {
			t.Errorf("Expected register 0x%03X to be 0x%X, got 0x%X", uint16(reg), want, got)
		}
	}

	if s := r.State(); s != StateDisabled {
		t.Errorf("Expected Disabled after init, got %s", s)
	}
	if r.Channel() != Channel11 || r.SFD() != DefaultSFD || r.TxPower() != TxPower0dBm {
		t.Errorf("Unexpected defaults: %s", r)
	}
}

func TestInitializationWithConfig(t *testing.T) {
	_, sim := newTestRadio(t, Config{
		Channel: Channel26,
		TxPower: TxPowerNeg8dBm,
		CCA:     CCA{Mode: CCAEnergyDetection, EDThreshold: 50},
		SFD:     0x12,
	})

	if got := sim.Peek(RegFREQUENCY); got != 80 {
		t.Errorf("Expected FREQUENCY 80, got %d", got)
	}
	if got := sim.Peek(RegTXPOWER); got != 0xF8 {
		t.Errorf("Expected TXPOWER 0xF8, got 0x%X", got)
	}
	if got := sim.Peek(RegCCACTRL); got != _CCACTRL_CCAMODE_ED|50<<8 {
		t.Errorf("Expected CCACTRL 0x%X, got 0x%X", _CCACTRL_CCAMODE_ED|50<<8, got)
	}
	if got := sim.Peek(RegSFD); got != 0x12 {
		t.Errorf("Expected SFD 0x12, got 0x%X", got)
	}
}

func TestNewErrors(t *testing.T) {
	SetLogger(nil)

	sim := NewSimulator()
	sim.SetExternalOscillator(false)
	if _, err := New(sim, sim, Config{}); !errors.Is(err, ErrClockNotRunning) {
		t.Errorf("Expected ErrClockNotRunning, got %v", err)
	}

	sim = NewSimulator()
	if _, err := New(sim, sim, Config{Channel: 7}); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Expected ErrInvalidChannel, got %v", err)
	}
	if _, err := New(sim, sim, Config{TxPower: 1}); !errors.Is(err, ErrInvalidTxPower) {
		t.Errorf("Expected ErrInvalidTxPower, got %v", err)
	}
	if _, err := New(sim, sim, Config{CCA: CCA{Mode: 9}}); !errors.Is(err, ErrInvalidCCA) {
		t.Errorf("Expected ErrInvalidCCA, got %v", err)
	}
	if _, err := New(nil, sim, Config{}); !errors.Is(err, ErrPkg) {
		t.Errorf("Expected ErrPkg for nil peripheral, got %v", err)
	}
}

func TestSend(t *testing.T) {
	r, sim := newTestRadio(t, Config{})

	p := NewPacket()
	p.CopyFrom([]byte("hello"))
	r.Send(p)

	sent := sim.Transmitted()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 frame on air, got %d", len(sent))
	}
	if !bytes.Equal(sent[0].Payload, []byte("hello")) {
		t.Errorf("Expected payload %q, got %q", "hello", sent[0].Payload)
	}
	if s := r.State(); s != StateDisabled {
		t.Errorf("Expected Disabled after send, got %s", s)
	}
	if got := r.Stats().Sent; got != 1 {
		t.Errorf("Expected Sent=1, got %d", got)
	}
	// the packet is usable again
	if !bytes.Equal(p.Bytes(), []byte("hello")) {
		t.Errorf("Packet modified by send: %s", p)
	}
}

func TestSendArmsShortcutsAndPacketPointer(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	sim.reset()

	p := NewPacket()
	p.CopyFrom([]byte{1, 2, 3})
	r.Send(p)

	ptr := sim.index(RegPACKETPTR, 0)
	armed := sim.index(RegSHORTS, uint32(ccaTransmitShorts))
	cca := sim.index(TasksCCASTART, 1)
	if ptr < 0 || armed < 0 || cca < 0 {
		t.Fatalf("Missing writes: PACKETPTR=%d SHORTS=%d CCASTART=%d", ptr, armed, cca)
	}
	if ptr > cca || armed > cca {
		t.Errorf("Expected PACKETPTR and SHORTS before CCASTART")
	}
	if got := sim.Peek(RegSHORTS); got != 0 {
		t.Errorf("Expected shortcuts disarmed after send, got 0x%X", got)
	}
}

func TestTrySendBusyChannel(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	sim.SetCCABusy(-1)

	p := NewPacket()
	p.CopyFrom([]byte("busy"))
	if r.TrySend(p) {
		t.Fatal("Expected TrySend to fail on a busy channel")
	}

	if n := len(sim.Transmitted()); n != 0 {
		t.Errorf("Expected nothing on air, got %d frames", n)
	}
	if s := r.State(); s != StateRxIdle {
		t.Errorf("Expected RxIdle after failed CCA, got %s", s)
	}
	if got := r.Stats().CCABusy; got != 1 {
		t.Errorf("Expected CCABusy=1, got %d", got)
	}
	if got := sim.Peek(RegSHORTS); got != 0 {
		t.Errorf("Expected shortcuts disarmed, got 0x%X", got)
	}
	_ = p.Len()
}

func TestSendRetriesUntilClear(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	sim.SetCCABusy(5)

	p := NewPacket()
	p.CopyFrom([]byte("retry"))
	r.Send(p)

	if n := len(sim.Transmitted()); n != 1 {
		t.Fatalf("Expected 1 frame on air, got %d", n)
	}
	stats := r.Stats()
	if stats.CCABusy != 5 || stats.Sent != 1 {
		t.Errorf("Expected CCABusy=5 Sent=1, got %+v", stats)
	}
}

func TestCCAEnergyThreshold(t *testing.T) {
	r, sim := newTestRadio(t, Config{CCA: CCA{Mode: CCAEnergyDetection, EDThreshold: 30}})

	// a carrier is ignored in energy detection mode
	sim.SetCCABusy(-1)
	sim.SetEnergyLevels(50)

	p := NewPacket()
	p.CopyFrom([]byte("ed"))
	if r.TrySend(p) {
		t.Fatal("Expected busy channel above the ED threshold")
	}

	sim.SetEnergyLevels(10)
	if !r.TrySend(p) {
		t.Fatal("Expected clear channel below the ED threshold")
	}
}

func TestSendNoCCA(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	sim.SetCCABusy(-1)
	sim.reset()

	p := NewPacket()
	p.CopyFrom([]byte("ack"))
	r.SendNoCCA(p)

	if n := len(sim.Transmitted()); n != 1 {
		t.Fatalf("Expected 1 frame on air, got %d", n)
	}
	if sim.index(TasksCCASTART, 1) >= 0 {
		t.Error("Expected no CCA for SendNoCCA")
	}
	if sim.index(RegSHORTS, uint32(directTransmitShorts)) < 0 {
		t.Error("Expected END->DISABLE shortcut to be armed")
	}
	if s := r.State(); s != StateDisabled {
		t.Errorf("Expected Disabled after send, got %s", s)
	}
}

func TestRxToTxGoesThroughDisabled(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	r.EnergyDetectionScan(1)
	if s := r.State(); s != StateRxIdle {
		t.Fatalf("Expected RxIdle after scan, got %s", s)
	}
	sim.reset()

	p := NewPacket()
	r.SendNoCCA(p)

	disable := sim.index(TasksDISABLE, 1)
	txen := sim.index(TasksTXEN, 1)
	if disable < 0 || txen < 0 || disable > txen {
		t.Errorf("Expected DISABLE before TXEN, got DISABLE=%d TXEN=%d", disable, txen)
	}
}

func TestEnergyDetectionScan(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	sim.SetEnergyLevels(10, 40, 25)

	if got := r.EnergyDetectionScan(3); got != 40 {
		t.Errorf("Expected maximum level 40, got %d", got)
	}
	if got := sim.Peek(RegEDCNT); got != 3 {
		t.Errorf("Expected EDCNT=3, got %d", got)
	}
	if s := r.State(); s != StateRxIdle {
		t.Errorf("Expected RxIdle after scan, got %s", s)
	}
}

func TestRecv(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	sim.ScheduleFrame(Frame{At: sim.Now() + 2*time.Millisecond, Payload: []byte("ping"), LQI: 200})

	p := NewPacket()
	crc, err := r.Recv(p)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if crc != fcs([]byte("ping")) {
		t.Errorf("Expected CRC 0x%04X, got 0x%04X", fcs([]byte("ping")), crc)
	}
	if !bytes.Equal(p.Bytes(), []byte("ping")) {
		t.Errorf("Expected payload %q, got %q", "ping", p.Bytes())
	}
	if p.LQI() != 200 {
		t.Errorf("Expected LQI 200, got %d", p.LQI())
	}
	if s := r.State(); s != StateRxIdle {
		t.Errorf("Expected RxIdle after receive, got %s", s)
	}
	if got := r.Stats().Received; got != 1 {
		t.Errorf("Expected Received=1, got %d", got)
	}
}

func TestRecvCRCError(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	sim.ScheduleFrame(Frame{At: sim.Now() + time.Millisecond, Payload: []byte("noise"), CorruptCRC: true})

	p := NewPacket()
	crc, err := r.Recv(p)
	if !errors.Is(err, ErrCRC) || !errors.Is(err, ErrPkg) {
		t.Fatalf("Expected ErrCRC, got %v", err)
	}
	var crcErr *CRCError
	if !errors.As(err, &crcErr) {
		t.Fatalf("Expected *CRCError, got %T", err)
	}
	if crcErr.CRC != crc {
		t.Errorf("Expected error CRC 0x%04X to match returned 0x%04X", crcErr.CRC, crc)
	}
	// the frame is still delivered
	if !bytes.Equal(p.Bytes(), []byte("noise")) {
		t.Errorf("Expected payload %q, got %q", "noise", p.Bytes())
	}
	if got := r.Stats().CRCErrors; got != 1 {
		t.Errorf("Expected CRCErrors=1, got %d", got)
	}
}

func TestRecvTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"expires before frame", 900 * time.Microsecond, true},
		{"frame before expiry", 1100 * time.Microsecond, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, sim := newTestRadio(t, Config{})
			t0 := sim.Now()
			sim.ScheduleFrame(Frame{At: t0 + time.Millisecond, Payload: []byte("late")})

			p := NewPacket()
			_, err := r.RecvTimeout(p, sim.Timer(), tt.timeout)
			if tt.wantErr {
				if !errors.Is(err, ErrTimeout) {
					t.Fatalf("Expected ErrTimeout, got %v", err)
				}
				if got := r.Stats().Timeouts; got != 1 {
					t.Errorf("Expected Timeouts=1, got %d", got)
				}
			} else {
				if err != nil {
					t.Fatalf("RecvTimeout failed: %v", err)
				}
				if !bytes.Equal(p.Bytes(), []byte("late")) {
					t.Errorf("Expected payload %q, got %q", "late", p.Bytes())
				}
			}
			if s := r.State(); s != StateRxIdle {
				t.Errorf("Expected RxIdle, got %s", s)
			}
			if sim.Peek(RegSHORTS) != 0 {
				t.Errorf("Expected no shortcuts armed")
			}
		})
	}
}

func TestFrameLostWhenNotListening(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	at := sim.Now() + 10*time.Microsecond
	sim.ScheduleFrame(Frame{At: at, Payload: []byte("gone")})
	for sim.Now() <= at {
		r.State()
	}

	p := NewPacket()
	if _, err := r.RecvTimeout(p, sim.Timer(), time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout for a frame sent while disabled, got %v", err)
	}
}

func TestRecvContext(t *testing.T) {
	r, _ := newTestRadio(t, Config{})
	p := NewPacket()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RecvContext(ctx, p); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := r.RecvContext(ctx, p); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if s := r.State(); s != StateRxIdle {
		t.Errorf("Expected RxIdle after cancelled receive, got %s", s)
	}
	// not lent anymore
	p.SetLen(1)
}

func TestConfigurationAppliedOnNextTransfer(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	p := NewPacket()

	recv := func() {
		t.Helper()
		sim.ScheduleFrame(Frame{At: sim.Now() + time.Millisecond, Payload: []byte{0xAA}})
		if _, err := r.Recv(p); err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
	}

	recv()
	if got := sim.RampUps(); got != 1 {
		t.Fatalf("Expected 1 ramp-up, got %d", got)
	}

	// staying in receive mode costs no ramp-up
	recv()
	if got := sim.RampUps(); got != 1 {
		t.Errorf("Expected no new ramp-up, got %d", got)
	}

	if err := r.SetChannel(Channel20); err != nil {
		t.Fatalf("SetChannel failed: %v", err)
	}
	if got := sim.Peek(RegFREQUENCY); got != 50 {
		t.Errorf("Expected FREQUENCY 50, got %d", got)
	}
	if got := sim.RampUps(); got != 1 {
		t.Errorf("Expected SetChannel not to enable the radio, got %d ramp-ups", got)
	}

	recv()
	if got := sim.RampUps(); got != 2 {
		t.Errorf("Expected the next receive to re-enable the radio, got %d ramp-ups", got)
	}

	// the SFD is picked up live
	r.SetSFD(0x55)
	recv()
	if got := sim.RampUps(); got != 2 {
		t.Errorf("Expected no ramp-up after SetSFD, got %d", got)
	}
	if r.SFD() != 0x55 || sim.Peek(RegSFD) != 0x55 {
		t.Errorf("Expected SFD 0x55")
	}
}

func TestSetters(t *testing.T) {
	r, sim := newTestRadio(t, Config{})

	if err := r.SetChannel(Channel(3)); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Expected ErrInvalidChannel, got %v", err)
	}
	if r.Channel() != Channel11 {
		t.Errorf("Expected channel unchanged, got %s", r.Channel())
	}

	if err := r.SetTxPower(TxPower(-3)); !errors.Is(err, ErrInvalidTxPower) {
		t.Errorf("Expected ErrInvalidTxPower, got %v", err)
	}
	if err := r.SetTxPower(TxPowerNeg40dBm); err != nil {
		t.Errorf("SetTxPower failed: %v", err)
	}
	if got := sim.Peek(RegTXPOWER); got != 0xD8 {
		t.Errorf("Expected TXPOWER 0xD8, got 0x%X", got)
	}

	cca := CCA{Mode: CCACarrierOrEnergy, EDThreshold: 0x20}
	if err := r.SetCCA(cca); err != nil {
		t.Errorf("SetCCA failed: %v", err)
	}
	if got := sim.Peek(RegCCACTRL); got != _CCACTRL_CCAMODE_CAR_OR|0x20<<8 {
		t.Errorf("Unexpected CCACTRL 0x%X", got)
	}
	if r.CCA() != cca {
		t.Errorf("Expected CCA %s, got %s", cca, r.CCA())
	}
}

func TestRestStateAfterEveryOperation(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	p := NewPacket()
	p.CopyFrom([]byte("x"))

	ops := []struct {
		name string
		run  func()
	}{
		{"Send", func() { r.Send(p) }},
		{"SendNoCCA", func() { r.SendNoCCA(p) }},
		{"EnergyDetectionScan", func() { r.EnergyDetectionScan(2) }},
		{"TrySend busy", func() { sim.SetCCABusy(1); r.TrySend(p) }},
		{"TrySend", func() { r.TrySend(p) }},
		{"RecvTimeout", func() { r.RecvTimeout(p, sim.Timer(), 500*time.Microsecond) }},
		{"SetChannel", func() { r.SetChannel(Channel25) }},
		{"SendNoCCA after SetChannel", func() { r.SendNoCCA(p) }},
		{"Halt", func() { r.Halt() }},
	}
	for _, op := range ops {
		op.run()
		t.Run(op.name, func(t *testing.T) { assertRestState(t, r) })
	}
}

func TestActivityLED(t *testing.T) {
	led := &mockPin{}
	r, _ := newTestRadio(t, Config{ActivityLED: led})

	p := NewPacket()
	r.Send(p)
	r.Close()

	want := []Level{Low, High, Low, Low}
	if len(led.levels) != len(want) {
		t.Fatalf("Expected LED levels %v, got %v", want, led.levels)
	}
	for i := range want {
		if led.levels[i] != want[i] {
			t.Errorf("Expected LED levels %v, got %v", want, led.levels)
			break
		}
	}
}

func TestCloseDisables(t *testing.T) {
	r, _ := newTestRadio(t, Config{})
	r.EnergyDetectionScan(1)

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s := r.State(); s != StateDisabled {
		t.Errorf("Expected Disabled after Close, got %s", s)
	}
}

func TestNewSimulated(t *testing.T) {
	SetLogger(nil)
	r, sim, err := NewSimulated(HostConfig{Config: Config{Channel: Channel18}})
	if err != nil {
		t.Fatalf("NewSimulated failed: %v", err)
	}
	if got := sim.Peek(RegFREQUENCY); got != 40 {
		t.Errorf("Expected FREQUENCY 40, got %d", got)
	}
	if r.Channel() != Channel18 {
		t.Errorf("Expected channel 18, got %s", r.Channel())
	}
}

func TestRecvTimeoutAroundFrameEnd(t *testing.T) {
	payload := []byte("edge")
	caughtDuringCancel := 0

	for d := -60 * time.Microsecond; d <= 60*time.Microsecond; d += time.Microsecond {
		r, sim := newTestRadio(t, Config{})
		start := sim.Now()
		frameEnd := start + time.Millisecond
		sim.ScheduleFrame(Frame{At: frameEnd, Payload: payload})

		p := NewPacket()
		timeout := time.Millisecond + d
		_, err := r.RecvTimeout(p, sim.Timer(), timeout)

		switch {
		case errors.Is(err, ErrTimeout):
			if d >= 0 {
				t.Errorf("timeout %s: expected the frame, got %v", timeout, err)
			}
			// a frame written to the buffer must never be reported as a timeout
			if bytes.Equal(p.Bytes(), payload) {
				t.Errorf("timeout %s: frame delivered but ErrTimeout returned", timeout)
			}
		case err != nil:
			t.Fatalf("timeout %s: unexpected error %v", timeout, err)
		default:
			if !bytes.Equal(p.Bytes(), payload) {
				t.Errorf("timeout %s: expected payload %q, got %q", timeout, payload, p.Bytes())
			}
			// the timer ran out before the frame ended
			if frameEnd > start+timeout {
				caughtDuringCancel++
			}
		}

		if s := r.State(); s != StateRxIdle {
			t.Errorf("timeout %s: expected RxIdle, got %s", timeout, s)
		}
	}

	if caughtDuringCancel == 0 {
		t.Error("Expected at least one frame to complete while the receive was being cancelled")
	}
}

// driveTo polls the simulator until it reaches s.
func driveTo(sim *Simulator, s State) {
	for State(sim.Read(RegSTATE)) != s {
	}
}

func newRadioFrom(t *testing.T, sim *Simulator) (*Radio, *tracePeripheral) {
	t.Helper()
	SetLogger(nil)

	trace := &tracePeripheral{Simulator: sim}
	r, err := New(trace, sim, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r, trace
}

func TestNewStopsOngoingReception(t *testing.T) {
	sim := NewSimulator()
	var buf [PacketBufferSize]byte
	sim.SetPacketPtr(&buf)
	sim.Write(TasksRXEN, 1)
	driveTo(sim, StateRxIdle)
	sim.Write(TasksSTART, 1)
	if s := sim.State(); s != StateRx {
		t.Fatalf("Expected Rx, got %s", s)
	}

	r, trace := newRadioFrom(t, sim)

	stop := trace.index(TasksSTOP, 1)
	disable := trace.index(TasksDISABLE, 1)
	if stop < 0 || disable < 0 || stop > disable {
		t.Errorf("Expected STOP before DISABLE, got STOP=%d DISABLE=%d", stop, disable)
	}
	if trace.index(TasksCCASTOP, 1) < 0 {
		t.Error("Expected CCASTOP when leaving Rx")
	}
	if s := r.State(); s != StateDisabled {
		t.Errorf("Expected Disabled, got %s", s)
	}
}

func TestNewStopsOngoingTransmission(t *testing.T) {
	sim := NewSimulator()
	var buf [PacketBufferSize]byte
	buf[phyHeader] = 20 + CRCSize
	sim.SetPacketPtr(&buf)
	sim.Write(TasksTXEN, 1)
	driveTo(sim, StateTxIdle)
	sim.Write(TasksSTART, 1)
	if s := sim.State(); s != StateTx {
		t.Fatalf("Expected Tx, got %s", s)
	}

	r, trace := newRadioFrom(t, sim)

	stop := trace.index(TasksSTOP, 1)
	disable := trace.index(TasksDISABLE, 1)
	if stop < 0 || disable < 0 || stop > disable {
		t.Errorf("Expected STOP before DISABLE, got STOP=%d DISABLE=%d", stop, disable)
	}
	if s := r.State(); s != StateDisabled {
		t.Errorf("Expected Disabled, got %s", s)
	}
}

func TestNewWaitsForRampDown(t *testing.T) {
	sim := NewSimulator()
	sim.Write(TasksRXEN, 1)
	driveTo(sim, StateRxIdle)
	sim.Write(TasksDISABLE, 1)
	if s := sim.State(); s != StateRxDisable {
		t.Fatalf("Expected RxDisable, got %s", s)
	}

	r, trace := newRadioFrom(t, sim)

	if trace.index(TasksDISABLE, 1) >= 0 {
		t.Error("Expected no DISABLE while already ramping down")
	}
	if s := r.State(); s != StateDisabled {
		t.Errorf("Expected Disabled, got %s", s)
	}
}

func TestTxIdleToRxGoesThroughDisabled(t *testing.T) {
	r, trace := newTestRadio(t, Config{})
	r.SendNoCCA(NewPacket())

	trace.Simulator.Write(TasksTXEN, 1)
	driveTo(trace.Simulator, StateTxIdle)
	trace.reset()

	r.EnergyDetectionScan(1)

	disable := trace.index(TasksDISABLE, 1)
	rxen := trace.index(TasksRXEN, 1)
	if disable < 0 || rxen < 0 || disable > rxen {
		t.Errorf("Expected DISABLE before RXEN, got DISABLE=%d RXEN=%d", disable, rxen)
	}
	if s := r.State(); s != StateRxIdle {
		t.Errorf("Expected RxIdle, got %s", s)
	}
}

func TestRxModeWaitsForRampDown(t *testing.T) {
	r, trace := newTestRadio(t, Config{})
	r.EnergyDetectionScan(1)

	trace.Simulator.Write(TasksDISABLE, 1)
	trace.reset()

	r.EnergyDetectionScan(1)

	if trace.index(TasksDISABLE, 1) >= 0 {
		t.Error("Expected no DISABLE while already ramping down")
	}
	if trace.index(TasksRXEN, 1) < 0 {
		t.Error("Expected RXEN once Disabled")
	}
	if s := r.State(); s != StateRxIdle {
		t.Errorf("Expected RxIdle, got %s", s)
	}
}

func TestSendNoCCAReusesTxIdle(t *testing.T) {
	r, trace := newTestRadio(t, Config{})
	// applies the configuration
	r.SendNoCCA(NewPacket())

	trace.Simulator.Write(TasksTXEN, 1)
	driveTo(trace.Simulator, StateTxIdle)
	ramps := trace.RampUps()
	trace.reset()

	p := NewPacket()
	p.CopyFrom([]byte("ack"))
	r.SendNoCCA(p)

	if trace.index(TasksDISABLE, 1) >= 0 || trace.index(TasksTXEN, 1) >= 0 {
		t.Error("Expected TxIdle to be used without re-enabling")
	}
	if got := trace.RampUps(); got != ramps {
		t.Errorf("Expected no new ramp-up, got %d (was %d)", got, ramps)
	}
	sent := trace.Transmitted()
	if !bytes.Equal(sent[len(sent)-1].Payload, []byte("ack")) {
		t.Errorf("Expected %q on air, got %q", "ack", sent[len(sent)-1].Payload)
	}
}

func TestEnergyDetectionScanZeroCycles(t *testing.T) {
	r, sim := newTestRadio(t, Config{})
	sim.SetEnergyLevels(10, 40)

	// a single window is measured
	if got := r.EnergyDetectionScan(0); got != 10 {
		t.Errorf("Expected level of one window (10), got %d", got)
	}
	if got := sim.Peek(RegEDCNT); got != 0 {
		t.Errorf("Expected EDCNT=0, got %d", got)
	}
}
