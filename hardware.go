package ieee802154

import "fmt"

// Register is a byte offset into the RADIO register block (nRF52840 layout).
type Register uint16

// Tasks
const (
	TasksTXEN     Register = 0x000
	TasksRXEN     Register = 0x004
	TasksSTART    Register = 0x008
	TasksSTOP     Register = 0x00C
	TasksDISABLE  Register = 0x010
	TasksEDSTART  Register = 0x024
	TasksEDSTOP   Register = 0x028
	TasksCCASTART Register = 0x02C
	TasksCCASTOP  Register = 0x030
)

// Events
const (
	EventsREADY      Register = 0x100
	EventsEND        Register = 0x10C
	EventsDISABLED   Register = 0x110
	EventsEDEND      Register = 0x13C
	EventsCCAIDLE    Register = 0x144
	EventsCCABUSY    Register = 0x148
	EventsCCASTOPPED Register = 0x14C
	EventsTXREADY    Register = 0x154
	EventsRXREADY    Register = 0x158
	EventsPHYEND     Register = 0x16C
)

// Registers
const (
	RegSHORTS    Register = 0x200
	RegCRCSTATUS Register = 0x400
	RegRXCRC     Register = 0x40C
	RegPACKETPTR Register = 0x504
	RegFREQUENCY Register = 0x508
	RegTXPOWER   Register = 0x50C
	RegMODE      Register = 0x510
	RegPCNF0     Register = 0x514
	RegPCNF1     Register = 0x518
	RegCRCCNF    Register = 0x534
	RegCRCPOLY   Register = 0x538
	RegCRCINIT   Register = 0x53C
	RegSTATE     Register = 0x550
	RegSFD       Register = 0x560
	RegEDCNT     Register = 0x664
	RegEDSAMPLE  Register = 0x668
	RegCCACTRL   Register = 0x66C
)

// IsTask reports whether r is a task register.
func (r Register) IsTask() bool { return r < 0x100 }

// IsEvent reports whether r is an event register.
func (r Register) IsEvent() bool { return r >= 0x100 && r < 0x200 }

// Register field values
const (
	_MODE_IEEE802154_250KBIT = 15

	_PCNF0_LFLEN_8BIT   = 8
	_PCNF0_PLEN_32ZERO  = 2 << 24
	_PCNF0_CRCINC       = 1 << 26
	_CRCCNF_LEN_TWO     = 2
	_CRCCNF_SKIPADDR_IE = 2 << 8
	_CRCPOLY_IEEE       = 0x11021
	_CRCINIT_IEEE       = 0

	_FREQUENCY_MASK = 0x7F
	_EDCNT_MASK     = 0x1FFFFF
	_EDLVL_MASK     = 0xFF
	_RXCRC_MASK     = 0xFFFFFF
	_CRCSTATUS_OK   = 1

	_CCACTRL_CCAMODE_Mask    = 0x7
	_CCACTRL_CCAEDTHRES_Pos  = 8
	_CCACTRL_CCAMODE_ED      = 0
	_CCACTRL_CCAMODE_CARRIER = 1
	_CCACTRL_CCAMODE_CAR_AND = 2
	_CCACTRL_CCAMODE_CAR_OR  = 3
)

// State mirrors the RADIO STATE register.
type State uint32

const (
	StateDisabled  State = 0
	StateRxRampUp  State = 1
	StateRxIdle    State = 2
	StateRx        State = 3
	StateRxDisable State = 4
	StateTxRampUp  State = 9
	StateTxIdle    State = 10
	StateTx        State = 11
	StateTxDisable State = 12
)

// Stable reports whether s is a state the driver may rest in between calls.
func (s State) Stable() bool {
	return s == StateDisabled || s == StateRxIdle || s == StateTxIdle
}

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "Disabled"
	case StateRxRampUp:
		return "RxRampUp"
	case StateRxIdle:
		return "RxIdle"
	case StateRx:
		return "Rx"
	case StateRxDisable:
		return "RxDisable"
	case StateTxRampUp:
		return "TxRampUp"
	case StateTxIdle:
		return "TxIdle"
	case StateTx:
		return "Tx"
	case StateTxDisable:
		return "TxDisable"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// Shorts is a set of SHORTS register bits. Each transfer names the set it arms.
type Shorts uint32

const (
	ShortReadyStart    Shorts = 1 << 0
	ShortEndDisable    Shorts = 1 << 1
	ShortCCAIdleTxEn   Shorts = 1 << 12
	ShortCCABusyDis    Shorts = 1 << 13
	ShortTxReadyStart  Shorts = 1 << 18
	ShortRxReadyStart  Shorts = 1 << 19
	ShortPhyEndDisable Shorts = 1 << 20
)

var (
	// CCA idle starts the transmitter, which starts sending once ready and
	// switches itself off at the end of the frame.
	ccaTransmitShorts = ShortCCAIdleTxEn | ShortTxReadyStart | ShortEndDisable
	// The transmitter is already ramped; only switch it off at the end.
	directTransmitShorts = ShortEndDisable
	// Reception and energy detection run with every shortcut off.
	receiveShorts Shorts = 0
)

// Has reports whether every bit of o is set in s.
func (s Shorts) Has(o Shorts) bool { return s&o == o }
