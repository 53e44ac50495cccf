package ieee802154

import (
	"errors"
	"fmt"
)

var (
	ErrPkg             = errors.New("ieee802154")
	ErrTimeout         = errors.New("timeout waiting for frame")
	ErrCRC             = errors.New("crc mismatch")
	ErrInvalidChannel  = errors.New("invalid channel (valid: 11-26)")
	ErrInvalidTxPower  = errors.New("unsupported tx power")
	ErrInvalidCCA      = errors.New("unsupported cca mode")
	ErrClockNotRunning = errors.New("external HF oscillator is not running")
)

// CRCError reports a complete frame whose CRC failed hardware validation.
// The packet passed to the receive call still holds the received bytes.
type CRCError struct {
	// CRC is the value of the RXCRC register for the frame.
	CRC uint16
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("%v: %v (rxcrc=0x%04X)", ErrPkg, ErrCRC, e.CRC)
}

func (e *CRCError) Unwrap() []error {
	return []error{ErrPkg, ErrCRC}
}

func timeoutError() error {
	return fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
}
