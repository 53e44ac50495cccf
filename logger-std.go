//go:build !tinygo

package ieee802154

import (
	"log"
	"os"
)

func init() {
	globalLogger = &stdLogger{l: log.New(os.Stderr, "ieee802154 ", log.LstdFlags|log.Lmicroseconds)}
}

// stdLogger writes through the standard library log package.
// Debug messages are dropped unless Verbose is set; the poll loops emit one
// per CCA retry.
type stdLogger struct {
	l       *log.Logger
	Verbose bool
}

// NewStdLogger returns a Logger writing to the standard library logger l.
func NewStdLogger(l *log.Logger, verbose bool) Logger {
	return &stdLogger{l: l, Verbose: verbose}
}

func (s *stdLogger) Debug(msg string) {
	if s.Verbose {
		s.l.Print("[DEBUG] " + msg)
	}
}

func (s *stdLogger) Info(msg string)  { s.l.Print("[INFO]  " + msg) }
func (s *stdLogger) Warn(msg string)  { s.l.Print("[WARN]  " + msg) }
func (s *stdLogger) Error(msg string) { s.l.Print("[ERROR] " + msg) }
