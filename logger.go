package ieee802154

// Logger defines the logging interface for simple string messages.
// The radio logs initialization and shutdown at Info, CCA retries and receive
// timeouts at Debug, and activity LED failures at Warn.
// Plain strings keep the driver free of fmt on the hot paths, which matters
// for binary size and allocations under TinyGo.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

var globalLogger Logger = nopLogger{}

// SetLogger sets the logger used by every Radio. A nil logger silences the
// driver.
func SetLogger(l Logger) {
	if l == nil {
		globalLogger = nopLogger{}
		return
	}
	globalLogger = l
}

// nopLogger is a logger that does nothing.
type nopLogger struct{}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string)  {}
func (nopLogger) Warn(string)  {}
func (nopLogger) Error(string) {}
