package ieee802154

import "time"

// SystemTimer is a Timer backed by the runtime clock.
// The zero value is expired.
type SystemTimer struct {
	deadline time.Time
}

// Start arms the timer to expire after d.
func (t *SystemTimer) Start(d time.Duration) {
	t.deadline = time.Now().Add(d)
}

// Expired reports whether the deadline has passed.
func (t *SystemTimer) Expired() bool {
	return !time.Now().Before(t.deadline)
}
