package tools

import "time"

// SetClock swaps the time source; the returned func restores it.
func SetClock(f func() time.Time) (restore func()) {
	old := clock
	clock = f
	return func() { clock = old }
}
