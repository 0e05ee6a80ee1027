// Package clock provides time abstractions for deterministic tests.
//
// In production, use Real() which wraps the standard time package.
// In tests, use NewFakeClock() to control time explicitly; token expiry
// and state lifetimes can then be exercised without sleeping.
package clock

import "time"

// Clock provides time operations that can be real or simulated.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// Until returns the duration until t.
	Until(t time.Time) time.Duration

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)

	// After waits for the duration to elapse and then sends the current time.
	After(d time.Duration) <-chan time.Time
}
