// Package clock provides the wall-clock and timer capability injected into
// minigames, the auth guard and the engine.
//
// Production code uses System. Tests use testutil.FakeClock, which fires
// timers synchronously when advanced so round timeouts can be simulated
// without real delays.
package clock

import "time"

// Clock reads the current time and schedules deferred callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending deferred callback.
type Timer interface {
	// Stop prevents the callback from firing. Returns false if it already
	// fired or was stopped.
	Stop() bool
}

// System is the real clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Func adapts a plain now-function; its timers never fire. Used where only
// Now is needed.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// AfterFunc returns a timer that never fires.
func (f Func) AfterFunc(time.Duration, func()) Timer {
	return nopTimer{}
}

type nopTimer struct{}

func (nopTimer) Stop() bool { return false }
