// Package engine runs a player's quest as a single-writer event loop.
//
// Player input (navigation, act advance, challenge start, submissions,
// taps) and timer expiries are queued as events and processed one at a
// time by Run, so each transition completes before the next begins and the
// session is never observed half-updated. Every processed event is stamped
// with a logical sequence number and answered with a Result carrying the
// fresh view model.
//
// Timed games fire their round timers from other goroutines; the timer
// callbacks only enqueue a TimerExpired event. Navigating away from a scene
// cancels its game, and a timer belonging to a game that is no longer
// active is reported as stale and changes nothing.
//
// Act advances are checked against the gate table before any network call;
// the authority's answer is still final.
package engine
