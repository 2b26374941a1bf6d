// Package minigame implements the challenge validators that gate quest
// progress.
//
// Each validator takes a scene's minigame descriptor plus the player's input
// and returns either an Outcome carrying the flag record to set, or a
// *Rejection. Rejections never touch state and never cost anything: the
// player may simply retry.
//
// Reflex and pattern challenges are timed, stateful games. They are modelled
// as small state machines (Idle -> RoundActive -> {Hit -> RoundActive |
// Timeout -> Idle}) driven by an injected clock.Clock, so tests can advance
// time deterministically. Starting a new attempt invalidates any timer left
// over from the previous one.
//
// These checks are advisory. The authority re-validates before persisting.
package minigame
