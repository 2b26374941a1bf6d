// Package nav computes where a player is in the story graph and whether they
// may move on.
//
// Act gating is the sole rule for act transitions: advancing to act N needs
// every flag in the gate table for N. The client check exists for UX; the
// authority applies its own table and its answer is final.
package nav

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrActLocked is wrapped by GateError.
var ErrActLocked = errors.New("act locked")

// Gates maps a target act number to the flags required to enter it.
type Gates map[int][]string

// DefaultGates is the built-in gate table for the lantern quest.
var DefaultGates = Gates{
	2: {"compass_found", "compass_repaired"},
	3: {"beacon_reached", "focus_completed"},
	4: {"combat_won", "riddle_solved", "quiz_completed"},
}

// Missing returns the required flags for target absent from flags, sorted.
func (g Gates) Missing(target int, flags map[string]bool) []string {
	var missing []string
	for _, f := range g[target] {
		if !flags[f] {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}

// CanAdvanceToAct reports whether flags is a superset of the gate for target.
func (g Gates) CanAdvanceToAct(target int, flags map[string]bool) bool {
	return len(g.Missing(target, flags)) == 0
}

// CanAdvanceToAct checks target against DefaultGates.
func CanAdvanceToAct(target int, flags map[string]bool) bool {
	return DefaultGates.CanAdvanceToAct(target, flags)
}

// GateError reports a refused act advance.
type GateError struct {
	Target  int
	Missing []string
}

func (e *GateError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("act %d: %v", e.Target, ErrActLocked)
	}
	return fmt.Sprintf("act %d: %v: missing %s", e.Target, ErrActLocked, strings.Join(e.Missing, ", "))
}

func (e *GateError) Unwrap() error {
	return ErrActLocked
}

// IsActLocked reports whether err is a refused advance.
func IsActLocked(err error) bool {
	return errors.Is(err, ErrActLocked)
}
