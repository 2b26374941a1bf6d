// Package session implements the quest session state machine.
//
// A Session is the authoritative-shaped record of one player's progress:
// current act, last scene, progress flags, recorded choices, inventory and
// the chosen ending. The client holds a possibly-stale copy; the remote
// authority is the source of truth.
//
// Every function in this package is pure. Inputs are never mutated and a new
// Session is returned for each transition, so a Session value handed to a
// renderer stays consistent while the next state is being computed.
//
// Two transition functions exist:
//
//   - Merge folds an authoritative update into the local copy. Scalars present
//     on the incoming side win; mappings are deep-merged key by key and keys
//     absent from the update are never deleted. Merge is idempotent.
//   - ApplyLocal folds a locally produced delta into the displayed copy. It
//     never overwrites an existing progress flag and never lowers current_act.
//
// Replace is the only way to drop flags and is reserved for explicit resets
// returned by the authority.
package session
