// Package harness runs scripted playthroughs of a story end to end.
//
// A scenario drives the real engine, sync client and device store against
// an in-process authority, records what the player saw after each step and
// compares the result with assertions and golden traces.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	story: ../../../stories/lantern.yaml
//	trainer: Ash
//	pin: "1234"
//	steps:
//	  - do: next
//	  - do: submit
//	    code: N0RTH
//	    expect: { outcome: ok, scene: a1_code }
//	  - do: advance
//	    expect: { outcome: ACT_LOCKED }
//	assertions:
//	  - type: trace_contains
//	    step: submit
//	    outcome: WRONG_CODE
//	  - type: final_state
//	    expect: { current_act: 1, flags: [compass_found] }
//	  - type: journal
//	    kind: profile
//	    count: 1
//
// # Steps
//
//   - login: authenticate again, optionally with a different pin
//   - next, prev: move within the act
//   - advance: enter the next act
//   - start: start the scene's timed game
//   - submit: submit code, lat/lng, choice or answers
//   - hit: tap a reflex target or enter a pattern symbol, times: N repeats
//   - replay: enter the active pattern's whole sequence
//   - wait: move the fake clock forward and collect any game timeout
//
// # Assertion Types
//
//   - trace_contains: a step with the given outcome ran
//   - trace_order: steps ran in the given order
//   - trace_count: a step ran exactly N times
//   - final_state: the committed session matches (subset)
//   - journal: the device journal has N entries of a kind and outcome
//
// # Deterministic Testing
//
// Wall time comes from testutil.FakeClock, profile and event ids from
// testutil.SequenceIDs, pattern sequences from a seeded PCG. Identical
// scenarios therefore produce identical traces and journals, which are
// compared against testdata/golden with goldie.
package harness
