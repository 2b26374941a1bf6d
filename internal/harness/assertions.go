package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Seq, event.Step, event.Outcome, event.Scene)
		}
	}
	return buf.String()
}

// assertTraceContains checks that a step with the given outcome ran.
// An empty outcome matches any.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchEvent(event, assertion.Step, assertion.Outcome) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("step %s with outcome %q", assertion.Step, assertion.Outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that steps appear in the specified order.
// Steps don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Steps {
		found := false
		for pos < len(trace) {
			pos++
			if trace[pos-1].Step == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("steps in order: %v", assertion.Steps),
				Actual:   fmt.Sprintf("%s not found after position %d", want, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that a step appears exactly the specified number
// of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchEvent(event, assertion.Step, assertion.Outcome) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Step),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the committed session against the expected
// values using subset semantics. Expected flags must all be present;
// extra flags are allowed.
func assertFinalState(state map[string]any, assertion Assertion) error {
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		actual, exists := state[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in final session", key),
			}
		}

		if key == "flags" {
			if missing := missingFlags(expected, actual); len(missing) > 0 {
				return &AssertionError{
					Type:     AssertFinalState,
					Expected: fmt.Sprintf("flags to include %v", expected),
					Actual:   fmt.Sprintf("missing %v", missing),
				}
			}
			continue
		}

		if !stateValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actual, actual),
			}
		}
	}
	return nil
}

// assertJournal counts device journal entries of a kind, optionally
// filtered by outcome.
func assertJournal(journal []JournalRow, assertion Assertion) error {
	count := 0
	for _, row := range journal {
		if row.Kind == assertion.Kind && (assertion.Outcome == "" || row.Outcome == assertion.Outcome) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("%d journal entries of %s/%s", assertion.Count, assertion.Kind, assertion.Outcome),
			Actual:   fmt.Sprintf("%d entries", count),
		}
	}
	return nil
}

func matchEvent(event TraceEvent, step, outcome string) bool {
	return event.Step == step && (outcome == "" || event.Outcome == outcome)
}

func missingFlags(expected, actual any) []string {
	have := map[string]bool{}
	if flags, ok := actual.([]string); ok {
		for _, f := range flags {
			have[f] = true
		}
	}
	var missing []string
	switch exp := expected.(type) {
	case []any:
		for _, v := range exp {
			if s := fmt.Sprint(v); !have[s] {
				missing = append(missing, s)
			}
		}
	case []string:
		for _, s := range exp {
			if !have[s] {
				missing = append(missing, s)
			}
		}
	case string:
		if !have[exp] {
			missing = append(missing, exp)
		}
	}
	return missing
}

// stateValuesEqual compares expected values decoded from YAML with the
// final session's values.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	switch exp := expected.(type) {
	case string:
		act, ok := actual.(string)
		return ok && exp == act
	case int:
		act, ok := actual.(int)
		return ok && exp == act
	case int64:
		act, ok := actual.(int)
		return ok && exp == int64(act)
	case float64:
		act, ok := actual.(int)
		return ok && exp == float64(act)
	}
	return reflect.DeepEqual(expected, actual)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		case AssertJournal:
			err = assertJournal(result.Journal, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
