package harness

// TraceEvent is one scenario step as the player saw it afterwards.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Step    string   `json:"step"`
	Outcome string   `json:"outcome"`
	Act     int      `json:"act,omitempty"`
	Scene   string   `json:"scene,omitempty"`
	Flags   []string `json:"flags,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Game    string   `json:"game,omitempty"`
}

// Outcome values that are not error codes.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the committed session at the end of the run, keyed by
	// current_act, last_scene, ending_choice and flags.
	State map[string]any `json:"state,omitempty"`

	// Journal lists the device journal as kind/outcome pairs.
	Journal []JournalRow `json:"journal,omitempty"`
}

// JournalRow is the deterministic part of a device journal entry.
type JournalRow struct {
	Kind    string `json:"kind"`
	Outcome string `json:"outcome"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
