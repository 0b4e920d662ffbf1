package harness

import (
	"github.com/roach88/chronicle/internal/ir"
)

// StepEvent records the outcome of one scenario step.
type StepEvent struct {
	Step    int    // Index into Scenario.Steps
	Op      string // "call", "undo" or "replay"
	Rule    string // Called rule, or the rule of the undone action
	Error   string // Step error, if any
	Undone  bool   // Undo removed an action
	Blocked bool   // Undo hit an irreversible action
}

// HistoryEntry is one logged action as it stands after the scenario ran.
type HistoryEntry struct {
	Turn         int
	Seq          int
	Rule         string
	Args         ir.IRArray
	Irreversible bool
}

// Result contains the outcome of running a scenario.
type Result struct {
	// Pass is true if every step met its expectation and every assertion held.
	Pass bool

	// Steps has one event per executed step.
	Steps []StepEvent

	// History is the game's action log after the last step, oldest first.
	History []HistoryEntry

	// Errors lists failed expectations and assertions.
	Errors []string
}

// NewResult creates a new Result with Pass=true.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Steps:   []StepEvent{},
		History: []HistoryEntry{},
		Errors:  []string{},
	}
}

// AddError records a failure and sets Pass=false.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
