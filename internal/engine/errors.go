package engine

import (
	"errors"
	"fmt"
)

// ErrGameNotFound is returned by a TurnSource for a game id with no game.
// Call treats it as an attribution failure.
var ErrGameNotFound = errors.New("game not found")

// RuntimeError represents an error detected while logging, replaying or
// undoing actions.
//
// Runtime errors include:
//   - Unknown rule: an action or call names a key missing from the registry
//   - Replay failure: a previously successful action failed on re-execution
//   - Attribution failure: no game could be found in the call arguments
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// GameID identifies the affected game (0 if unknown).
	GameID int64

	// Turn and Sequence locate the failing action (Sequence -1 if none).
	Turn     int
	Sequence int

	// Rule is the registry key involved.
	Rule string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownRule indicates a registry key with no registered rule.
	ErrCodeUnknownRule RuntimeErrorCode = "UNKNOWN_RULE"

	// ErrCodeReplayFailed indicates an action could not be re-executed.
	// This means rule functions are not deterministic or history is corrupt.
	ErrCodeReplayFailed RuntimeErrorCode = "REPLAY_FAILED"

	// ErrCodeAttribution indicates the target game could not be resolved.
	ErrCodeAttribution RuntimeErrorCode = "ATTRIBUTION_FAILED"

	// ErrCodeBadArguments indicates arguments that do not fit a rule's signature.
	ErrCodeBadArguments RuntimeErrorCode = "BAD_ARGUMENTS"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.GameID != 0 {
		msg += fmt.Sprintf(" (game=%d, turn=%d, seq=%d, rule=%s)", e.GameID, e.Turn, e.Sequence, e.Rule)
	} else if e.Rule != "" {
		msg += fmt.Sprintf(" (rule=%s)", e.Rule)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsReplayError returns true if the error is a replay failure.
// Uses errors.As to handle wrapped errors.
func IsReplayError(err error) bool {
	return hasCode(err, ErrCodeReplayFailed)
}

// IsUnknownRule returns true if the error is an unknown rule key.
func IsUnknownRule(err error) bool {
	return hasCode(err, ErrCodeUnknownRule)
}

// IsAttributionError returns true if the error is a game attribution failure.
func IsAttributionError(err error) bool {
	return hasCode(err, ErrCodeAttribution)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewUnknownRuleError creates a RuntimeError for a missing registry key.
func NewUnknownRuleError(key string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeUnknownRule,
		Message:  fmt.Sprintf("no rule registered for key %q", key),
		Sequence: -1,
		Rule:     key,
	}
}

// NewReplayError creates a RuntimeError for an action that failed on replay.
func NewReplayError(gameID int64, turn, seq int, rule string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeReplayFailed,
		Message:  "action failed during replay",
		GameID:   gameID,
		Turn:     turn,
		Sequence: seq,
		Rule:     rule,
		Err:      cause,
	}
}

// NewAttributionError creates a RuntimeError for an unresolvable game.
func NewAttributionError(rule string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeAttribution,
		Message:  "cannot resolve target game from arguments",
		Sequence: -1,
		Rule:     rule,
		Err:      cause,
	}
}

func newBadArgumentsError(message string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeBadArguments,
		Message:  message,
		Sequence: -1,
		Err:      cause,
	}
}
