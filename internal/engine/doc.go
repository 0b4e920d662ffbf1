// Package engine records rule calls as actions and rebuilds game state from them.
//
// # Logging
//
// Engine.Call wraps a registered rule. In one store transaction it finds or
// creates the checkpoint for the game's current turn, appends an action with
// the rule's registry key and encoded arguments, and runs the rule. If the
// rule fails, the action and any checkpoint created for it are rolled back,
// so a stored action always corresponds to a completed operation.
//
// # Scope
//
// The context carries a ScopeMode. Calls made while replaying, or from inside
// a rule that is already being logged, run without logging. The mode lives
// only as long as the context, so it can never leak into an unrelated call
// or another game.
//
// # Replay
//
// Engine.Replay restores a checkpoint's snapshot and re-executes a prefix of
// its actions. Rules must be deterministic given their arguments and the
// persisted state: dice rolls and other randomness are passed as arguments.
//
// # Undo
//
// Engine.Undo deletes the most recent action and replays what remains,
// falling back one turn when the current turn has nothing left to undo.
// Actions of irreversible rules act as a barrier.
package engine
