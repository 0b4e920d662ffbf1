// Package harness runs YAML game scenarios against the engine and checks
// the resulting state and action history.
//
// # Scenario Format
//
//	name: craft_then_undo
//	description: "Undoing a craft returns the card to hand"
//	players:
//	  - faction: CATS
//	    hand: [AMBUSH, FAVOR]
//	    warriors: {1: 4}
//	  - faction: BIRDS
//	steps:
//	  - call: craft_card
//	    args:
//	      - {kind: entity, type: player, id: 1}
//	      - {kind: enum, set: cards.Card, member: AMBUSH}
//	  - undo: true
//	    expect: {undone: true, rule: craft_card}
//	assertions:
//	  - type: hand
//	    player: CATS
//	    cards: [AMBUSH, FAVOR]
//
// Call arguments are written in the same tagged form the engine stores, so
// a scenario can reproduce any logged action verbatim. Players get entity
// ids in the order they are listed, starting at 1; the game is always id 1.
//
// # Steps
//
//   - call: invoke a rule through the engine (logged)
//   - undo: undo the game's most recent action
//   - replay: rebuild a turn to an action index ({turn: T, index: I})
//
// A step may carry an expect clause. Without one, a failing step is
// reported as a scenario error.
//
// # Assertion Types
//
//   - warriors: player has count warriors in clearing
//   - hand, crafted: player holds exactly cards (any order)
//   - turn: the game's current turn
//   - actions: number of actions logged in turn (0 when no checkpoint)
//   - checkpoints: number of checkpoints of the game
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory database, sequential row ids and a
// deterministic clock, so the history trace is stable enough for golden
// file comparison (RunWithGolden).
package harness
