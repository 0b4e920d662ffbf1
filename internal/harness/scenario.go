package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chronicle/internal/game"
)

// Scenario is a scripted game: a starting position, a sequence of steps,
// and assertions about the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Game is the game's display name. Defaults to Name.
	Game string `yaml:"game,omitempty"`

	// Players are seated in order. Setup is not logged.
	Players []PlayerSetup `yaml:"players"`

	// Steps run in order against the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// PlayerSetup is a player's starting position.
type PlayerSetup struct {
	Faction  string      `yaml:"faction"`
	Hand     []string    `yaml:"hand,omitempty"`
	Warriors map[int]int `yaml:"warriors,omitempty"` // clearing -> count
}

// Step is exactly one of Call, Undo or Replay.
type Step struct {
	// Call is a rule key; Args are its arguments in tagged form.
	Call string `yaml:"call,omitempty"`
	Args []any  `yaml:"args,omitempty"`

	Undo bool `yaml:"undo,omitempty"`

	Replay *ReplayStep `yaml:"replay,omitempty"`

	// Expect validates the step's outcome. Nil means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ReplayStep rebuilds a turn up to and including action Index.
type ReplayStep struct {
	Turn  int `yaml:"turn"`
	Index int `yaml:"index"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is a substring of the expected error. The step must fail.
	Error string `yaml:"error,omitempty"`

	// Undone and Blocked check an undo result when set.
	Undone  *bool `yaml:"undone,omitempty"`
	Blocked *bool `yaml:"blocked,omitempty"`

	// Rule is the expected rule of the undone or blocking action.
	Rule string `yaml:"rule,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	Type     string   `yaml:"type"`
	Player   string   `yaml:"player,omitempty"`
	Clearing int      `yaml:"clearing,omitempty"`
	Count    int      `yaml:"count,omitempty"`
	Cards    []string `yaml:"cards,omitempty"`
	Turn     int      `yaml:"turn,omitempty"`
}

// Assertion type constants.
const (
	AssertWarriors    = "warriors"
	AssertHand        = "hand"
	AssertCrafted     = "crafted"
	AssertTurn        = "turn"
	AssertActions     = "actions"
	AssertCheckpoints = "checkpoints"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Unknown fields are rejected to catch typos like "assertion:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, ok := seen[sc.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), sc.Name, prev)
		}
		seen[sc.Name] = filepath.Base(path)
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Players) == 0 {
		return fmt.Errorf("players list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	factions := make(map[string]bool)
	for i, p := range s.Players {
		if _, err := game.ParseFaction(p.Faction); err != nil {
			return fmt.Errorf("players[%d]: %w", i, err)
		}
		if factions[p.Faction] {
			return fmt.Errorf("players[%d]: faction %s seated twice", i, p.Faction)
		}
		factions[p.Faction] = true
		for _, card := range p.Hand {
			if _, err := game.ParseCard(card); err != nil {
				return fmt.Errorf("players[%d].hand: %w", i, err)
			}
		}
		for clearing, n := range p.Warriors {
			if clearing < 1 || clearing > game.MaxClearing || n < 0 {
				return fmt.Errorf("players[%d].warriors: bad entry %d: %d", i, clearing, n)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, factions); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	ops := 0
	if st.Call != "" {
		ops++
	}
	if st.Undo {
		ops++
	}
	if st.Replay != nil {
		ops++
	}
	if ops != 1 {
		return fmt.Errorf("steps[%d]: exactly one of call, undo or replay is required", index)
	}
	if st.Call == "" && len(st.Args) > 0 {
		return fmt.Errorf("steps[%d]: args are only valid with call", index)
	}
	if e := st.Expect; e != nil && !st.Undo && (e.Undone != nil || e.Blocked != nil || e.Rule != "") {
		return fmt.Errorf("steps[%d].expect: undone, blocked and rule are only valid with undo", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, factions map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertWarriors, AssertHand, AssertCrafted:
		if !factions[a.Player] {
			return fmt.Errorf("assertions[%d]: player %q is not seated", index, a.Player)
		}
		if a.Type == AssertWarriors && a.Clearing == 0 {
			return fmt.Errorf("assertions[%d]: clearing is required for warriors", index)
		}
	case AssertTurn, AssertActions, AssertCheckpoints:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count < 0 || a.Turn < 0 {
		return fmt.Errorf("assertions[%d]: count and turn must be non-negative", index)
	}
	return nil
}
