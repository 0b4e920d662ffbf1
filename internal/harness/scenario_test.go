package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one recruit
players:
  - faction: CATS
steps:
  - call: recruit
    args:
      - {kind: entity, type: player, id: 1}
      - 1
      - 2
`

func TestParseScenario_Minimal(t *testing.T) {
	sc, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", sc.Name)
	require.Len(t, sc.Players, 1)
	assert.Equal(t, "CATS", sc.Players[0].Faction)
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, "recruit", sc.Steps[0].Call)
	assert.Len(t, sc.Steps[0].Args, 3)
	assert.Empty(t, sc.Assertions)
}

func TestLoadScenario_Fixtures(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/setup_barrier.yaml")
	require.NoError(t, err)

	assert.Equal(t, "setup_barrier", sc.Name)
	assert.Equal(t, map[int]int{1: 3}, sc.Players[0].Warriors)
	require.NotNil(t, sc.Steps[2].Expect)
	require.NotNil(t, sc.Steps[2].Expect.Blocked)
	assert.True(t, *sc.Steps[2].Expect.Blocked)
	assert.Equal(t, "confirm_setup", sc.Steps[2].Expect.Rule)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nplayers: [{faction: CATS}]\nsteps: [{undo: true}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nplayers: [{faction: CATS}]\nsteps: [{undo: true}]\n",
			want: "description is required",
		},
		{
			name: "no players",
			yaml: "name: n\ndescription: d\nsteps: [{undo: true}]\n",
			want: "players list is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}]\n",
			want: "steps list is required",
		},
		{
			name: "unknown faction",
			yaml: "name: n\ndescription: d\nplayers: [{faction: DUCKS}]\nsteps: [{undo: true}]\n",
			want: `unknown faction "DUCKS"`,
		},
		{
			name: "faction seated twice",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}, {faction: CATS}]\nsteps: [{undo: true}]\n",
			want: "seated twice",
		},
		{
			name: "unknown card",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS, hand: [JOKER]}]\nsteps: [{undo: true}]\n",
			want: `unknown card "JOKER"`,
		},
		{
			name: "clearing out of range",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS, warriors: {13: 1}}]\nsteps: [{undo: true}]\n",
			want: "bad entry 13",
		},
		{
			name: "two ops in one step",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}]\nsteps: [{undo: true, call: recruit}]\n",
			want: "exactly one of call, undo or replay",
		},
		{
			name: "empty step",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}]\nsteps: [{}]\n",
			want: "exactly one of call, undo or replay",
		},
		{
			name: "args without call",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}]\nsteps: [{undo: true, args: [1]}]\n",
			want: "args are only valid with call",
		},
		{
			name: "undo expectation on call",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}]\nsteps: [{call: recruit, expect: {undone: true}}]\n",
			want: "only valid with undo",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}]\nsteps: [{undo: true}]\nassertions: [{type: score}]\n",
			want: `unknown assertion type "score"`,
		},
		{
			name: "assertion on absent player",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}]\nsteps: [{undo: true}]\nassertions: [{type: hand, player: BIRDS}]\n",
			want: `player "BIRDS" is not seated`,
		},
		{
			name: "warriors without clearing",
			yaml: "name: n\ndescription: d\nplayers: [{faction: CATS}]\nsteps: [{undo: true}]\nassertions: [{type: warriors, player: CATS, count: 1}]\n",
			want: "clearing is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.Name
	}
	assert.Equal(t, []string{"battle_replay", "craft_then_undo", "setup_barrier"}, names)
}

func TestLoadDir_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(minimalScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(minimalScenario), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "minimal" already used by a.yaml`)
}

func TestLoadDir_Empty(t *testing.T) {
	scenarios, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, scenarios)
}
