package catalog

import (
	"errors"
	"testing"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.GreaterOrEqual(t, c.Len(), 7)

	ids := c.IDs()
	assert.Equal(t, "exp_juggle_001", ids[0])
	assert.Equal(t, "exp_tech_aiapp_001", ids[1])

	juggle, err := c.Get("exp_juggle_001")
	require.NoError(t, err)
	assert.Equal(t, 4, juggle.StepCount())
	assert.Equal(t, "Encouraging Juggler Friend", juggle.Guidance.Persona)
	assert.Equal(t, domain.DifficultyAbsoluteBeginner, juggle.Difficulty)

	steps := juggle.Steps()
	assert.Equal(t, []string{"step_1_1", "step_1_2", "step_2_1", "step_3_1"},
		[]string{steps[0].ID, steps[1].ID, steps[2].ID, steps[3].ID})
	for _, s := range steps {
		for i, hint := range s.IfStuck.Tiers() {
			assert.NotEmpty(t, hint, "step %s hint tier %d", s.ID, i)
		}
	}
}

func TestDefaultCatalogCheckpoints(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	exp, err := c.Get("exp_tech_aiapp_001")
	require.NoError(t, err)
	require.NotEmpty(t, exp.Phases)

	first := exp.Phases[0]
	require.NotEmpty(t, first.Steps)
	assert.Equal(t, "Are you signed in?", first.Steps[0].Checkpoint.Prompt)
	assert.Equal(t, "See 'Create new'", first.Steps[0].Checkpoint.ValidationHint)
	assert.Equal(t, "Ready to create?", first.Checkpoint.Question)

	for _, e := range c.All() {
		for _, phase := range e.Phases {
			for _, step := range phase.Steps {
				if step.Checkpoint.Type != "" {
					assert.NotEmpty(t, step.Checkpoint.Prompt, "%s/%s", e.ID, step.ID)
				}
			}
		}
	}
}

func TestGetUnknown(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.Get("exp_missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, c.Has("exp_missing"))
}

func TestResolveSkipsMissing(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	got := c.Resolve([]string{"exp_tech_aiapp_001", "exp_missing", "exp_juggle_001"})
	require.Len(t, got, 2)
	assert.Equal(t, "exp_tech_aiapp_001", got[0].ID)
	assert.Equal(t, "exp_juggle_001", got[1].ID)
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "duplicate ids",
			yaml: `
- {id: a, difficulty_level: beginner, phases: [{steps: [{id: s1}]}]}
- {id: a, difficulty_level: beginner, phases: [{steps: [{id: s1}]}]}
`,
		},
		{
			name: "no steps",
			yaml: `- {id: a, difficulty_level: beginner, phases: [{steps: []}]}`,
		},
		{
			name: "duplicate step ids",
			yaml: `- {id: a, difficulty_level: beginner, phases: [{steps: [{id: s1}]}, {steps: [{id: s1}]}]}`,
		},
		{
			name: "unknown difficulty",
			yaml: `- {id: a, difficulty_level: expert, phases: [{steps: [{id: s1}]}]}`,
		},
		{
			name: "missing id",
			yaml: `- {difficulty_level: beginner, phases: [{steps: [{id: s1}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
