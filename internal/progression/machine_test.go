package progression

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testExperience builds an experience with the given number of steps per phase.
func testExperience(phaseSizes ...int) *domain.Experience {
	exp := &domain.Experience{
		ID: "exp_test",
		Guidance: domain.Guidance{
			Persona:               "Coach",
			Tone:                  "Warm",
			CompletionCelebration: "Done!",
			CommonStruggles: []domain.CommonStruggle{
				{TriggerPhrases: []string{"keep dropping"}, Response: "Dropping is normal.", AdditionalHelp: "Stand over a bed."},
			},
		},
	}
	n := 0
	for p, size := range phaseSizes {
		phase := domain.Phase{ID: fmt.Sprintf("phase_%d", p+1), Number: p + 1}
		for s := 0; s < size; s++ {
			n++
			phase.Steps = append(phase.Steps, domain.Step{
				ID:                  fmt.Sprintf("step_%d", n),
				Number:              n,
				DetailedExplanation: fmt.Sprintf("explain %d", n),
				IfStuck: domain.StuckHelp{
					FirstHint:           fmt.Sprintf("hint-1 of %d", n),
					SecondHint:          fmt.Sprintf("hint-2 of %d", n),
					DetailedWalkthrough: fmt.Sprintf("hint-3 of %d", n),
				},
				CommonMistakes: []domain.CommonMistake{{Mistake: "rushing"}},
				Prompts: domain.StepPrompts{
					Introduction: fmt.Sprintf("intro %d", n),
					OnCompletion: fmt.Sprintf("nice %d", n),
					OnStruggle:   "Slow down.",
				},
			})
		}
		exp.Phases = append(exp.Phases, phase)
	}
	return exp
}

func TestMentoredAdvanceReachesCompletionAfterNCalls(t *testing.T) {
	for _, sizes := range [][]int{{1}, {2, 1}, {2, 1, 1}, {3, 3, 3}} {
		exp := testExperience(sizes...)
		n := exp.StepCount()
		t.Run(fmt.Sprintf("%d steps", n), func(t *testing.T) {
			a := NewAttempt(exp)
			require.NoError(t, a.Start(ModeMentored))

			for i := 1; i < n; i++ {
				tr, err := a.Advance()
				require.NoError(t, err)
				require.Equal(t, EventStepChanged, tr.Event, "call %d", i)
				require.Equal(t, i, tr.Index)
				require.Equal(t, StageInProgress, a.Stage())
			}

			tr, err := a.Advance()
			require.NoError(t, err)
			assert.Equal(t, EventCompleted, tr.Event)
			assert.Equal(t, StageCompleted, a.Stage())

			tr, err = a.Advance()
			require.NoError(t, err)
			assert.Equal(t, EventCompleted, tr.Event)
			assert.Equal(t, StageCompleted, a.Stage())
			_, ok := a.Cursor()
			assert.False(t, ok)
		})
	}
}

func TestRetreatAtFirstStepExitsToOverview(t *testing.T) {
	a := NewAttempt(testExperience(2))
	require.NoError(t, a.Start(ModeMentored))

	tr, err := a.Advance()
	require.NoError(t, err)
	require.Equal(t, 1, tr.Index)

	tr, err = a.Retreat()
	require.NoError(t, err)
	assert.Equal(t, Transition{Event: EventStepChanged, Index: 0}, tr)

	tr, err = a.Retreat()
	require.NoError(t, err)
	assert.Equal(t, EventExitedToOverview, tr.Event)
	assert.Equal(t, StageOverview, a.Stage())
	_, ok := a.Cursor()
	assert.False(t, ok)

	_, err = a.Retreat()
	assert.True(t, errors.Is(err, ErrNotStarted))
}

func TestStartErrors(t *testing.T) {
	a := NewAttempt(testExperience(1))
	assert.True(t, errors.Is(a.Start(Mode("turbo")), ErrUnknownMode))
	assert.Equal(t, StageOverview, a.Stage())

	require.NoError(t, a.Start(ModeChecklist))
	assert.True(t, errors.Is(a.Start(ModeChecklist), ErrAlreadyStarted))

	_, err := a.Advance()
	assert.True(t, errors.Is(err, ErrWrongMode))

	_, err = a.Toggle("step_1")
	require.NoError(t, err)
	_, err = a.Complete()
	require.NoError(t, err)
	assert.True(t, errors.Is(a.Start(ModeMentored), ErrAlreadyCompleted))

	a.Exit()
	assert.NoError(t, a.Start(ModeMentored))
}

func TestExitDiscardsProgress(t *testing.T) {
	a := NewAttempt(testExperience(3))
	require.NoError(t, a.Start(ModeMentored))
	_, _ = a.Advance()
	_, _ = a.RequestHint()

	tr := a.Exit()
	assert.Equal(t, EventExitedToOverview, tr.Event)
	assert.Equal(t, Mode(""), a.Mode())

	require.NoError(t, a.Start(ModeMentored))
	cur, ok := a.Cursor()
	require.True(t, ok)
	assert.Equal(t, Cursor{}, cur)
}

func TestPhaseOf(t *testing.T) {
	a := NewAttempt(testExperience(2, 1, 3))

	tests := []struct {
		index int
		phase string
		ok    bool
	}{
		{0, "phase_1", true},
		{1, "phase_1", true},
		{2, "phase_2", true},
		{3, "phase_3", true},
		{5, "phase_3", true},
		{6, "", false},
		{-1, "", false},
	}
	for _, tt := range tests {
		phase, ok := a.PhaseOf(tt.index)
		require.Equal(t, tt.ok, ok, "index %d", tt.index)
		if ok {
			assert.Equal(t, tt.phase, phase.ID, "index %d", tt.index)
		}
	}
	assert.Equal(t, 6, a.TotalSteps())
}

func TestStepNumber(t *testing.T) {
	a := NewAttempt(testExperience(2))
	assert.Equal(t, 0, a.StepNumber())
	require.NoError(t, a.Start(ModeMentored))
	assert.Equal(t, 1, a.StepNumber())
	_, _ = a.Advance()
	assert.Equal(t, 2, a.StepNumber())
	step, ok := a.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, "step_2", step.ID)
}
