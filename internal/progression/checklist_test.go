package progression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecklistProgressArithmetic(t *testing.T) {
	tests := []struct {
		total int
		ticks int
		want  int
	}{
		{total: 3, ticks: 0, want: 0},
		{total: 3, ticks: 1, want: 33},
		{total: 3, ticks: 2, want: 67},
		{total: 3, ticks: 3, want: 100},
		{total: 8, ticks: 1, want: 13},
		{total: 8, ticks: 7, want: 88},
		{total: 1, ticks: 1, want: 100},
	}

	for _, tt := range tests {
		a := NewAttempt(testExperience(tt.total))
		require.NoError(t, a.Start(ModeChecklist))
		for _, s := range a.Steps()[:tt.ticks] {
			done, err := a.Toggle(s.ID)
			require.NoError(t, err)
			require.True(t, done)
		}
		assert.Equal(t, tt.want, a.Progress(), "%d of %d", tt.ticks, tt.total)
		assert.Equal(t, tt.ticks == tt.total, a.CanComplete(), "%d of %d", tt.ticks, tt.total)
	}
}

func TestChecklistLockedOneShortOfFull(t *testing.T) {
	for _, total := range []int{1, 2, 5, 250} {
		a := NewAttempt(testExperience(total))
		require.NoError(t, a.Start(ModeChecklist))
		steps := a.Steps()
		for _, s := range steps[:total-1] {
			_, err := a.Toggle(s.ID)
			require.NoError(t, err)
		}

		assert.False(t, a.CanComplete(), "total %d", total)
		_, err := a.Complete()
		assert.True(t, errors.Is(err, ErrChecklistIncomplete), "total %d", total)

		_, err = a.Toggle(steps[total-1].ID)
		require.NoError(t, err)
		assert.Equal(t, 100, a.Progress())
		assert.True(t, a.CanComplete())

		tr, err := a.Complete()
		require.NoError(t, err)
		assert.Equal(t, EventCompleted, tr.Event)
	}
}

func TestChecklistToggleIsUnordered(t *testing.T) {
	a := NewAttempt(testExperience(2, 2))
	require.NoError(t, a.Start(ModeChecklist))

	_, err := a.Toggle("step_4")
	require.NoError(t, err)
	_, err = a.Toggle("step_2")
	require.NoError(t, err)

	c, ok := a.Checklist()
	require.True(t, ok)
	assert.Equal(t, []string{"step_2", "step_4"}, c.Completed())

	done, err := a.Toggle("step_4")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 25, a.Progress())

	_, err = a.Toggle("step_99")
	assert.True(t, errors.Is(err, ErrUnknownStep))
}

func TestChecklistRejectsMentoredOperations(t *testing.T) {
	a := NewAttempt(testExperience(2))
	require.NoError(t, a.Start(ModeChecklist))

	_, err := a.RequestHint()
	assert.True(t, errors.Is(err, ErrWrongMode))
	_, err = a.Retreat()
	assert.True(t, errors.Is(err, ErrWrongMode))
}
