// Package progression tracks a user's way through an experience's steps.
//
// An Attempt starts in the overview stage, moves into one of two in-progress
// modes, and ends completed. Mentored mode walks a strict cursor over the
// flattened steps and carries the hint ladder; checklist mode lets the user
// tick steps in any order. An Attempt is not safe for concurrent use.
package progression

import (
	"errors"
	"fmt"

	"github.com/ashureev/sparkweek/internal/domain"
)

var (
	// ErrNotStarted is returned by in-progress operations while in the overview.
	ErrNotStarted = errors.New("experience not started")
	// ErrAlreadyStarted is returned when starting an attempt that is in progress.
	ErrAlreadyStarted = errors.New("experience already started")
	// ErrAlreadyCompleted is returned when starting a completed attempt.
	ErrAlreadyCompleted = errors.New("experience already completed")
	// ErrWrongMode is returned when an operation does not apply to the active mode.
	ErrWrongMode = errors.New("operation not available in this mode")
	// ErrUnknownMode is returned for modes outside the closed set.
	ErrUnknownMode = errors.New("unknown progression mode")
	// ErrChecklistIncomplete is returned when completing with unticked steps.
	ErrChecklistIncomplete = errors.New("checklist incomplete")
	// ErrUnknownStep is returned when a step id is not part of the experience.
	ErrUnknownStep = errors.New("unknown step")
)

// Mode selects how an in-progress attempt is driven.
type Mode string

const (
	ModeChecklist Mode = "checklist"
	ModeMentored  Mode = "mentored"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeChecklist, ModeMentored:
		return true
	}
	return false
}

// Stage is the coarse state of an attempt.
type Stage string

const (
	StageOverview   Stage = "overview"
	StageInProgress Stage = "in_progress"
	StageCompleted  Stage = "completed"
)

// Event is the observable outcome of a transition.
type Event string

const (
	EventNone             Event = "none"
	EventStepChanged      Event = "step_changed"
	EventCompleted        Event = "completed"
	EventExitedToOverview Event = "exited_to_overview"
)

// Transition reports what a navigation call did. Index is the flattened step
// index after the transition, or -1 when there is no current step.
type Transition struct {
	Event Event `json:"event"`
	Index int   `json:"index"`
}

// Cursor is the mentored-mode position within an attempt.
type Cursor struct {
	Index        int  `json:"index"`
	HintLevel    int  `json:"hint_level"`
	HelpSurfaced bool `json:"help_surfaced"`
}

// Attempt is one pass through an experience.
type Attempt struct {
	exp   *domain.Experience
	steps []domain.Step
	stage Stage
	mode  Mode

	cursor    *Cursor
	checklist *Checklist
}

// NewAttempt returns an attempt in the overview stage.
func NewAttempt(exp *domain.Experience) *Attempt {
	return &Attempt{
		exp:   exp,
		steps: exp.Steps(),
		stage: StageOverview,
	}
}

// Experience returns the experience being attempted.
func (a *Attempt) Experience() *domain.Experience { return a.exp }

// Stage returns the current stage.
func (a *Attempt) Stage() Stage { return a.stage }

// Mode returns the active mode, or "" outside the in-progress stage.
func (a *Attempt) Mode() Mode {
	if a.stage != StageInProgress {
		return ""
	}
	return a.mode
}

// Start moves the attempt from the overview into mode.
func (a *Attempt) Start(mode Mode) error {
	switch a.stage {
	case StageInProgress:
		return ErrAlreadyStarted
	case StageCompleted:
		return ErrAlreadyCompleted
	}

	switch mode {
	case ModeMentored:
		a.cursor = &Cursor{}
	case ModeChecklist:
		a.checklist = newChecklist(a.steps)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	a.mode = mode
	a.stage = StageInProgress
	return nil
}

// Advance moves the mentored cursor forward one step. Advancing from the last
// step completes the experience; advancing a completed attempt reports
// completion again without changing anything.
func (a *Attempt) Advance() (Transition, error) {
	if a.stage == StageCompleted {
		return Transition{Event: EventCompleted, Index: -1}, nil
	}
	if err := a.requireMode(ModeMentored); err != nil {
		return Transition{Event: EventNone, Index: -1}, err
	}

	if a.cursor.Index >= len(a.steps)-1 {
		a.finish()
		return Transition{Event: EventCompleted, Index: -1}, nil
	}
	a.cursor.Index++
	a.resetHints()
	return Transition{Event: EventStepChanged, Index: a.cursor.Index}, nil
}

// Retreat moves the mentored cursor back one step. Retreating from the first
// step exits to the overview and discards the cursor.
func (a *Attempt) Retreat() (Transition, error) {
	if err := a.requireMode(ModeMentored); err != nil {
		return Transition{Event: EventNone, Index: -1}, err
	}

	if a.cursor.Index == 0 {
		return a.Exit(), nil
	}
	a.cursor.Index--
	a.resetHints()
	return Transition{Event: EventStepChanged, Index: a.cursor.Index}, nil
}

// Exit returns to the overview from any stage, discarding progress.
func (a *Attempt) Exit() Transition {
	a.stage = StageOverview
	a.mode = ""
	a.cursor = nil
	a.checklist = nil
	return Transition{Event: EventExitedToOverview, Index: -1}
}

// Cursor returns a copy of the mentored cursor.
func (a *Attempt) Cursor() (Cursor, bool) {
	if a.cursor == nil {
		return Cursor{}, false
	}
	return *a.cursor, true
}

// CurrentStep returns the step under the mentored cursor.
func (a *Attempt) CurrentStep() (*domain.Step, bool) {
	if a.cursor == nil || a.cursor.Index >= len(a.steps) {
		return nil, false
	}
	return &a.steps[a.cursor.Index], true
}

// StepNumber returns the one-based position of the cursor, or 0 without one.
func (a *Attempt) StepNumber() int {
	if a.cursor == nil {
		return 0
	}
	return a.cursor.Index + 1
}

// TotalSteps returns the number of steps across all phases.
func (a *Attempt) TotalSteps() int { return len(a.steps) }

// Steps returns the flattened steps in order.
func (a *Attempt) Steps() []domain.Step { return a.steps }

// PhaseOf returns the phase containing the flattened step index.
func (a *Attempt) PhaseOf(index int) (*domain.Phase, bool) {
	if index < 0 {
		return nil, false
	}
	for i := range a.exp.Phases {
		phase := &a.exp.Phases[i]
		if index < len(phase.Steps) {
			return phase, true
		}
		index -= len(phase.Steps)
	}
	return nil, false
}

func (a *Attempt) requireMode(mode Mode) error {
	switch a.stage {
	case StageOverview:
		return ErrNotStarted
	case StageCompleted:
		return ErrAlreadyCompleted
	}
	if a.mode != mode {
		return fmt.Errorf("%w: %s", ErrWrongMode, a.mode)
	}
	return nil
}

func (a *Attempt) finish() {
	a.stage = StageCompleted
	a.cursor = nil
	a.checklist = nil
}
