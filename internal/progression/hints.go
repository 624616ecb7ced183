package progression

import (
	"github.com/ashureev/sparkweek/internal/domain"
)

// MaxHintLevel is the number of text hints before the detailed help surface.
const MaxHintLevel = 3

// HintPrefix starts every hint message.
const HintPrefix = "💡 Hint: "

// HintKind distinguishes a chat hint from the detailed help surface.
type HintKind string

const (
	HintText         HintKind = "text"
	HintDetailedHelp HintKind = "detailed_help"
)

// DetailedHelp is the full help surface for a step.
type DetailedHelp struct {
	Explanation    string                 `json:"explanation"`
	Walkthrough    string                 `json:"walkthrough"`
	Alternative    string                 `json:"alternative_approach,omitempty"`
	CommonMistakes []domain.CommonMistake `json:"common_mistakes"`
}

// Hint is the result of a hint request. Level is the hint level consumed by
// this request, or MaxHintLevel for detailed help.
type Hint struct {
	Kind  HintKind      `json:"kind"`
	Level int           `json:"level"`
	Text  string        `json:"text,omitempty"`
	Help  *DetailedHelp `json:"help,omitempty"`
}

// RequestHint escalates help for the current step: first hint, second hint,
// walkthrough, then the detailed help surface on every further request.
func (a *Attempt) RequestHint() (Hint, error) {
	step, err := a.mentoredStep()
	if err != nil {
		return Hint{}, err
	}

	if a.cursor.HintLevel < MaxHintLevel {
		level := a.cursor.HintLevel
		a.cursor.HintLevel++
		return Hint{Kind: HintText, Level: level, Text: step.IfStuck.Tiers()[level]}, nil
	}

	a.cursor.HelpSurfaced = true
	return Hint{Kind: HintDetailedHelp, Level: MaxHintLevel, Help: detailedHelp(step)}, nil
}

// ShowDetailedGuide surfaces detailed help regardless of the hint level.
func (a *Attempt) ShowDetailedGuide() (*DetailedHelp, error) {
	step, err := a.mentoredStep()
	if err != nil {
		return nil, err
	}
	a.cursor.HelpSurfaced = true
	return detailedHelp(step), nil
}

// DismissDetailedGuide hides the detailed help surface. The hint level is kept.
func (a *Attempt) DismissDetailedGuide() {
	if a.cursor != nil {
		a.cursor.HelpSurfaced = false
	}
}

// HintMessage renders a text hint as an assistant message.
func HintMessage(h Hint) domain.Message {
	return domain.NewMessage(domain.RoleAssistant, HintPrefix+h.Text, domain.TagHint)
}

func (a *Attempt) mentoredStep() (*domain.Step, error) {
	if err := a.requireMode(ModeMentored); err != nil {
		return nil, err
	}
	step, ok := a.CurrentStep()
	if !ok {
		return nil, ErrUnknownStep
	}
	return step, nil
}

func (a *Attempt) resetHints() {
	a.cursor.HintLevel = 0
	a.cursor.HelpSurfaced = false
}

func detailedHelp(step *domain.Step) *DetailedHelp {
	return &DetailedHelp{
		Explanation:    step.DetailedExplanation,
		Walkthrough:    step.IfStuck.DetailedWalkthrough,
		Alternative:    step.IfStuck.AlternativeApproach,
		CommonMistakes: step.CommonMistakes,
	}
}
