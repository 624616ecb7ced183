package progression

import (
	"strings"

	"github.com/ashureev/sparkweek/internal/domain"
)

// IntroMessage is emitted when the cursor lands on a step.
func IntroMessage(step *domain.Step) (domain.Message, bool) {
	return promptMessage(step.Prompts.Introduction, domain.TagGuidance)
}

// StepDoneMessage is emitted before the cursor leaves a finished step.
func StepDoneMessage(step *domain.Step) (domain.Message, bool) {
	return promptMessage(step.Prompts.OnCompletion, domain.TagCelebration)
}

// CelebrationMessage is emitted when the whole experience is completed.
func CelebrationMessage(exp *domain.Experience) (domain.Message, bool) {
	return promptMessage(exp.Guidance.CompletionCelebration, domain.TagCelebration)
}

// MatchStruggle finds the first common struggle whose trigger phrase appears
// in text, case-insensitively.
func MatchStruggle(g domain.Guidance, text string) (*domain.CommonStruggle, bool) {
	lower := strings.ToLower(text)
	for i := range g.CommonStruggles {
		for _, phrase := range g.CommonStruggles[i].TriggerPhrases {
			if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
				return &g.CommonStruggles[i], true
			}
		}
	}
	return nil, false
}

// StruggleReply renders the canned struggle response, followed by the step's
// struggle line and any additional help.
func StruggleReply(s *domain.CommonStruggle, step *domain.Step) domain.Message {
	parts := []string{s.Response}
	if step != nil && step.Prompts.OnStruggle != "" {
		parts = append(parts, step.Prompts.OnStruggle)
	}
	if s.AdditionalHelp != "" {
		parts = append(parts, s.AdditionalHelp)
	}
	return domain.NewMessage(domain.RoleAssistant, strings.Join(parts, " "), domain.TagGuidance)
}

func promptMessage(text string, tag domain.MessageTag) (domain.Message, bool) {
	if text == "" {
		return domain.Message{}, false
	}
	return domain.NewMessage(domain.RoleAssistant, text, tag), true
}
