package relay

import (
	"fmt"
	"strings"

	"github.com/ashureev/sparkweek/internal/domain"
)

// Greeting opens every discovery conversation.
const Greeting = "Hi! I'm Spark, your guide to discovering new experiences. " +
	"I'd love to curate a custom week of activities for you. " +
	"To start, could you tell me a little bit about yourself and what you enjoy doing in your free time?"

// DiscoveryInstruction steers the discovery conversation.
const DiscoveryInstruction = `You are a friendly, enthusiastic guide helping users discover new experiences.
Your goal is to learn about their personality, interests, and constraints through natural conversation.
Ask engaging questions ONE AT A TIME, and respond warmly to their answers.

Focus on extracting:
1. Personality traits (creative, analytical, adventurous, etc.)
2. Interests/Hobbies
3. Budget (low/medium/high)
4. Time availability (15min/30min/1hr/2hr+)
5. Environment preferences

Keep it brief and conversational. Do not output JSON during the conversation.`

// ExtractionPrompt renders the transcript into the profile extraction prompt.
func ExtractionPrompt(history []domain.Message) string {
	var b strings.Builder
	b.WriteString("Based on the following conversation, extract the user's profile information into JSON.\n\nConversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}
	return b.String()
}

// StepInstruction builds the system instruction for in-step mentoring.
func StepInstruction(sc StepContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Your tone is %s.\n", fallback(sc.Persona, "a friendly guide"), fallback(sc.Tone, "warm and encouraging"))
	b.WriteString("You are coaching someone through one step of a hands-on activity. Keep replies short, practical and in character.\n\n")

	if s := sc.Step; s != nil {
		fmt.Fprintf(&b, "Current step: %s\n", s.Title)
		fmt.Fprintf(&b, "Instruction: %s\n", s.Instruction)
		if s.DetailedExplanation != "" {
			fmt.Fprintf(&b, "Explanation: %s\n", s.DetailedExplanation)
		}
		if s.ExpectedOutcome != "" {
			fmt.Fprintf(&b, "Expected outcome: %s\n", s.ExpectedOutcome)
		}
		for _, m := range s.CommonMistakes {
			fmt.Fprintf(&b, "Common mistake: %s. Fix: %s\n", m.Mistake, m.HowToFix)
		}
		if s.Prompts.DuringStep != "" {
			fmt.Fprintf(&b, "A good check-in question: %s\n", s.Prompts.DuringStep)
		}
	}

	// Do not reveal hints the user has not asked for yet.
	switch {
	case sc.HintLevel <= 0:
		b.WriteString("\nThe user has not asked for hints. Nudge, do not solve.")
	case sc.HintLevel < 3:
		fmt.Fprintf(&b, "\nThe user has used %d of 3 hints. Be a little more concrete.", sc.HintLevel)
	default:
		b.WriteString("\nThe user has used every hint. Walk them through it plainly.")
	}
	return b.String()
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
