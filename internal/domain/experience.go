package domain

// Experience is a structured, multi-phase activity guide. Experiences are
// read-only reference data owned by the catalog.
type Experience struct {
	ID              string             `json:"id" yaml:"id"`
	Title           string             `json:"title" yaml:"title"`
	Tagline         string             `json:"tagline" yaml:"tagline"`
	Description     string             `json:"description" yaml:"description"`
	Category        string             `json:"category" yaml:"category"`
	Subcategory     string             `json:"subcategory,omitempty" yaml:"subcategory"`
	Tags            []string           `json:"tags" yaml:"tags"`
	Difficulty      Difficulty         `json:"difficulty_level" yaml:"difficulty_level"`
	EstimatedTime   EstimatedTime      `json:"estimated_time" yaml:"estimated_time"`
	Budget          BudgetEstimate     `json:"budget" yaml:"budget"`
	Prerequisites   Prerequisites      `json:"prerequisites" yaml:"prerequisites"`
	Phases          []Phase            `json:"phases" yaml:"phases"`
	Guidance        Guidance           `json:"ai_guidance" yaml:"ai_guidance"`
	SuccessCriteria []SuccessCriterion `json:"success_criteria" yaml:"success_criteria"`
	WhatYouLearned  []string           `json:"what_you_learned" yaml:"what_you_learned"`
	NextExperiences []string           `json:"next_experiences" yaml:"next_experiences"`
	HeroImage       string             `json:"hero_image,omitempty" yaml:"hero_image"`
}

// EstimatedTime is a duration range in minutes.
type EstimatedTime struct {
	Minimum  int `json:"minimum" yaml:"minimum"`
	Typical  int `json:"typical" yaml:"typical"`
	Extended int `json:"extended" yaml:"extended"`
}

// BudgetEstimate describes what an experience costs. Level "free" is allowed
// here in addition to the profile budget levels.
type BudgetEstimate struct {
	Level         string `json:"level" yaml:"level"`
	EstimatedCost string `json:"estimated_cost" yaml:"estimated_cost"`
	Alternatives  string `json:"alternatives,omitempty" yaml:"alternatives"`
}

// Prerequisites lists what a user needs before starting.
type Prerequisites struct {
	RequiredItems        []Material `json:"required_items" yaml:"required_items"`
	OptionalItems        []Material `json:"optional_items" yaml:"optional_items"`
	RequiredSkills       []string   `json:"required_skills" yaml:"required_skills"`
	PhysicalRequirements []string   `json:"physical_requirements" yaml:"physical_requirements"`
	SpaceRequirements    string     `json:"space_requirements,omitempty" yaml:"space_requirements"`
}

// Material is a required or optional item.
type Material struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description,omitempty" yaml:"description"`
	Required        bool     `json:"required" yaml:"required"`
	WhereToFind     string   `json:"where_to_find,omitempty" yaml:"where_to_find"`
	ApproximateCost string   `json:"approximate_cost,omitempty" yaml:"approximate_cost"`
	Alternatives    []string `json:"alternatives,omitempty" yaml:"alternatives"`
}

// Phase is an ordered group of steps with a closing checkpoint.
type Phase struct {
	ID            string          `json:"id" yaml:"id"`
	Number        int             `json:"phase_number" yaml:"phase_number"`
	Title         string          `json:"title" yaml:"title"`
	Description   string          `json:"description" yaml:"description"`
	EstimatedTime int             `json:"estimated_time" yaml:"estimated_time"`
	Steps         []Step          `json:"steps" yaml:"steps"`
	Checkpoint    PhaseCheckpoint `json:"phase_checkpoint" yaml:"phase_checkpoint"`
}

// PhaseCheckpoint is the question asked at the end of a phase.
type PhaseCheckpoint struct {
	Question         string `json:"question" yaml:"question"`
	SuccessIndicator string `json:"success_indicator,omitempty" yaml:"success_indicator"`
	IfStuck          string `json:"if_stuck,omitempty" yaml:"if_stuck"`
}

// Step is a single instruction within a phase.
type Step struct {
	ID                  string          `json:"id" yaml:"id"`
	Number              int             `json:"step_number" yaml:"step_number"`
	Title               string          `json:"title" yaml:"title"`
	Instruction         string          `json:"instruction" yaml:"instruction"`
	DetailedExplanation string          `json:"detailed_explanation" yaml:"detailed_explanation"`
	ImageURL            string          `json:"image_url,omitempty" yaml:"image_url"`
	InteractionType     string          `json:"interaction_type" yaml:"interaction_type"`
	UserActionRequired  string          `json:"user_action_required,omitempty" yaml:"user_action_required"`
	ExpectedOutcome     string          `json:"expected_outcome,omitempty" yaml:"expected_outcome"`
	CommonMistakes      []CommonMistake `json:"common_mistakes" yaml:"common_mistakes"`
	Tips                []string        `json:"tips" yaml:"tips"`
	IfStuck             StuckHelp       `json:"if_stuck" yaml:"if_stuck"`
	Checkpoint          Checkpoint      `json:"checkpoint" yaml:"checkpoint"`
	Prompts             StepPrompts     `json:"ai_prompts" yaml:"ai_prompts"`
}

// CommonMistake pairs a symptom with its cause and fix.
type CommonMistake struct {
	Mistake      string `json:"mistake" yaml:"mistake"`
	WhyItHappens string `json:"why_it_happens" yaml:"why_it_happens"`
	HowToFix     string `json:"how_to_fix" yaml:"how_to_fix"`
	HowToPrevent string `json:"how_to_prevent,omitempty" yaml:"how_to_prevent"`
}

// StuckHelp is the tiered help structure of a step.
type StuckHelp struct {
	FirstHint           string `json:"first_hint" yaml:"first_hint"`
	SecondHint          string `json:"second_hint" yaml:"second_hint"`
	DetailedWalkthrough string `json:"detailed_walkthrough" yaml:"detailed_walkthrough"`
	AlternativeApproach string `json:"alternative_approach,omitempty" yaml:"alternative_approach"`
}

// Tiers returns the hints in escalation order.
func (h StuckHelp) Tiers() [3]string {
	return [3]string{h.FirstHint, h.SecondHint, h.DetailedWalkthrough}
}

// Checkpoint describes how a user verifies a step.
type Checkpoint struct {
	Type           string `json:"type" yaml:"type"`
	Prompt         string `json:"prompt" yaml:"prompt"`
	ValidationHint string `json:"validation_hint,omitempty" yaml:"validation_hint"`
}

// StepPrompts seeds the mentor persona at the four moments of a step.
type StepPrompts struct {
	Introduction string `json:"introduction" yaml:"introduction"`
	DuringStep   string `json:"during_step" yaml:"during_step"`
	OnCompletion string `json:"on_completion" yaml:"on_completion"`
	OnStruggle   string `json:"on_struggle" yaml:"on_struggle"`
}

// Guidance configures the mentor persona for an experience.
type Guidance struct {
	Persona               string           `json:"persona" yaml:"persona"`
	Tone                  string           `json:"tone" yaml:"tone"`
	CommonStruggles       []CommonStruggle `json:"common_struggles" yaml:"common_struggles"`
	EncouragementTriggers []string         `json:"encouragement_triggers" yaml:"encouragement_triggers"`
	CompletionCelebration string           `json:"completion_celebration" yaml:"completion_celebration"`
}

// CommonStruggle is a canned response for recognizable trouble.
type CommonStruggle struct {
	TriggerPhrases []string `json:"trigger_phrase" yaml:"trigger_phrase"`
	Response       string   `json:"response" yaml:"response"`
	AdditionalHelp string   `json:"additional_help,omitempty" yaml:"additional_help"`
}

// SuccessCriterion describes how to tell the experience worked.
type SuccessCriterion struct {
	Criterion      string `json:"criterion" yaml:"criterion"`
	HowToVerify    string `json:"how_to_verify" yaml:"how_to_verify"`
	PartialSuccess string `json:"partial_success,omitempty" yaml:"partial_success"`
}

// Steps returns all steps flattened across phases in order.
func (e *Experience) Steps() []Step {
	var steps []Step
	for _, phase := range e.Phases {
		steps = append(steps, phase.Steps...)
	}
	return steps
}

// StepCount returns the number of steps across all phases.
func (e *Experience) StepCount() int {
	n := 0
	for _, phase := range e.Phases {
		n += len(phase.Steps)
	}
	return n
}
