// Package profile decides when a discovery conversation holds enough signal
// to build a user profile, and builds it.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/relay"
)

// DefaultMinMessages is the transcript length that must be exceeded before
// extraction is attempted.
const DefaultMinMessages = 5

// ShouldAttemptExtraction reports whether extraction should run for the
// transcript: it must be longer than minMessages, have odd length, and end
// with an assistant reply.
func ShouldAttemptExtraction(transcript []domain.Message, minMessages int) bool {
	n := len(transcript)
	if n <= minMessages || n%2 == 0 {
		return false
	}
	return transcript[n-1].Role == domain.RoleAssistant
}

// Extraction is the structured object returned by the relay.
type Extraction struct {
	PersonalityData domain.PersonalityData `json:"personality_data"`
	Preferences     domain.Preferences     `json:"preferences"`
}

// Decode parses a relay result. Unknown enum values are an error.
func Decode(raw json.RawMessage) (*Extraction, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty extraction")
	}
	var e Extraction
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	return &e, nil
}

// Accept reports whether an extraction is complete enough to act on.
func Accept(e *Extraction) bool {
	return e != nil && len(e.PersonalityData.Traits) > 0 && e.Preferences.Budget.Valid()
}

// Materialize turns an accepted extraction into a new free-tier profile.
func Materialize(e *Extraction, now time.Time) *domain.UserProfile {
	return &domain.UserProfile{
		ID:   domain.NewID(),
		Name: domain.DefaultDisplayName,
		Tier: domain.TierFree,
		PersonalityData: domain.PersonalityData{
			Traits:    nonNil(e.PersonalityData.Traits),
			Interests: nonNil(e.PersonalityData.Interests),
			Goals:     nonNil(e.PersonalityData.Goals),
		},
		Preferences: domain.Preferences{
			Budget:        e.Preferences.Budget,
			TimeAvailable: e.Preferences.TimeAvailable,
			Environment:   nonNil(e.Preferences.Environment),
			ActivityLevel: e.Preferences.ActivityLevel,
		},
		CreatedAt: now,
	}
}

// CannedProfile returns the minimal profile used to skip discovery.
func CannedProfile(now time.Time) *domain.UserProfile {
	return Materialize(&Extraction{
		PersonalityData: domain.PersonalityData{
			Traits:    []string{"Creative", "Curious"},
			Interests: []string{"Art", "Nature"},
			Goals:     []string{"Relax"},
		},
		Preferences: domain.Preferences{
			Budget:        domain.BudgetLow,
			TimeAvailable: domain.Time1Hour,
			Environment:   []string{"indoor"},
			ActivityLevel: "low",
		},
	}, now)
}

// StructuredRelay is the part of the relay extraction needs.
type StructuredRelay interface {
	ExtractStructured(ctx context.Context, history []domain.Message, schema *relay.Schema) json.RawMessage
}

// Extractor builds profiles from discovery transcripts.
type Extractor struct {
	relay StructuredRelay
	now   func() time.Time
}

// NewExtractor creates an extractor backed by r.
func NewExtractor(r StructuredRelay) *Extractor {
	return &Extractor{relay: r, now: time.Now}
}

// Extract asks the relay for a structured profile. Any failure, including a
// rejected extraction, reports false and is only logged.
func (x *Extractor) Extract(ctx context.Context, transcript []domain.Message) (*domain.UserProfile, bool) {
	raw := x.relay.ExtractStructured(ctx, transcript, relay.ProfileSchema())
	if raw == nil {
		return nil, false
	}
	e, err := Decode(raw)
	if err != nil {
		slog.Debug("Discarding malformed extraction", "error", err)
		return nil, false
	}
	if !Accept(e) {
		slog.Debug("Extraction not complete yet", "traits", len(e.PersonalityData.Traits), "budget", e.Preferences.Budget)
		return nil, false
	}
	return Materialize(e, x.now()), true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
