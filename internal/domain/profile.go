package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDisplayName is used for profiles created without a name.
const DefaultDisplayName = "Traveler"

// UserProfile is the personality and preference profile built from discovery.
type UserProfile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name,omitempty"`
	Tier            Tier            `json:"tier"`
	PersonalityData PersonalityData `json:"personality_data"`
	Preferences     Preferences     `json:"preferences"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PersonalityData holds what discovery learned about the person.
type PersonalityData struct {
	Traits    []string `json:"traits"`
	Interests []string `json:"interests"`
	Goals     []string `json:"goals"`
}

// Preferences holds practical constraints for experience selection.
type Preferences struct {
	Budget        Budget           `json:"budget,omitempty"`
	TimeAvailable TimeAvailability `json:"time_available,omitempty"`
	Environment   []string         `json:"environment"`
	ActivityLevel string           `json:"activity_level"`
}

// IsComplete reports whether the profile has enough signal to act on:
// at least one trait and a budget.
func (p *UserProfile) IsComplete() bool {
	return p != nil && len(p.PersonalityData.Traits) > 0 && p.Preferences.Budget != ""
}

// IsPremium returns true if the profile is on the premium tier.
func (p *UserProfile) IsPremium() bool {
	return p != nil && p.Tier == TierPremium
}

// DisplayName returns the profile name or the placeholder.
func (p *UserProfile) DisplayName() string {
	if p == nil || p.Name == "" {
		return DefaultDisplayName
	}
	return p.Name
}

// NewID returns an opaque random identifier.
func NewID() string {
	return uuid.NewString()
}
