// Package app holds the application state machine and the service that moves
// it through the store, the relay, and the catalog.
package app

import (
	"github.com/ashureev/sparkweek/internal/domain"
)

// View is the top-level screen the client should show.
type View string

const (
	ViewLanding          View = "landing"
	ViewChat             View = "chat"
	ViewDashboard        View = "dashboard"
	ViewExperienceDetail View = "experience_detail"
)

// State is the per-user application state.
type State struct {
	View                 View                  `json:"view"`
	Profile              *domain.UserProfile   `json:"profile,omitempty"`
	Package              *domain.WeeklyPackage `json:"package,omitempty"`
	SelectedExperienceID string                `json:"selected_experience_id,omitempty"`
}

// Event is a state transition input. The set is closed.
type Event interface {
	event()
}

// Restored seeds state from whatever the store holds.
type Restored struct {
	Profile *domain.UserProfile
	Package *domain.WeeklyPackage
}

// Started opens the discovery chat from the landing screen.
type Started struct{}

// ProfileCompleted installs a new profile and its first package.
type ProfileCompleted struct {
	Profile *domain.UserProfile
	Package *domain.WeeklyPackage
}

// WeekRenewed replaces the package and keeps the profile.
type WeekRenewed struct {
	Package *domain.WeeklyPackage
}

// ExperienceSelected opens an experience.
type ExperienceSelected struct {
	ID string
}

// BackToDashboard leaves an experience.
type BackToDashboard struct{}

// Upgraded replaces the profile after a tier change.
type Upgraded struct {
	Profile *domain.UserProfile
}

// LoggedOut drops everything.
type LoggedOut struct{}

// Rediscovered drops profile and package and reopens the chat.
type Rediscovered struct{}

func (Restored) event()           {}
func (Started) event()            {}
func (ProfileCompleted) event()   {}
func (WeekRenewed) event()        {}
func (ExperienceSelected) event() {}
func (BackToDashboard) event()    {}
func (Upgraded) event()           {}
func (LoggedOut) event()          {}
func (Rediscovered) event()       {}

// Reduce returns the state after applying e to s. It does not modify s.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case Restored:
		if e.Profile == nil {
			return State{View: ViewLanding}
		}
		return State{View: ViewDashboard, Profile: e.Profile, Package: e.Package}

	case Started:
		s.View = ViewChat
		s.SelectedExperienceID = ""
		return s

	case ProfileCompleted:
		return State{View: ViewDashboard, Profile: e.Profile, Package: e.Package}

	case WeekRenewed:
		s.Package = e.Package
		s.View = ViewDashboard
		s.SelectedExperienceID = ""
		return s

	case ExperienceSelected:
		s.View = ViewExperienceDetail
		s.SelectedExperienceID = e.ID
		return s

	case BackToDashboard:
		s.View = ViewDashboard
		s.SelectedExperienceID = ""
		return s

	case Upgraded:
		s.Profile = e.Profile
		return s

	case LoggedOut:
		return State{View: ViewLanding}

	case Rediscovered:
		return State{View: ViewChat}
	}
	return s
}
