// Package tier maps account tiers to progression modes and handles upgrades.
package tier

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/progression"
)

var (
	// ErrModeNotAllowed is returned when a tier asks for a mode it may not use.
	ErrModeNotAllowed = errors.New("mode not allowed for tier")
	// ErrNoProfile is returned when upgrading a user without a stored profile.
	ErrNoProfile = errors.New("no profile to upgrade")
)

// ModeFor returns the single progression mode a tier uses.
func ModeFor(t domain.Tier) (progression.Mode, error) {
	switch t {
	case domain.TierFree:
		return progression.ModeChecklist, nil
	case domain.TierPremium:
		return progression.ModeMentored, nil
	}
	return "", fmt.Errorf("%w: tier %q", domain.ErrInvalidEnum, t)
}

// Allows reports whether tier t may drive an attempt in mode.
func Allows(t domain.Tier, mode progression.Mode) bool {
	want, err := ModeFor(t)
	return err == nil && want == mode
}

// Gate starts attempts in the mode the profile's tier allows.
type Gate struct{}

// Enter starts the attempt in the profile's tier mode.
func (Gate) Enter(a *progression.Attempt, p *domain.UserProfile) (progression.Mode, error) {
	if p == nil {
		return "", ErrNoProfile
	}
	mode, err := ModeFor(p.Tier)
	if err != nil {
		return "", err
	}
	if err := a.Start(mode); err != nil {
		return "", err
	}
	return mode, nil
}

// EnterMode starts the attempt in an explicitly requested mode, refusing
// modes the tier does not allow.
func (g Gate) EnterMode(a *progression.Attempt, p *domain.UserProfile, mode progression.Mode) error {
	if p == nil {
		return ErrNoProfile
	}
	if !Allows(p.Tier, mode) {
		return fmt.Errorf("%w: %s cannot use %s", ErrModeNotAllowed, p.Tier, mode)
	}
	return a.Start(mode)
}

// ProfileStore is the persistence the upgrade needs.
type ProfileStore interface {
	LoadProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	SaveProfile(ctx context.Context, userID string, p *domain.UserProfile) error
}

// Upgrade sets the stored profile to premium. Upgrading a premium profile
// saves it unchanged. There is no downgrade.
func Upgrade(ctx context.Context, s ProfileStore, userID string) (*domain.UserProfile, error) {
	p, err := s.LoadProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		return nil, ErrNoProfile
	}
	p.Tier = domain.TierPremium
	if err := s.SaveProfile(ctx, userID, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}
