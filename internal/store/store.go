// Package store persists the two per-user blobs: the profile and the weekly
// package.
package store

import (
	"context"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
)

// Fixed blob keys.
const (
	KeyProfile = "user_profile"
	KeyPackage = "weekly_package"
)

// Store loads, saves, and clears a user's profile and package. Absent blobs
// load as (nil, nil). Writes replace the previous blob; the last write wins.
type Store interface {
	// LoadProfile returns the stored profile for a user.
	LoadProfile(ctx context.Context, userID string) (*domain.UserProfile, error)

	// SaveProfile replaces the stored profile.
	SaveProfile(ctx context.Context, userID string, p *domain.UserProfile) error

	// LoadPackage returns the stored weekly package for a user.
	LoadPackage(ctx context.Context, userID string) (*domain.WeeklyPackage, error)

	// SavePackage replaces the stored weekly package.
	SavePackage(ctx context.Context, userID string, p *domain.WeeklyPackage) error

	// Clear removes both blobs for a user. Clearing nothing is not an error.
	Clear(ctx context.Context, userID string) error

	// ExpirePackages marks active packages whose window ended at or before now
	// as expired and returns how many changed.
	ExpirePackages(ctx context.Context, now time.Time) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
