// Package domain contains core domain types for sparkweek.
package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidEnum is returned when a closed enum receives a value outside its set.
var ErrInvalidEnum = errors.New("invalid enum value")

// Tier is the account tier of a profile.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium:
		return true
	}
	return false
}

// UnmarshalText rejects unknown tiers.
func (t *Tier) UnmarshalText(b []byte) error { return unmarshalEnum(t, b, Tier.Valid, "tier") }

// Budget is the spending level a user is comfortable with.
type Budget string

const (
	BudgetLow    Budget = "low"
	BudgetMedium Budget = "medium"
	BudgetHigh   Budget = "high"
)

// Budgets lists every budget level in ascending order.
var Budgets = []Budget{BudgetLow, BudgetMedium, BudgetHigh}

// Valid reports whether b is a known budget level.
func (b Budget) Valid() bool {
	switch b {
	case BudgetLow, BudgetMedium, BudgetHigh:
		return true
	}
	return false
}

// UnmarshalText rejects unknown budget levels.
func (b *Budget) UnmarshalText(v []byte) error { return unmarshalEnum(b, v, Budget.Valid, "budget") }

// TimeAvailability is how much time a user can spend per activity.
type TimeAvailability string

const (
	Time15Min   TimeAvailability = "15min"
	Time30Min   TimeAvailability = "30min"
	Time1Hour   TimeAvailability = "1hr"
	Time2HourUp TimeAvailability = "2hr+"
)

// TimeAvailabilities lists every time availability value.
var TimeAvailabilities = []TimeAvailability{Time15Min, Time30Min, Time1Hour, Time2HourUp}

// Valid reports whether t is a known time availability.
func (t TimeAvailability) Valid() bool {
	switch t {
	case Time15Min, Time30Min, Time1Hour, Time2HourUp:
		return true
	}
	return false
}

// UnmarshalText rejects unknown time availability values.
func (t *TimeAvailability) UnmarshalText(b []byte) error {
	return unmarshalEnum(t, b, TimeAvailability.Valid, "time availability")
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// UnmarshalText rejects unknown roles.
func (r *Role) UnmarshalText(b []byte) error { return unmarshalEnum(r, b, Role.Valid, "role") }

// MessageTag classifies a message for presentation only.
type MessageTag string

const (
	TagNone        MessageTag = ""
	TagGuidance    MessageTag = "guidance"
	TagHint        MessageTag = "hint"
	TagCelebration MessageTag = "celebration"
	TagQuestion    MessageTag = "question"
)

// Valid reports whether m is a known tag. The empty tag is valid.
func (m MessageTag) Valid() bool {
	switch m {
	case TagNone, TagGuidance, TagHint, TagCelebration, TagQuestion:
		return true
	}
	return false
}

// UnmarshalText rejects unknown tags.
func (m *MessageTag) UnmarshalText(b []byte) error {
	return unmarshalEnum(m, b, MessageTag.Valid, "message tag")
}

// PackageStatus is the lifecycle status of a weekly package.
type PackageStatus string

const (
	PackageActive    PackageStatus = "active"
	PackageCompleted PackageStatus = "completed"
	PackageExpired   PackageStatus = "expired"
)

// Valid reports whether s is a known package status.
func (s PackageStatus) Valid() bool {
	switch s {
	case PackageActive, PackageCompleted, PackageExpired:
		return true
	}
	return false
}

// UnmarshalText rejects unknown package statuses.
func (s *PackageStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(s, b, PackageStatus.Valid, "package status")
}

// Difficulty is the skill level an experience is aimed at.
type Difficulty string

const (
	DifficultyAbsoluteBeginner Difficulty = "absolute_beginner"
	DifficultyBeginner         Difficulty = "beginner"
	DifficultyIntermediate     Difficulty = "intermediate"
	DifficultyAdvanced         Difficulty = "advanced"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyAbsoluteBeginner, DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// UnmarshalText rejects unknown difficulties.
func (d *Difficulty) UnmarshalText(b []byte) error {
	return unmarshalEnum(d, b, Difficulty.Valid, "difficulty")
}

func unmarshalEnum[T ~string](dst *T, b []byte, valid func(T) bool, kind string) error {
	v := T(b)
	if !valid(v) {
		return fmt.Errorf("%w: %s %q", ErrInvalidEnum, kind, string(b))
	}
	*dst = v
	return nil
}
