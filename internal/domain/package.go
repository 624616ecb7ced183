package domain

import "time"

// PackageDuration is the fixed length of a weekly package.
const PackageDuration = 7 * 24 * time.Hour

// WeeklyPackage is a 7-day bundle of experience references for one user.
type WeeklyPackage struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	Experiences []string      `json:"experiences"`
	Status      PackageStatus `json:"status"`
}

// IsExpired reports whether the package window has closed at now.
func (p *WeeklyPackage) IsExpired(now time.Time) bool {
	return !now.Before(p.EndDate)
}

// Day returns the zero-based day of the week at now, clamped to the window.
func (p *WeeklyPackage) Day(now time.Time) int {
	if now.Before(p.StartDate) {
		return 0
	}
	day := int(now.Sub(p.StartDate) / (24 * time.Hour))
	if day > 6 {
		return 6
	}
	return day
}

// TodayExperienceID returns the experience scheduled for the day at now.
// Days past the end of a short package wrap around.
func (p *WeeklyPackage) TodayExperienceID(now time.Time) string {
	if len(p.Experiences) == 0 {
		return ""
	}
	return p.Experiences[p.Day(now)%len(p.Experiences)]
}

// Contains reports whether the package references the experience id.
func (p *WeeklyPackage) Contains(experienceID string) bool {
	for _, id := range p.Experiences {
		if id == experienceID {
			return true
		}
	}
	return false
}
