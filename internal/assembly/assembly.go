// Package assembly builds weekly packages from a profile and the catalog.
package assembly

import (
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/samber/lo"
)

// DefaultSize is the number of experiences in a package.
const DefaultSize = 7

// Selector picks ordered, distinct experience ids for a profile.
type Selector interface {
	Select(p *domain.UserProfile, catalog []domain.Experience, limit int) []string
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(p *domain.UserProfile, catalog []domain.Experience, limit int) []string

// Select implements Selector.
func (f SelectorFunc) Select(p *domain.UserProfile, catalog []domain.Experience, limit int) []string {
	return f(p, catalog, limit)
}

// FirstN selects the first limit distinct ids in catalog order, ignoring the
// profile.
var FirstN = SelectorFunc(func(_ *domain.UserProfile, catalog []domain.Experience, limit int) []string {
	ids := lo.Uniq(lo.Map(catalog, func(e domain.Experience, _ int) string { return e.ID }))
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
})

// CatalogSource supplies the experiences to choose from.
type CatalogSource interface {
	All() []domain.Experience
}

// Assembler builds packages.
type Assembler struct {
	catalog  CatalogSource
	selector Selector
	size     int
	now      func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithSelector replaces the FirstN selector.
func WithSelector(s Selector) Option { return func(a *Assembler) { a.selector = s } }

// WithSize sets the package size; values outside 1..7 are ignored.
func WithSize(n int) Option {
	return func(a *Assembler) {
		if n > 0 && n <= DefaultSize {
			a.size = n
		}
	}
}

// WithClock sets the clock used for the package window.
func WithClock(now func() time.Time) Option { return func(a *Assembler) { a.now = now } }

// New creates an assembler over catalog.
func New(catalog CatalogSource, opts ...Option) *Assembler {
	a := &Assembler{
		catalog:  catalog,
		selector: FirstN,
		size:     DefaultSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds a fresh active package for the profile starting now.
func (a *Assembler) Assemble(p *domain.UserProfile) *domain.WeeklyPackage {
	start := a.now()
	ids := a.selector.Select(p, a.catalog.All(), a.size)
	// Guard selectors that return duplicates or too many ids.
	ids = lo.Uniq(ids)
	if len(ids) > a.size {
		ids = ids[:a.size]
	}

	var userID string
	if p != nil {
		userID = p.ID
	}
	return &domain.WeeklyPackage{
		ID:          domain.NewID(),
		UserID:      userID,
		StartDate:   start,
		EndDate:     start.Add(domain.PackageDuration),
		Experiences: ids,
		Status:      domain.PackageActive,
	}
}
