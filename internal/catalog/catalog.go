// Package catalog provides the read-only experience catalog.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when an experience id is not in the catalog.
var ErrNotFound = errors.New("experience not found")

//go:embed experiences.yaml
var builtin []byte

// Catalog is an ordered, immutable set of experiences.
type Catalog struct {
	experiences []domain.Experience
	byID        map[string]*domain.Experience
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(builtin)
}

// Parse decodes a YAML list of experiences and validates it.
func Parse(data []byte) (*Catalog, error) {
	var experiences []domain.Experience
	if err := yaml.Unmarshal(data, &experiences); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(experiences)
}

// New builds a catalog from already decoded experiences.
func New(experiences []domain.Experience) (*Catalog, error) {
	if err := Validate(experiences); err != nil {
		return nil, err
	}
	c := &Catalog{
		experiences: experiences,
		byID:        make(map[string]*domain.Experience, len(experiences)),
	}
	for i := range c.experiences {
		c.byID[c.experiences[i].ID] = &c.experiences[i]
	}
	return c, nil
}

// Validate checks catalog invariants: every experience has an id, ids are
// unique, every experience has at least one step, and step ids are unique
// within their experience.
func Validate(experiences []domain.Experience) error {
	seen := make(map[string]bool, len(experiences))
	for i, exp := range experiences {
		if exp.ID == "" {
			return fmt.Errorf("experience %d: missing id", i)
		}
		if seen[exp.ID] {
			return fmt.Errorf("experience %s: duplicate id", exp.ID)
		}
		seen[exp.ID] = true

		if !exp.Difficulty.Valid() {
			return fmt.Errorf("experience %s: %w: difficulty %q", exp.ID, domain.ErrInvalidEnum, exp.Difficulty)
		}

		steps := exp.Steps()
		if len(steps) == 0 {
			return fmt.Errorf("experience %s: no steps", exp.ID)
		}
		dupes := lo.FindDuplicates(lo.Map(steps, func(s domain.Step, _ int) string { return s.ID }))
		if len(dupes) > 0 {
			return fmt.Errorf("experience %s: duplicate step ids %v", exp.ID, dupes)
		}
	}
	return nil
}

// Get returns the experience with the given id.
func (c *Catalog) Get(id string) (*domain.Experience, error) {
	exp, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return exp, nil
}

// Has reports whether the catalog contains id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns the experiences in catalog order. Callers must not modify them.
func (c *Catalog) All() []domain.Experience {
	return c.experiences
}

// IDs returns experience ids in catalog order.
func (c *Catalog) IDs() []string {
	return lo.Map(c.experiences, func(e domain.Experience, _ int) string { return e.ID })
}

// Len returns the number of experiences.
func (c *Catalog) Len() int {
	return len(c.experiences)
}

// Resolve maps ids to experiences, skipping ids no longer in the catalog.
func (c *Catalog) Resolve(ids []string) []domain.Experience {
	return lo.FilterMap(ids, func(id string, _ int) (domain.Experience, bool) {
		exp, ok := c.byID[id]
		if !ok {
			return domain.Experience{}, false
		}
		return *exp, true
	})
}
