package assembly

import (
	"fmt"
	"testing"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatalog []domain.Experience

func (c staticCatalog) All() []domain.Experience { return c }

func catalogOf(ids ...string) staticCatalog {
	out := make(staticCatalog, len(ids))
	for i, id := range ids {
		out[i] = domain.Experience{ID: id}
	}
	return out
}

func numbered(n int) staticCatalog {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("exp_%02d", i)
	}
	return catalogOf(ids...)
}

func TestAssemblePackageShape(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	profile := &domain.UserProfile{ID: "p1", Tier: domain.TierFree}

	tests := []struct {
		name    string
		catalog staticCatalog
		want    int
	}{
		{name: "large catalog", catalog: numbered(12), want: 7},
		{name: "exact catalog", catalog: numbered(7), want: 7},
		{name: "short catalog", catalog: numbered(3), want: 3},
		{name: "empty catalog", catalog: numbered(0), want: 0},
		{name: "duplicates in catalog", catalog: catalogOf("a", "b", "a", "c", "b", "d", "e", "f", "g", "h"), want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.catalog, WithClock(func() time.Time { return start }))
			pkg := a.Assemble(profile)

			assert.Len(t, pkg.Experiences, tt.want)
			seen := map[string]bool{}
			for _, id := range pkg.Experiences {
				require.False(t, seen[id], "duplicate %s", id)
				seen[id] = true
			}
			assert.Equal(t, 7*24*time.Hour, pkg.EndDate.Sub(pkg.StartDate))
			assert.Equal(t, start, pkg.StartDate)
			assert.Equal(t, domain.PackageActive, pkg.Status)
			assert.Equal(t, "p1", pkg.UserID)
			assert.NotEmpty(t, pkg.ID)
		})
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	a := New(numbered(10))
	first := a.Assemble(&domain.UserProfile{ID: "p1"})
	second := a.Assemble(&domain.UserProfile{ID: "p2", Tier: domain.TierPremium})

	assert.Equal(t, first.Experiences, second.Experiences)
	assert.Equal(t, []string{"exp_00", "exp_01", "exp_02", "exp_03", "exp_04", "exp_05", "exp_06"}, first.Experiences)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAssembleGuardsSelector(t *testing.T) {
	greedy := SelectorFunc(func(*domain.UserProfile, []domain.Experience, int) []string {
		return []string{"x", "x", "a", "b", "c", "d", "e", "f", "g", "h"}
	})
	pkg := New(numbered(0), WithSelector(greedy)).Assemble(&domain.UserProfile{ID: "p"})
	assert.Equal(t, []string{"x", "a", "b", "c", "d", "e", "f"}, pkg.Experiences)
}

func TestWithSize(t *testing.T) {
	assert.Len(t, New(numbered(10), WithSize(3)).Assemble(nil).Experiences, 3)
	assert.Len(t, New(numbered(10), WithSize(50)).Assemble(nil).Experiences, 7)
}
