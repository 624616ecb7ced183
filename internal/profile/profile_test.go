package profile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcript(roles ...domain.Role) []domain.Message {
	out := make([]domain.Message, len(roles))
	for i, r := range roles {
		out[i] = domain.NewMessage(r, "msg", domain.TagNone)
	}
	return out
}

func alternating(n int) []domain.Message {
	roles := make([]domain.Role, n)
	for i := range roles {
		roles[i] = domain.RoleAssistant
		if i%2 == 1 {
			roles[i] = domain.RoleUser
		}
	}
	return transcript(roles...)
}

func TestShouldAttemptExtraction(t *testing.T) {
	tests := []struct {
		name string
		msgs []domain.Message
		want bool
	}{
		{name: "greeting only", msgs: alternating(1), want: false},
		{name: "at threshold", msgs: alternating(5), want: false},
		{name: "even length", msgs: alternating(6), want: false},
		{name: "first eligible", msgs: alternating(7), want: true},
		{name: "later eligible", msgs: alternating(9), want: true},
		{
			name: "odd but ends with user",
			msgs: transcript(domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant, domain.RoleUser,
				domain.RoleAssistant, domain.RoleAssistant, domain.RoleUser),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAttemptExtraction(tt.msgs, DefaultMinMessages))
		})
	}
}

type fakeRelay struct {
	raw   json.RawMessage
	calls int
}

func (f *fakeRelay) ExtractStructured(context.Context, []domain.Message, *relay.Schema) json.RawMessage {
	f.calls++
	return f.raw
}

func TestAcceptanceThreshold(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "nil", raw: "", want: false},
		{name: "empty traits", raw: `{"personality_data":{"traits":[]},"preferences":{"budget":"low"}}`, want: false},
		{name: "missing traits", raw: `{"personality_data":{},"preferences":{"budget":"low"}}`, want: false},
		{name: "missing budget", raw: `{"personality_data":{"traits":["Bold"]},"preferences":{}}`, want: false},
		{name: "blank budget", raw: `{"personality_data":{"traits":["Bold"]},"preferences":{"budget":""}}`, want: false},
		{name: "unknown budget", raw: `{"personality_data":{"traits":["Bold"]},"preferences":{"budget":"lavish"}}`, want: false},
		{name: "unknown time", raw: `{"personality_data":{"traits":["Bold"]},"preferences":{"budget":"low","time_available":"3hr"}}`, want: false},
		{name: "wrong shape", raw: `{"personality_data":"bold"}`, want: false},
		{
			name: "complete",
			raw:  `{"personality_data":{"traits":["Bold"],"interests":["Climbing"]},"preferences":{"budget":"high","time_available":"2hr+","environment":["outdoor"],"activity_level":"high"}}`,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}
			x := NewExtractor(&fakeRelay{raw: raw})
			p, ok := x.Extract(context.Background(), alternating(7))
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.True(t, p.IsComplete())
			assert.Equal(t, domain.TierFree, p.Tier)
			assert.Equal(t, domain.DefaultDisplayName, p.Name)
			assert.NotEmpty(t, p.ID)
			assert.Equal(t, []string{}, p.PersonalityData.Goals)
		})
	}
}

func TestCannedProfile(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := CannedProfile(now)
	b := CannedProfile(now)

	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.IsComplete())
	assert.Equal(t, []string{"Creative", "Curious"}, a.PersonalityData.Traits)
	assert.Equal(t, domain.BudgetLow, a.Preferences.Budget)
	assert.Equal(t, domain.Time1Hour, a.Preferences.TimeAvailable)
	assert.Equal(t, now, a.CreatedAt)

	a.PersonalityData.Traits[0] = "Changed"
	assert.Equal(t, "Creative", CannedProfile(now).PersonalityData.Traits[0])
}
