package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	reply string
	err   error
	reqs  []Request
}

func (f *fakeBackend) Generate(_ context.Context, req Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func TestConverseDegrades(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		want    string
	}{
		{name: "no backend", backend: nil, want: NotConfiguredReply},
		{name: "not configured", backend: &fakeBackend{err: ErrNotConfigured}, want: NotConfiguredReply},
		{name: "transport failure", backend: &fakeBackend{err: errors.New("dial tcp: refused")}, want: ApologyReply},
		{name: "empty reply", backend: &fakeBackend{reply: "  "}, want: EmptyReply},
		{name: "ok", backend: &fakeBackend{reply: "What do you enjoy?"}, want: "What do you enjoy?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.backend, time.Second)
			assert.Equal(t, tt.want, r.Converse(context.Background(), DiscoveryInstruction, nil, "hello"))
		})
	}
}

func TestConverseFiltersSystemMessages(t *testing.T) {
	fb := &fakeBackend{reply: "ok"}
	r := New(fb, time.Second)

	history := []domain.Message{
		domain.NewMessage(domain.RoleSystem, "internal", domain.TagNone),
		domain.NewMessage(domain.RoleAssistant, Greeting, domain.TagNone),
		domain.NewMessage(domain.RoleUser, "I like painting", domain.TagNone),
	}
	r.Converse(context.Background(), DiscoveryInstruction, history, "and hiking")

	require.Len(t, fb.reqs, 1)
	req := fb.reqs[0]
	assert.Equal(t, DiscoveryInstruction, req.System)
	assert.Equal(t, "and hiking", req.Prompt)
	require.Len(t, req.History, 2)
	assert.Equal(t, domain.RoleAssistant, req.History[0].Role)
	assert.Nil(t, req.Schema)
}

func TestExtractStructured(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		ok    bool
	}{
		{name: "object", reply: "{\n \"personality_data\": {\"traits\": [\"Curious\"]}\n}", ok: true},
		{name: "array", reply: `["Curious"]`},
		{name: "invalid", reply: `{"personality_data": `},
		{name: "prose", reply: "Sure! Here is the profile"},
		{name: "failure", err: errors.New("quota exceeded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{reply: tt.reply, err: tt.err}
			r := New(fb, time.Second)

			got := r.ExtractStructured(context.Background(), []domain.Message{
				domain.NewMessage(domain.RoleUser, "I'm curious", domain.TagNone),
			}, ProfileSchema())

			if !tt.ok {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			var v map[string]any
			require.NoError(t, json.Unmarshal(got, &v))
			assert.Contains(t, v, "personality_data")
			assert.Contains(t, fb.reqs[0].Prompt, "USER: I'm curious")
		})
	}
}

func TestExtractStructuredWithoutBackend(t *testing.T) {
	r := New(nil, 0)
	assert.False(t, r.Configured())
	assert.Nil(t, r.ExtractStructured(context.Background(), nil, ProfileSchema()))
}

func TestStepGuidanceStaysInCharacter(t *testing.T) {
	fb := &fakeBackend{reply: "Keep your elbows in!"}
	r := New(fb, time.Second)

	step := &domain.Step{Title: "The Scoop Throw", Instruction: "Throw one ball to your other hand."}
	got := r.StepGuidance(context.Background(), StepContext{
		Step:      step,
		Persona:   "Encouraging Juggler Friend",
		Tone:      "Enthusiastic but patient",
		HintLevel: 2,
	}, nil, "it keeps going sideways")

	assert.Equal(t, "Keep your elbows in!", got)
	system := fb.reqs[0].System
	assert.True(t, strings.Contains(system, "Encouraging Juggler Friend"))
	assert.True(t, strings.Contains(system, "Enthusiastic but patient"))
	assert.True(t, strings.Contains(system, "The Scoop Throw"))
	assert.True(t, strings.Contains(system, "2 of 3 hints"))
}

func TestStepGuidanceDegrades(t *testing.T) {
	r := New(&fakeBackend{err: context.DeadlineExceeded}, time.Second)
	got := r.StepGuidance(context.Background(), StepContext{}, nil, "help")
	assert.Equal(t, ApologyReply, got)
}

func TestProfileSchemaEnums(t *testing.T) {
	s := ProfileSchema()
	prefs := s.Properties["preferences"]
	require.NotNil(t, prefs)
	assert.Equal(t, []string{"low", "medium", "high"}, prefs.Properties["budget"].Enum)
	assert.Equal(t, []string{"15min", "30min", "1hr", "2hr+"}, prefs.Properties["time_available"].Enum)
	assert.Equal(t, TypeArray, s.Properties["personality_data"].Properties["traits"].Type)
}

func TestToGenaiSchema(t *testing.T) {
	gs := toGenaiSchema(ProfileSchema())
	require.NotNil(t, gs)
	require.Contains(t, gs.Properties, "preferences")
	budget := gs.Properties["preferences"].Properties["budget"]
	assert.Equal(t, []string{"low", "medium", "high"}, budget.Enum)
	assert.NotNil(t, gs.Properties["personality_data"].Properties["goals"].Items)
}
