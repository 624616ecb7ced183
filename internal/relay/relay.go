package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/samber/lo"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 30 * time.Second

// Relay wraps a Backend with the degrade-never-raise contract.
type Relay struct {
	backend Backend
	timeout time.Duration
}

// New creates a relay. A nil backend behaves as unconfigured.
func New(backend Backend, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Relay{backend: backend, timeout: timeout}
}

// Configured reports whether a backend is present.
func (r *Relay) Configured() bool {
	return r.backend != nil
}

// Converse returns a free-form reply to text given the prior history. History
// must not already contain text.
func (r *Relay) Converse(ctx context.Context, system string, history []domain.Message, text string) string {
	reply, err := r.generate(ctx, Request{
		System:  system,
		History: conversational(history),
		Prompt:  text,
	})
	return r.degrade(reply, err, "converse")
}

// StepGuidance returns an in-character reply for the current step.
func (r *Relay) StepGuidance(ctx context.Context, sc StepContext, history []domain.Message, text string) string {
	reply, err := r.generate(ctx, Request{
		System:  StepInstruction(sc),
		History: conversational(history),
		Prompt:  text,
	})
	return r.degrade(reply, err, "step_guidance")
}

// ExtractStructured asks for a JSON object matching schema built from the
// transcript. It returns nil on any failure.
func (r *Relay) ExtractStructured(ctx context.Context, history []domain.Message, schema *Schema) json.RawMessage {
	raw, err := r.generate(ctx, Request{
		Prompt: ExtractionPrompt(conversational(history)),
		Schema: schema,
	})
	if err != nil {
		slog.Debug("Structured extraction failed", "error", err)
		return nil
	}

	raw = strings.TrimSpace(raw)
	if !json.Valid([]byte(raw)) || !strings.HasPrefix(raw, "{") {
		slog.Debug("Structured extraction returned non-object", "length", len(raw))
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (r *Relay) generate(ctx context.Context, req Request) (string, error) {
	if r.backend == nil {
		return "", ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.backend.Generate(ctx, req)
}

func (r *Relay) degrade(reply string, err error, op string) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return NotConfiguredReply
	case err != nil:
		slog.Warn("Relay call failed", "op", op, "error", err)
		return ApologyReply
	case strings.TrimSpace(reply) == "":
		return EmptyReply
	}
	return reply
}

// conversational drops system messages, which backends take separately.
func conversational(history []domain.Message) []domain.Message {
	return lo.Reject(history, func(m domain.Message, _ int) bool { return m.Role == domain.RoleSystem })
}
